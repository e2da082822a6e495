package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/sony/gobreaker"

	"github.com/databot-labs/core/pkg/logger"
)

// Mock HTTP response
type mockRoundTripper struct {
	response *http.Response
	err      error
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.response, m.err
}

func newTestClient(rt http.RoundTripper) *DataClient {
	return &DataClient{
		baseURL: "https://test.com",
		client:  &http.Client{Transport: rt},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}),
		logger:  logger.New("test"),
	}
}

func TestFetchRecords_Success(t *testing.T) {
	response := `{
		"isSuccess": true,
		"message": "Success",
		"data": [
			{
				"id": "rec-1",
				"data_type": "sales",
				"category": "online",
				"value": 129.5,
				"recorded_at": "2025-06-05T10:00:00Z"
			},
			{
				"id": "rec-2",
				"data_type": "sales",
				"category": "retail",
				"value": 80,
				"recorded_at": "2025-06-05T11:00:00Z"
			}
		]
	}`

	client := newTestClient(&mockRoundTripper{
		response: &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewBufferString(response)),
		},
	})

	records, err := client.FetchRecords(context.Background(), "/data")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	if records[0].ID != "rec-1" {
		t.Errorf("Expected record id rec-1, got %s", records[0].ID)
	}

	if records[1].Value != 80 {
		t.Errorf("Expected value 80, got %f", records[1].Value)
	}
}

func TestFetchRecords_APIFailure(t *testing.T) {
	response := `{
		"isSuccess": false,
		"message": "API Error: No data found",
		"data": null
	}`

	client := newTestClient(&mockRoundTripper{
		response: &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewBufferString(response)),
		},
	})

	_, err := client.FetchRecords(context.Background(), "/data")
	if err == nil {
		t.Fatal("Expected error for API failure, got nil")
	}
}

func TestFetchRecords_HTTPError(t *testing.T) {
	client := newTestClient(&mockRoundTripper{
		response: &http.Response{
			StatusCode: 503,
			Body:       io.NopCloser(bytes.NewBufferString("unavailable")),
		},
	})

	_, err := client.FetchRecords(context.Background(), "/data")
	if err == nil {
		t.Fatal("Expected error for status 503, got nil")
	}
}

func TestFetchRecords_BreakerOpensAfterFailures(t *testing.T) {
	client := &DataClient{
		baseURL: "https://test.com",
		client: &http.Client{Transport: &mockRoundTripper{
			response: &http.Response{
				StatusCode: 500,
				Body:       io.NopCloser(bytes.NewBufferString("boom")),
			},
		}},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "test",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
		}),
		logger: logger.New("test"),
	}

	for i := 0; i < 2; i++ {
		if _, err := client.FetchRecords(context.Background(), "/data"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if state := client.breaker.State(); state != gobreaker.StateOpen {
		t.Errorf("Expected breaker to be open after consecutive failures, got %s", state)
	}
}
