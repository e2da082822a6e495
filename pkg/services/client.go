package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/databot-labs/core/internal/config"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models"
)

// DataClient talks to the external data source API. Calls run through
// a circuit breaker so a flapping upstream fails fast instead of
// stalling every scheduled fetch.
type DataClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

func NewDataClient(cfg *config.Config, log *logger.Logger) *DataClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "external-data-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &DataClient{
		baseURL: cfg.External.BaseURL,
		apiKey:  cfg.External.APIKey,
		client: &http.Client{
			Timeout: time.Duration(cfg.External.Timeout) * time.Second,
		},
		breaker: breaker,
		logger:  log,
	}
}

// FetchRecords fetches data records from the given endpoint path.
func (c *DataClient) FetchRecords(ctx context.Context, endpoint string) ([]models.Record, error) {
	url := c.baseURL + endpoint
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doFetch(ctx, url)
	})

	statusCode := http.StatusOK
	if err != nil {
		statusCode = 0
	}
	c.logger.LogAPICall(http.MethodGet, url, statusCode, time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch records from %s: %w", endpoint, err)
	}
	return result.([]models.Record), nil
}

func (c *DataClient) doFetch(ctx context.Context, url string) ([]models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result models.FetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.IsSuccess {
		return nil, fmt.Errorf("API request failed: %s", result.Message)
	}

	return result.Data, nil
}
