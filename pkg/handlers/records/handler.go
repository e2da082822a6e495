package records

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/databot-labs/core/pkg/database"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models"
	"github.com/databot-labs/core/pkg/models/api"
)

// RecordSource provides stored records for the API.
type RecordSource interface {
	GetRecords(ctx context.Context, filter database.RecordFilter) ([]models.Record, error)
}

// Handler handles stored-record requests
type Handler struct {
	source RecordSource
	logger *logger.Logger
}

// NewHandler creates a new records handler
func NewHandler(source RecordSource, log *logger.Logger) *Handler {
	return &Handler{
		source: source,
		logger: log,
	}
}

// List handles the /api/records endpoint
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataType := r.URL.Query().Get("data_type")

	hoursStr := r.URL.Query().Get("hours")
	if hoursStr == "" {
		hoursStr = "24"
	}
	hours, err := strconv.Atoi(hoursStr)
	if err != nil || hours < 1 || hours > 24*90 {
		hours = 24
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "100"
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 10000 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	results, err := h.source.GetRecords(ctx, database.RecordFilter{
		DataType: dataType,
		Since:    time.Now().Add(-time.Duration(hours) * time.Hour),
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "records_query_failed").
			Str("data_type", dataType).
			Msg("Failed to query records")
		http.Error(w, "Failed to query records", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []models.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	response := api.Response{
		Success: true,
		Data:    results,
		Meta: map[string]interface{}{
			"count": len(results),
			"hours": hours,
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "encode_failed").
			Msg("Failed to encode records response")
	}
}
