package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models/api"
	"github.com/databot-labs/core/pkg/scheduler"
)

// RecordCounter provides the stored-record counts for the status page.
type RecordCounter interface {
	CountRecords(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// JobLister exposes the scheduler state for the status page.
type JobLister interface {
	IsRunning() bool
	Jobs() []scheduler.JobSummary
}

// Handler handles the automation status endpoint
type Handler struct {
	counter RecordCounter
	sched   JobLister
	logger  *logger.Logger
}

// NewHandler creates a new status handler
func NewHandler(counter RecordCounter, sched JobLister, log *logger.Logger) *Handler {
	return &Handler{
		counter: counter,
		sched:   sched,
		logger:  log,
	}
}

// Status handles the /api/status endpoint
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	response := api.StatusResponse{
		Timestamp: time.Now(),
	}

	total, err := h.counter.CountRecords(ctx)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "status_db_failed").
			Msg("Failed to count records")
	} else {
		recent, recentErr := h.counter.CountSince(ctx, time.Now().Add(-24*time.Hour))
		if recentErr != nil {
			h.logger.Error().
				Err(recentErr).
				Str("action", "status_db_failed").
				Msg("Failed to count recent records")
		}
		response.Database = api.DatabaseStatus{
			Connected:    true,
			TotalRecords: total,
			Recent24h:    recent,
		}
	}

	summaries := h.sched.Jobs()
	schedStatus := api.SchedulerStatus{
		Running:  h.sched.IsRunning(),
		JobCount: len(summaries),
		Jobs:     make([]api.JobResponse, 0, len(summaries)),
	}
	for _, s := range summaries {
		schedStatus.Jobs = append(schedStatus.Jobs, api.JobResponse{
			ID:       s.ID,
			Name:     s.Name,
			Schedule: s.Schedule,
			Paused:   s.Paused,
			NextFire: s.NextFire,
		})
	}
	response.Scheduler = schedStatus

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "status_encode_failed").
			Msg("Failed to encode status response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
