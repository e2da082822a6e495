package schedulerops

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models/api"
	"github.com/databot-labs/core/pkg/scheduler"
)

// Handler exposes scheduler job management over HTTP
type Handler struct {
	sched  *scheduler.Scheduler
	logger *logger.Logger
}

// NewHandler creates a new scheduler operations handler
func NewHandler(sched *scheduler.Scheduler, log *logger.Logger) *Handler {
	return &Handler{
		sched:  sched,
		logger: log,
	}
}

// List handles GET /api/jobs
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summaries := h.sched.Jobs()
	jobs := make([]api.JobResponse, 0, len(summaries))
	for _, s := range summaries {
		jobs = append(jobs, api.JobResponse{
			ID:       s.ID,
			Name:     s.Name,
			Schedule: s.Schedule,
			Paused:   s.Paused,
			NextFire: s.NextFire,
		})
	}

	writeJSON(w, h.logger, api.Response{Success: true, Data: jobs})
}

// JobAction handles /api/jobs/{id} and /api/jobs/{id}/{action}
func (h *Handler) JobAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job id required", http.StatusBadRequest)
		return
	}
	id := parts[0]

	// DELETE /api/jobs/{id} removes the job
	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.remove(w, id)
		return
	}

	action := parts[1]
	switch action {
	case "history":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.history(w, id)
	case "pause", "resume", "run":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch action {
		case "pause":
			h.setPaused(w, id, true)
		case "resume":
			h.setPaused(w, id, false)
		case "run":
			h.runNow(w, id)
		}
	default:
		http.Error(w, "Unknown action", http.StatusNotFound)
	}
}

func (h *Handler) remove(w http.ResponseWriter, id string) {
	if !h.sched.RemoveJob(id) {
		writeError(w, h.logger, http.StatusNotFound, "Job not found")
		return
	}
	h.logger.Info().
		Str("action", "job_removed").
		Str("job_id", id).
		Msg("Job removed via API")
	writeJSON(w, h.logger, api.Response{Success: true, Message: "Job removed"})
}

func (h *Handler) history(w http.ResponseWriter, id string) {
	if !h.jobExists(id) {
		writeError(w, h.logger, http.StatusNotFound, "Job not found")
		return
	}
	records := h.sched.History(id)
	writeJSON(w, h.logger, api.Response{Success: true, Data: records})
}

func (h *Handler) setPaused(w http.ResponseWriter, id string, paused bool) {
	var ok bool
	if paused {
		ok = h.sched.PauseJob(id)
	} else {
		ok = h.sched.ResumeJob(id)
	}
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "Job not found")
		return
	}

	msg := "Job resumed"
	if paused {
		msg = "Job paused"
	}
	h.logger.Info().
		Str("action", "job_pause_toggled").
		Str("job_id", id).
		Bool("paused", paused).
		Msg(msg)
	writeJSON(w, h.logger, api.Response{Success: true, Message: msg})
}

func (h *Handler) runNow(w http.ResponseWriter, id string) {
	err := h.sched.RunNow(id)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Job not found")
	case errors.Is(err, scheduler.ErrRunInFlight):
		writeError(w, h.logger, http.StatusConflict, "Job already queued or running")
	case err != nil:
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to trigger job")
	default:
		h.logger.Info().
			Str("action", "job_triggered").
			Str("job_id", id).
			Msg("Job triggered via API")
		writeJSON(w, h.logger, api.Response{Success: true, Message: "Job queued"})
	}
}

func (h *Handler) jobExists(id string) bool {
	for _, s := range h.sched.Jobs() {
		if s.ID == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, payload api.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().
			Err(err).
			Str("action", "encode_failed").
			Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(api.Response{Success: false, Message: message}); err != nil {
		log.Error().
			Err(err).
			Str("action", "encode_failed").
			Msg("Failed to encode error response")
	}
}
