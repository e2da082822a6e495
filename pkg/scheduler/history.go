package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status describes the lifecycle stage of one execution attempt.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// terminal reports whether the status is a final one.
func (s Status) terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ExecutionRecord is one row of a job's bounded run history.
type ExecutionRecord struct {
	ID         string         `json:"id"`
	JobID      string         `json:"job_id"`
	Status     Status         `json:"status"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Duration   *time.Duration `json:"duration,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// historyLog keeps a bounded, append-only run history per job id.
// Writers (tick loop appending queued records, workers finalizing them)
// serialize on a single mutex; reads return copies.
type historyLog struct {
	mu    sync.Mutex
	byJob map[string][]*ExecutionRecord // oldest first, capped per job
}

func newHistoryLog() *historyLog {
	return &historyLog{
		byJob: make(map[string][]*ExecutionRecord),
	}
}

// appendQueued adds a fresh queued record for jobID, evicting the oldest
// record when the history would exceed maxLen.
func (h *historyLog) appendQueued(jobID string, maxLen int, now time.Time) *ExecutionRecord {
	rec := &ExecutionRecord{
		ID:         uuid.New().String(),
		JobID:      jobID,
		Status:     StatusQueued,
		EnqueuedAt: now,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	records := append(h.byJob[jobID], rec)
	if maxLen > 0 && len(records) > maxLen {
		records = records[len(records)-maxLen:]
	}
	h.byJob[jobID] = records
	return rec
}

// markRunning transitions the most recent queued record for jobID to
// running. The coalescing policy guarantees at most one non-terminal
// record per job, so "most recent queued" is unambiguous.
func (h *historyLog) markRunning(jobID string, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.latestWithStatus(jobID, StatusQueued)
	if rec == nil {
		return false
	}
	started := now
	rec.Status = StatusRunning
	rec.StartedAt = &started
	return true
}

// finish transitions the most recent running record for jobID to a
// terminal state, recording duration and the failure message if any.
func (h *historyLog) finish(jobID string, runErr error, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.latestWithStatus(jobID, StatusRunning)
	if rec == nil {
		return false
	}
	finished := now
	rec.Status = StatusSucceeded
	rec.FinishedAt = &finished
	if rec.StartedAt != nil {
		d := finished.Sub(*rec.StartedAt)
		rec.Duration = &d
	}
	if runErr != nil {
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	}
	return true
}

// abandon finalizes a dangling queued record whose job disappeared from
// the registry before a worker picked it up. Leaving it queued forever
// would wedge coalescing if the same id is registered again.
func (h *historyLog) abandon(jobID, reason string, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.latestWithStatus(jobID, StatusQueued)
	if rec == nil {
		return false
	}
	finished := now
	rec.Status = StatusFailed
	rec.FinishedAt = &finished
	rec.Error = reason
	return true
}

// hasActive reports whether jobID has a queued or running record. The
// tick loop uses this to suppress overlapping executions of one job.
func (h *historyLog) hasActive(jobID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, rec := range h.byJob[jobID] {
		if !rec.Status.terminal() {
			return true
		}
	}
	return false
}

// snapshot returns a copy of jobID's history, oldest first.
func (h *historyLog) snapshot(jobID string) []ExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	records := h.byJob[jobID]
	out := make([]ExecutionRecord, len(records))
	for i, rec := range records {
		out[i] = *rec
	}
	return out
}

func (h *historyLog) latestWithStatus(jobID string, status Status) *ExecutionRecord {
	records := h.byJob[jobID]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Status == status {
			return records[i]
		}
	}
	return nil
}
