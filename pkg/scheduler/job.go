package scheduler

import (
	"context"
	"time"
)

// UnitOfWork is the body of a job. A nil error marks the run as
// succeeded. The context is cancelled when the scheduler shuts down;
// honoring it is optional but lets long-running work exit early. The
// unit must not call back into the scheduler for its own job id.
type UnitOfWork func(ctx context.Context) error

// job is a registry entry. It is owned by the Scheduler and only ever
// touched under the scheduler mutex.
type job struct {
	id         string
	name       string
	run        UnitOfWork
	trigger    Trigger
	maxHistory int
	paused     bool
	nextFire   time.Time

	// exhausted marks a job whose trigger has no further fires but whose
	// final execution is still queued or running. The worker deregisters
	// it once that execution reaches a terminal state.
	exhausted bool
}

// JobSummary is a read-only snapshot of one registered job, safe to
// hand to callers without exposing live registry state.
type JobSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	Paused     bool      `json:"paused"`
	NextFire   time.Time `json:"next_fire"`
	MaxHistory int       `json:"max_history"`
}

func (j *job) summary() JobSummary {
	return JobSummary{
		ID:         j.id,
		Name:       j.name,
		Schedule:   j.trigger.Describe(),
		Paused:     j.paused,
		NextFire:   j.nextFire,
		MaxHistory: j.maxHistory,
	}
}
