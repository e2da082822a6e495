package jobs

import (
	"context"
	"fmt"

	"github.com/databot-labs/core/pkg/scheduler"
)

// Job represents a schedulable unit of work for the automation host
type Job interface {
	// Execute runs the job with the given context
	Execute(ctx context.Context) error

	// Name returns a human-readable name for the job
	Name() string

	// Trigger returns when the job should fire
	Trigger() scheduler.Trigger
}

// Register adds each job to the scheduler under its own name.
func Register(sched *scheduler.Scheduler, jobList ...Job) error {
	for _, job := range jobList {
		if err := sched.AddJob(job.Name(), job.Name(), job.Trigger(), job.Execute); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
		}
	}
	return nil
}
