package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/databot-labs/core/pkg/database"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/scheduler"
)

// CleanupJob prunes records older than the retention window.
type CleanupJob struct {
	store         *database.Store
	retentionDays int
	logger        *logger.Logger
}

func NewCleanupJob(store *database.Store, retentionDays int, log *logger.Logger) Job {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupJob{
		store:         store,
		retentionDays: retentionDays,
		logger:        log.WithJob("cleanup"),
	}
}

func (j *CleanupJob) Name() string {
	return "cleanup"
}

func (j *CleanupJob) Trigger() scheduler.Trigger {
	// Off-peak, before the morning reports run
	return scheduler.Cron{Expr: "30 3 * * *"}
}

func (j *CleanupJob) Execute(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)

	deleted, err := j.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune old records: %w", err)
	}

	j.logger.Info().
		Str("action", "cleanup_complete").
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Old records pruned")

	return nil
}
