package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/databot-labs/core/internal/config"
	"github.com/databot-labs/core/pkg/database"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/pipeline"
	"github.com/databot-labs/core/pkg/scheduler"
	"github.com/databot-labs/core/pkg/services"
)

// ProcessDataJob runs the fetch, clean, transform, store pipeline.
// Transient failures are retried with a fixed delay before the run is
// reported as failed.
type ProcessDataJob struct {
	client      *services.DataClient
	cleaner     *pipeline.Cleaner
	transformer *pipeline.Transformer
	store       *database.Store
	endpoint    string
	interval    time.Duration
	attempts    int
	retryDelay  time.Duration
	logger      *logger.Logger
}

func NewProcessDataJob(
	client *services.DataClient,
	cleaner *pipeline.Cleaner,
	transformer *pipeline.Transformer,
	store *database.Store,
	cfg config.JobsConfig,
	log *logger.Logger,
) Job {
	return &ProcessDataJob{
		client:      client,
		cleaner:     cleaner,
		transformer: transformer,
		store:       store,
		endpoint:    cfg.DataEndpoint,
		interval:    cfg.ProcessInterval,
		attempts:    cfg.RetryAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      log.WithJob("process_data"),
	}
}

func (j *ProcessDataJob) Name() string {
	return "process_data"
}

func (j *ProcessDataJob) Trigger() scheduler.Trigger {
	return scheduler.Interval{Every: j.interval}
}

func (j *ProcessDataJob) Execute(ctx context.Context) error {
	var lastErr error
	attempts := j.attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := j.runOnce(ctx); err != nil {
			lastErr = err
			j.logger.Warn().
				Err(err).
				Str("action", "attempt_failed").
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Msg("Data processing attempt failed")

			if attempt < attempts {
				select {
				case <-time.After(j.retryDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("data processing failed after %d attempts: %w", attempts, lastErr)
}

func (j *ProcessDataJob) runOnce(ctx context.Context) error {
	raw, err := j.client.FetchRecords(ctx, j.endpoint)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		j.logger.Warn().
			Str("action", "no_data").
			Msg("No data received from API")
		return nil
	}

	cleaned := j.cleaner.Clean(raw)
	transformed := j.transformer.Transform(cleaned)

	stored, err := j.store.StoreRecords(ctx, transformed)
	if err != nil {
		return fmt.Errorf("failed to store processed records: %w", err)
	}

	j.logger.Info().
		Str("action", "pipeline_complete").
		Int("fetched", len(raw)).
		Int("stored", stored).
		Msg("Data processing pipeline completed")

	return nil
}
