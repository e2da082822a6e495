package main

import (
	"context"

	"github.com/databot-labs/core/internal/config"
	"github.com/databot-labs/core/pkg/jobs"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/pipeline"
	"github.com/databot-labs/core/pkg/reporting"
	"github.com/databot-labs/core/pkg/scheduler"
	"github.com/databot-labs/core/pkg/server"
	"github.com/databot-labs/core/pkg/services"
)

func main() {
	// Setup structured logging
	logger.SetupLogger()
	log := logger.New("api-service")

	// Load configuration
	cfg := config.Load()

	// The API binary is the full automation host: it runs the scheduler
	// alongside the admin API so the dashboard reflects live state.
	sched := scheduler.New(&scheduler.Config{
		Workers:           cfg.Scheduler.Workers,
		TickInterval:      cfg.Scheduler.TickInterval,
		DefaultMaxHistory: cfg.Scheduler.MaxHistory,
		ShutdownTimeout:   cfg.Scheduler.ShutdownTimeout,
		Location:          cfg.TimezoneLocation(),
	}, log)

	// Create and configure server
	srv, err := server.New(cfg, sched, log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "server_creation_failed").
			Msg("Failed to create server")
	}
	defer srv.Close()

	// Register the automation jobs against the server's record store
	store := srv.Store()
	if err := store.InitSchema(context.Background()); err != nil {
		log.Fatal().
			Err(err).
			Str("action", "schema_init_failed").
			Msg("Failed to initialize schema")
	}
	client := services.NewDataClient(cfg, log)
	cleaner := pipeline.NewCleaner(log)
	transformer := pipeline.NewTransformer(log)
	generator := reporting.NewGenerator(store, cfg.Reporting.OutputDir, cfg.Reporting.DefaultFormat, log)

	err = jobs.Register(sched,
		jobs.NewProcessDataJob(client, cleaner, transformer, store, cfg.Jobs, log),
		jobs.NewDailyReportJob(generator, cfg.Reporting.DefaultFormat, log),
		jobs.NewWeeklyReportJob(generator, cfg.Reporting.DefaultFormat, log),
		jobs.NewCleanupJob(store, cfg.Jobs.RetentionDays, log),
	)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "job_registration_failed").
			Msg("Failed to register jobs")
	}

	sched.Start()
	defer sched.Stop()

	// Start server
	if err := srv.Start(); err != nil {
		log.Fatal().
			Err(err).
			Str("action", "server_failed").
			Msg("Server failed to start")
	}
}
