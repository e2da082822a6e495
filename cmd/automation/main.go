package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/databot-labs/core/internal/config"
	"github.com/databot-labs/core/pkg/database"
	"github.com/databot-labs/core/pkg/database/pool"
	"github.com/databot-labs/core/pkg/jobs"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/pipeline"
	"github.com/databot-labs/core/pkg/reporting"
	"github.com/databot-labs/core/pkg/scheduler"
	"github.com/databot-labs/core/pkg/services"
)

func main() {
	// Parse command line flags
	var (
		jobName = flag.String("job", "", "Run specific job once (process_data, daily_report, weekly_report, cleanup)")
		once    = flag.Bool("once", false, "Run job once and exit")
	)
	flag.Parse()

	logger.SetupLogger()
	log := logger.New("automation-service")

	cfg := config.Load()

	// Connect to database
	db, err := pool.New(context.Background(), cfg.DatabaseURL(), nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := database.NewStore(db, log)
	if err := store.InitSchema(context.Background()); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Initialize pipeline components
	client := services.NewDataClient(cfg, log)
	cleaner := pipeline.NewCleaner(log)
	transformer := pipeline.NewTransformer(log)
	generator := reporting.NewGenerator(store, cfg.Reporting.OutputDir, cfg.Reporting.DefaultFormat, log)

	jobList := []jobs.Job{
		jobs.NewProcessDataJob(client, cleaner, transformer, store, cfg.Jobs, log),
		jobs.NewDailyReportJob(generator, cfg.Reporting.DefaultFormat, log),
		jobs.NewWeeklyReportJob(generator, cfg.Reporting.DefaultFormat, log),
		jobs.NewCleanupJob(store, cfg.Jobs.RetentionDays, log),
	}

	// Handle single job execution
	if *once && *jobName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		for _, job := range jobList {
			if job.Name() != *jobName {
				continue
			}
			log.Info().
				Str("action", "run_once").
				Str("job_name", job.Name()).
				Msg("Running job once")
			if err := job.Execute(ctx); err != nil {
				log.Fatalf("Failed to execute job %s: %v", job.Name(), err)
			}
			log.Info().
				Str("action", "run_once_complete").
				Str("job_name", job.Name()).
				Msg("Job completed successfully")
			return
		}
		log.Fatalf("Unknown job: %s. Available jobs: process_data, daily_report, weekly_report, cleanup", *jobName)
	}

	// Create and start the scheduler
	sched := scheduler.New(&scheduler.Config{
		Workers:           cfg.Scheduler.Workers,
		TickInterval:      cfg.Scheduler.TickInterval,
		DefaultMaxHistory: cfg.Scheduler.MaxHistory,
		ShutdownTimeout:   cfg.Scheduler.ShutdownTimeout,
		Location:          cfg.TimezoneLocation(),
	}, log)

	if err := jobs.Register(sched, jobList...); err != nil {
		log.Fatalf("Failed to register jobs: %v", err)
	}

	sched.Start()
	log.Info().
		Str("action", "service_started").
		Int("job_count", len(sched.Jobs())).
		Msg("Automation service started")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().
		Str("action", "service_stopping").
		Msg("Shutting down automation service")
	sched.Stop()
	log.Info().
		Str("action", "service_stopped").
		Msg("Automation service stopped")
}
