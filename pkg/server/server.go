package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/databot-labs/core/internal/config"
	"github.com/databot-labs/core/pkg/database"
	"github.com/databot-labs/core/pkg/database/pool"
	"github.com/databot-labs/core/pkg/handlers/health"
	"github.com/databot-labs/core/pkg/handlers/records"
	"github.com/databot-labs/core/pkg/handlers/schedulerops"
	"github.com/databot-labs/core/pkg/handlers/status"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/middleware"
	"github.com/databot-labs/core/pkg/scheduler"
)

// Server represents the admin API server
type Server struct {
	router   *http.ServeMux
	port     string
	logger   *logger.Logger
	dbPool   *pgxpool.Pool
	store    *database.Store
	sched    *scheduler.Scheduler
	handlers struct {
		health  *health.Handler
		status  *status.Handler
		jobs    *schedulerops.Handler
		records *records.Handler
	}
}

// New creates a new server instance
func New(cfg *config.Config, sched *scheduler.Scheduler, log *logger.Logger) (*Server, error) {
	dbPool, err := pool.New(context.Background(), cfg.DatabaseURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := testDatabaseConnection(dbPool, log); err != nil {
		dbPool.Close()
		return nil, err
	}

	store := database.NewStore(dbPool, log)

	server := &Server{
		router: http.NewServeMux(),
		port:   cfg.Server.Port,
		logger: log,
		dbPool: dbPool,
		store:  store,
		sched:  sched,
	}

	server.handlers.health = health.NewHandler(log)
	server.handlers.status = status.NewHandler(store, sched, log)
	server.handlers.jobs = schedulerops.NewHandler(sched, log)
	server.handlers.records = records.NewHandler(store, log)

	server.setupRoutes()

	log.Info().
		Str("action", "db_connected").
		Msg("Database connection pool established")

	return server, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.CORS(middleware.RequestID(s.logger, h))
	}

	// Health check endpoint
	s.router.HandleFunc("/health", wrap(s.handlers.health.HealthCheck))

	// Simple root endpoint
	s.router.HandleFunc("/", wrap(func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintf(w, "Data Automation Service - OK"); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
		}
	}))

	// Status endpoint for the dashboard
	s.router.HandleFunc("/api/status", wrap(s.handlers.status.Status))

	// Scheduler job management
	s.router.HandleFunc("/api/jobs", wrap(s.handlers.jobs.List))
	s.router.HandleFunc("/api/jobs/", wrap(s.handlers.jobs.JobAction)) // handles /api/jobs/{id}/{action}

	// Stored records
	s.router.HandleFunc("/api/records", wrap(s.handlers.records.List))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("port", s.port).
		Msg("Starting admin API server")

	if err := http.ListenAndServe(":"+s.port, s.router); err != nil {
		return fmt.Errorf("server failed to start on port %s: %w", s.port, err)
	}

	return nil
}

// Store exposes the record store backing the server.
func (s *Server) Store() *database.Store {
	return s.store
}

// Close gracefully shuts down the server and closes database connections
func (s *Server) Close() {
	if s.dbPool != nil {
		s.dbPool.Close()
		s.logger.Info().Msg("Database connection pool closed")
	}
}

// testDatabaseConnection tests the database connection with retry logic
func testDatabaseConnection(dbPool *pgxpool.Pool, log *logger.Logger) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := dbPool.Ping(ctx)
		cancel()

		if err == nil {
			return nil
		}

		if i == maxRetries-1 {
			return fmt.Errorf("failed to ping database after %d retries: %w", maxRetries, err)
		}

		log.Warn().
			Err(err).
			Int("attempt", i+1).
			Str("action", "db_ping_retry").
			Msg("Retrying database connection")
		time.Sleep(2 * time.Second)
	}

	return nil
}
