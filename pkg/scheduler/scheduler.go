package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/databot-labs/core/pkg/logger"
)

// dequeueTimeout bounds how long an idle worker blocks on the queue
// before re-checking for work.
const dequeueTimeout = 500 * time.Millisecond

// ExhaustPolicy decides what happens to a job whose trigger reports no
// further fires (one-shot triggers).
type ExhaustPolicy int

const (
	// ExhaustRemove deregisters the job after its final fire. History is
	// kept.
	ExhaustRemove ExhaustPolicy = iota

	// ExhaustPause keeps the job registered but paused, so its history
	// stays reachable through the job listing.
	ExhaustPause
)

// Config holds the scheduler tuning knobs. Zero values fall back to
// the defaults below.
type Config struct {
	// Workers is the size of the execution pool.
	Workers int
	// TickInterval is the poll resolution of the tick loop.
	TickInterval time.Duration
	// DefaultMaxHistory caps per-job history for jobs registered via AddJob.
	DefaultMaxHistory int
	// ShutdownTimeout bounds how long Stop waits for workers to drain.
	ShutdownTimeout time.Duration
	// Location is the timezone for calendar triggers.
	Location *time.Location
	// ExhaustPolicy applies to one-shot triggers after their final fire.
	ExhaustPolicy ExhaustPolicy
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:           4,
		TickInterval:      time.Second,
		DefaultMaxHistory: 100,
		ShutdownTimeout:   5 * time.Second,
		Location:          time.Local,
	}
}

// Scheduler owns the job registry, the history log and the worker
// pool, and runs the periodic tick loop that decides which jobs are
// due. All exported methods are safe to call from any goroutine.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	logger  *logger.Logger
	jobs    map[string]*job
	order   []string
	history *historyLog
	queue   *executionQueue

	running    bool
	tickCtx    context.Context
	tickCancel context.CancelFunc
	runCtx     context.Context
	runCancel  context.CancelFunc
	tickWG     sync.WaitGroup
	workerWG   *sync.WaitGroup
}

// New creates a scheduler. It does not start ticking until Start.
func New(cfg *Config, log *logger.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	normalized := *cfg
	if normalized.Workers <= 0 {
		normalized.Workers = 4
	}
	if normalized.TickInterval <= 0 {
		normalized.TickInterval = time.Second
	}
	if normalized.DefaultMaxHistory <= 0 {
		normalized.DefaultMaxHistory = 100
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = 5 * time.Second
	}
	if normalized.Location == nil {
		normalized.Location = time.Local
	}

	return &Scheduler{
		cfg:     normalized,
		logger:  log,
		jobs:    make(map[string]*job),
		history: newHistoryLog(),
		queue:   newExecutionQueue(),
	}
}

// AddJob registers a job, replacing any existing job with the same id.
// A replaced job keeps its original evaluation position; instances of
// the old job already queued or running finish normally. Returns an
// ErrInvalidTrigger-wrapped error for out-of-range trigger parameters.
func (s *Scheduler) AddJob(id, name string, trigger Trigger, run UnitOfWork) error {
	return s.AddJobWithHistory(id, name, trigger, run, s.cfg.DefaultMaxHistory)
}

// AddJobWithHistory registers a job with a custom history cap.
func (s *Scheduler) AddJobWithHistory(id, name string, trigger Trigger, run UnitOfWork, maxHistory int) error {
	if id == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	if run == nil {
		return fmt.Errorf("job %s: unit of work cannot be nil", id)
	}
	if trigger == nil {
		return fmt.Errorf("job %s: %w: trigger cannot be nil", id, ErrInvalidTrigger)
	}
	if err := trigger.Validate(); err != nil {
		return fmt.Errorf("job %s: %w: %v", id, ErrInvalidTrigger, err)
	}
	if maxHistory <= 0 {
		maxHistory = s.cfg.DefaultMaxHistory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j := &job{
		id:         id,
		name:       name,
		run:        run,
		trigger:    trigger,
		maxHistory: maxHistory,
		nextFire:   trigger.FirstFire(s.now()),
	}

	if _, exists := s.jobs[id]; !exists {
		s.order = append(s.order, id)
	}
	s.jobs[id] = j

	s.logger.Info().
		Str("action", "add_job").
		Str("job_id", id).
		Str("job_name", name).
		Str("schedule", trigger.Describe()).
		Time("next_fire", j.nextFire).
		Msg("Job registered")
	return nil
}

// RemoveJob deregisters a job, reporting whether it existed. Entries
// already on the execution queue are not cancelled; workers drop them
// when they notice the job is gone.
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return false
	}
	delete(s.jobs, id)
	s.removeFromOrderLocked(id)

	s.logger.Info().
		Str("action", "remove_job").
		Str("job_id", id).
		Msg("Job removed")
	return true
}

// PauseJob stops the tick loop from enqueueing the job. Its trigger
// keeps advancing, so no backlog accumulates while paused.
func (s *Scheduler) PauseJob(id string) bool {
	return s.setPaused(id, true)
}

// ResumeJob re-enables a paused job.
func (s *Scheduler) ResumeJob(id string) bool {
	return s.setPaused(id, false)
}

func (s *Scheduler) setPaused(id string, paused bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[id]
	if !exists {
		return false
	}
	j.paused = paused

	s.logger.Info().
		Str("action", "set_paused").
		Str("job_id", id).
		Bool("paused", paused).
		Msg("Job pause state changed")
	return true
}

// RunNow enqueues an ad-hoc execution of a registered job, bypassing
// its trigger. The no-overlap policy still applies.
func (s *Scheduler) RunNow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	if s.history.hasActive(id) {
		return fmt.Errorf("job %s: %w", id, ErrRunInFlight)
	}

	s.history.appendQueued(id, j.maxHistory, s.now())
	s.queue.enqueue(&workItem{jobID: id})

	s.logger.Info().
		Str("action", "run_now").
		Str("job_id", id).
		Msg("Ad-hoc execution enqueued")
	return nil
}

// Jobs returns a snapshot of the registry in registration order.
func (s *Scheduler) Jobs() []JobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobSummary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].summary())
	}
	return out
}

// History returns a snapshot of a job's execution history, oldest
// first. History outlives job removal.
func (s *Scheduler) History(id string) []ExecutionRecord {
	return s.history.snapshot(id)
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the tick loop and the worker pool. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug().
			Str("action", "start_noop").
			Msg("Scheduler already running")
		return
	}
	s.running = true
	s.tickCtx, s.tickCancel = context.WithCancel(context.Background())
	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	// Each pool gets its own queue. Work enqueued while stopped carries
	// over; sentinels abandoned by a pool that missed the shutdown
	// deadline stay on the old queue for its stragglers.
	s.queue = s.queue.rotate()

	s.workerWG = &sync.WaitGroup{}
	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWG.Add(1)
		go s.worker(i, s.queue)
	}

	s.tickWG.Add(1)
	go s.run()

	s.logger.Info().
		Str("action", "start").
		Int("workers", s.cfg.Workers).
		Dur("tick_interval", s.cfg.TickInterval).
		Msg("Scheduler started")
}

// Stop halts the tick loop, drains the execution queue by pushing one
// sentinel per worker and waits for the pool to exit. The wait is
// bounded by ShutdownTimeout; on expiry remaining workers are abandoned
// with a warning. In-progress units of work are signalled through their
// context but never interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	tickCancel := s.tickCancel
	runCancel := s.runCancel
	workerWG := s.workerWG
	workers := s.cfg.Workers
	queue := s.queue
	s.mu.Unlock()

	tickCancel()
	s.tickWG.Wait()

	for i := 0; i < workers; i++ {
		queue.enqueue(nil)
	}

	done := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().
			Str("action", "stop").
			Msg("Scheduler stopped")
	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn().
			Str("action", "shutdown_timeout").
			Dur("timeout", s.cfg.ShutdownTimeout).
			Msg("Workers did not drain in time, abandoning")
	}

	runCancel()
}

// run is the tick loop.
func (s *Scheduler) run() {
	defer s.tickWG.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.tickCtx.Done():
			return
		case tickTime := <-ticker.C:
			s.tick(tickTime.In(s.cfg.Location))
		}
	}
}

// tick enqueues every due, non-paused job in registration order. Ties
// at the same fire time all go out within the same tick. A job with a
// queued or running instance is skipped, but its trigger still
// advances, so slow jobs never build a backlog.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exhausted []string
	for _, id := range append([]string(nil), s.order...) {
		j := s.jobs[id]
		if j.nextFire.IsZero() || j.nextFire.After(now) {
			continue
		}

		fireAt := j.nextFire
		switch {
		case j.paused:
			// Paused jobs advance without firing.
		case s.history.hasActive(id):
			s.logger.Debug().
				Str("action", "fire_coalesced").
				Str("job_id", id).
				Time("fire_at", fireAt).
				Msg("Previous execution still in flight, skipping fire")
		default:
			s.history.appendQueued(id, j.maxHistory, now)
			s.queue.enqueue(&workItem{jobID: id})
		}

		// Advance from the scheduled fire time, not the detection time,
		// so repeated fires do not drift with tick resolution.
		next, ok := j.trigger.NextFire(fireAt, now)
		if !ok {
			exhausted = append(exhausted, id)
			continue
		}
		j.nextFire = next
	}

	for _, id := range exhausted {
		j := s.jobs[id]
		j.nextFire = time.Time{}
		switch {
		case s.cfg.ExhaustPolicy == ExhaustPause:
			j.paused = true
			s.logger.Info().
				Str("action", "trigger_exhausted").
				Str("job_id", id).
				Msg("One-shot trigger consumed, job paused")
		case s.history.hasActive(id):
			// The final fire is still queued or running. The job must stay
			// registered until that execution reaches a terminal state, or
			// the worker's registry lookup would drop it unexecuted. The
			// worker deregisters it from finalizeExhausted.
			j.exhausted = true
		default:
			delete(s.jobs, id)
			s.removeFromOrderLocked(id)
			s.logger.Info().
				Str("action", "trigger_exhausted").
				Str("job_id", id).
				Msg("One-shot trigger consumed, job removed")
		}
	}
}

// finalizeExhausted deregisters a job whose trigger ran out while its
// final execution was still in flight. Called by workers after the
// execution reaches a terminal state.
func (s *Scheduler) finalizeExhausted(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[jobID]
	if !exists || !j.exhausted {
		return
	}
	delete(s.jobs, jobID)
	s.removeFromOrderLocked(jobID)

	s.logger.Info().
		Str("action", "trigger_exhausted").
		Str("job_id", jobID).
		Msg("One-shot trigger consumed, job removed")
}

// worker pulls items off the queue until it receives a sentinel. A
// failing or panicking unit of work is recorded and logged, never
// propagated; a single job failure cannot stop the pool.
func (s *Scheduler) worker(idx int, queue *executionQueue) {
	defer s.workerWG.Done()

	for {
		it, ok := queue.dequeue(dequeueTimeout)
		if !ok {
			continue
		}
		if it == nil {
			return
		}
		s.execute(it.jobID)
	}
}

func (s *Scheduler) execute(jobID string) {
	s.mu.Lock()
	j, exists := s.jobs[jobID]
	var run UnitOfWork
	var name, schedule string
	if exists {
		run = j.run
		name = j.name
		schedule = j.trigger.Describe()
	}
	ctx := s.runCtx
	s.mu.Unlock()

	if !exists {
		s.logger.Warn().
			Str("action", "stale_queue_entry").
			Str("job_id", jobID).
			Msg("Job no longer registered, dropping queue entry")
		s.history.abandon(jobID, "job removed before execution", s.now())
		return
	}

	s.history.markRunning(jobID, s.now())

	requestID := uuid.New().String()
	runLog := s.logger.WithRequestID(requestID).WithJob(name)
	runLog.LogJobStart(name, schedule)
	start := time.Now()

	err := s.runUnit(ctx, run)
	duration := time.Since(start)
	s.history.finish(jobID, err, s.now())
	s.finalizeExhausted(jobID)

	if err != nil {
		runLog.Error().
			Err(err).
			Str("action", "job_failed").
			Str("job_id", jobID).
			Dur("duration", duration).
			Msg("Job execution failed")
		return
	}
	runLog.LogJobComplete(name, duration, 0, 0)
}

// runUnit executes a unit of work, converting panics into failures so
// they never take down a worker.
func (s *Scheduler) runUnit(ctx context.Context, run UnitOfWork) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit of work panicked: %v", r)
		}
	}()
	return run(ctx)
}

func (s *Scheduler) removeFromOrderLocked(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) now() time.Time {
	return time.Now().In(s.cfg.Location)
}
