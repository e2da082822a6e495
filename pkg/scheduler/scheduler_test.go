package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/databot-labs/core/pkg/logger"
)

func newTestScheduler(cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = &Config{
			Workers:           2,
			TickInterval:      10 * time.Millisecond,
			DefaultMaxHistory: 100,
			ShutdownTimeout:   2 * time.Second,
		}
	}
	return New(cfg, logger.New("scheduler-test"))
}

func noop(ctx context.Context) error { return nil }

// waitForHistory polls until jobID has at least n terminal records or
// the timeout expires.
func waitForHistory(t *testing.T, s *Scheduler, jobID string, n int, timeout time.Duration) []ExecutionRecord {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		records := s.History(jobID)
		terminal := 0
		for _, rec := range records {
			if rec.Status.terminal() {
				terminal++
			}
		}
		if terminal >= n {
			return records
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d terminal records for job %q, have %v", n, jobID, s.History(jobID))
	return nil
}

func TestAddJobValidation(t *testing.T) {
	s := newTestScheduler(nil)

	tests := []struct {
		name    string
		id      string
		trigger Trigger
		run     UnitOfWork
		wantErr bool
		invalid bool // expect ErrInvalidTrigger specifically
	}{
		{"valid interval job", "a", Interval{Every: time.Minute}, noop, false, false},
		{"empty id", "", Interval{Every: time.Minute}, noop, true, false},
		{"nil unit of work", "b", Interval{Every: time.Minute}, nil, true, false},
		{"nil trigger", "c", nil, noop, true, true},
		{"zero interval", "d", Interval{}, noop, true, true},
		{"malformed daily", "e", Daily{Hour: 99}, noop, true, true},
		{"malformed cron", "f", Cron{Expr: "bogus"}, noop, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddJob(tt.id, tt.name, tt.trigger, tt.run)
			if (err != nil) != tt.wantErr {
				t.Errorf("AddJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.invalid && !errors.Is(err, ErrInvalidTrigger) {
				t.Errorf("AddJob() error = %v, want ErrInvalidTrigger", err)
			}
		})
	}
}

func TestReplaceExistingKeepsOrder(t *testing.T) {
	s := newTestScheduler(nil)

	for _, id := range []string{"first", "second", "third"} {
		if err := s.AddJob(id, id, Interval{Every: time.Hour}, noop); err != nil {
			t.Fatalf("AddJob(%s) failed: %v", id, err)
		}
	}

	// Re-registering an existing id must keep its evaluation position.
	if err := s.AddJob("first", "first-replaced", Interval{Every: time.Minute}, noop); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("job count = %d, want 3", len(jobs))
	}
	if jobs[0].ID != "first" || jobs[0].Name != "first-replaced" {
		t.Errorf("jobs[0] = %s/%s, want first/first-replaced", jobs[0].ID, jobs[0].Name)
	}
	if jobs[1].ID != "second" || jobs[2].ID != "third" {
		t.Errorf("replace changed registration order: %v", jobs)
	}
}

func TestIntervalExecution(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()

	var runs atomic.Int32
	err := s.AddJob("a", "job A", Interval{Every: 200 * time.Millisecond}, func(ctx context.Context) error {
		runs.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	s.Start()
	// Fires land at ~0ms, ~200ms and ~400ms; half a period of headroom.
	time.Sleep(500 * time.Millisecond)
	s.Stop()

	records := s.History("a")
	if len(records) != 3 {
		t.Fatalf("history length = %d, want 3 (fires at ~0s, 0.2s, 0.4s): %+v", len(records), records)
	}
	for i, rec := range records {
		if rec.Status != StatusSucceeded {
			t.Errorf("record %d status = %s, want %s", i, rec.Status, StatusSucceeded)
		}
		if rec.StartedAt == nil || rec.FinishedAt == nil || rec.Duration == nil {
			t.Errorf("record %d missing timestamps: %+v", i, rec)
		}
	}
	if got := runs.Load(); got != 3 {
		t.Errorf("unit of work ran %d times, want 3", got)
	}
}

func TestFailureIsRecordedAndIsolated(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()

	s.Start()
	if err := s.AddJob("broken", "broken job", Interval{Every: time.Hour}, func(ctx context.Context) error {
		return errors.New("upstream unavailable")
	}); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	records := waitForHistory(t, s, "broken", 1, 2*time.Second)
	last := records[len(records)-1]
	if last.Status != StatusFailed {
		t.Errorf("status = %s, want %s", last.Status, StatusFailed)
	}
	if last.Error == "" {
		t.Error("failed record has empty error")
	}

	// The driver must keep ticking and accepting jobs after a failure.
	if err := s.AddJob("after", "registered after failure", Immediate{}, noop); err != nil {
		t.Fatalf("AddJob() after failure: %v", err)
	}
	after := waitForHistory(t, s, "after", 1, 2*time.Second)
	if after[len(after)-1].Status != StatusSucceeded {
		t.Errorf("follow-up job status = %s, want %s", after[len(after)-1].Status, StatusSucceeded)
	}
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	s := newTestScheduler(&Config{
		Workers:         1,
		TickInterval:    10 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	})
	defer s.Stop()

	s.Start()
	if err := s.AddJob("panicky", "panicky", Immediate{}, func(ctx context.Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	records := waitForHistory(t, s, "panicky", 1, 2*time.Second)
	if records[0].Status != StatusFailed || records[0].Error == "" {
		t.Fatalf("panic record = %s/%q, want failed with message", records[0].Status, records[0].Error)
	}

	// The single worker must have survived the panic.
	if err := s.AddJob("next", "next", Immediate{}, noop); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}
	next := waitForHistory(t, s, "next", 1, 2*time.Second)
	if next[0].Status != StatusSucceeded {
		t.Errorf("job after panic status = %s, want %s", next[0].Status, StatusSucceeded)
	}
}

func TestCoalescingSlowJob(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()

	// The unit of work sleeps far longer than its interval. The tick
	// loop must never hold two non-terminal records for the job.
	err := s.AddJob("slow", "slow job", Interval{Every: 20 * time.Millisecond}, func(ctx context.Context) error {
		time.Sleep(150 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		active := 0
		for _, rec := range s.History("slow") {
			if !rec.Status.terminal() {
				active++
			}
		}
		if active > 1 {
			t.Fatalf("found %d non-terminal records at once, want at most 1", active)
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	// ~25 fires were due over 500ms; coalescing should have collapsed
	// them to roughly one per execution.
	if got := len(s.History("slow")); got > 5 {
		t.Errorf("history length = %d, coalescing should have suppressed overlapping fires", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()

	var runs atomic.Int32
	if err := s.AddJob("a", "job A", Interval{Every: 100 * time.Millisecond}, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	s.Start()
	s.Start() // must be a no-op, not a second tick loop and pool

	if !s.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}

	time.Sleep(250 * time.Millisecond)
	s.Stop()

	// With a duplicated tick loop each fire would be recorded twice.
	if got := runs.Load(); got < 2 || got > 3 {
		t.Errorf("unit of work ran %d times in 250ms at a 100ms interval, want 2..3", got)
	}
}

func TestStopIsGraceful(t *testing.T) {
	s := newTestScheduler(nil)

	if err := s.AddJob("a", "job A", Interval{Every: 30 * time.Millisecond}, func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	s.Start()
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() took too long")
	}

	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// No worker may still be mutating history after Stop returns.
	before := s.History("a")
	time.Sleep(150 * time.Millisecond)
	after := s.History("a")
	if len(before) != len(after) {
		t.Fatalf("history grew after Stop: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Status != after[i].Status {
			t.Errorf("record %d transitioned %s -> %s after Stop", i, before[i].Status, after[i].Status)
		}
	}

	// Stop on a stopped scheduler is a no-op.
	s.Stop()
}

func TestPauseResume(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()

	var runs atomic.Int32
	if err := s.AddJob("a", "job A", Interval{Every: 30 * time.Millisecond}, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	if !s.PauseJob("a") {
		t.Fatal("PauseJob() = false for a registered job")
	}
	s.Start()

	// Paused: due fires are skipped, the trigger advances, no backlog.
	time.Sleep(150 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Fatalf("paused job ran %d times, want 0", got)
	}
	if len(s.History("a")) != 0 {
		t.Fatal("paused job accumulated history records")
	}

	if !s.ResumeJob("a") {
		t.Fatal("ResumeJob() = false for a registered job")
	}
	waitForHistory(t, s, "a", 1, 2*time.Second)

	// No backlog burst after resume: only a few fires can have landed.
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got > 4 {
		t.Errorf("job ran %d times right after resume, backlog was not suppressed", got)
	}

	if s.PauseJob("missing") || s.ResumeJob("missing") {
		t.Error("Pause/ResumeJob() = true for unknown job")
	}
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(nil)

	if err := s.AddJob("a", "job A", Interval{Every: time.Hour}, noop); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}
	if !s.RemoveJob("a") {
		t.Error("RemoveJob() = false for a registered job")
	}
	if s.RemoveJob("a") {
		t.Error("RemoveJob() = true for an already-removed job")
	}
	if len(s.Jobs()) != 0 {
		t.Error("registry not empty after removal")
	}
}

func TestRemovedJobDroppedFromQueue(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()

	if err := s.AddJob("doomed", "doomed", Interval{Every: time.Hour}, noop); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	// Queue an execution while no workers are running, then remove the
	// job before starting the pool.
	if err := s.RunNow("doomed"); err != nil {
		t.Fatalf("RunNow() failed: %v", err)
	}
	s.RemoveJob("doomed")
	s.Start()

	records := waitForHistory(t, s, "doomed", 1, 2*time.Second)
	if records[0].Status != StatusFailed {
		t.Errorf("dangling record status = %s, want %s", records[0].Status, StatusFailed)
	}
	if records[0].StartedAt != nil {
		t.Error("dropped entry must never reach the running state")
	}
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()
	s.Start()

	release := make(chan struct{})
	var mu sync.Mutex
	started := false
	if err := s.AddJob("a", "job A", Interval{Every: time.Hour}, func(ctx context.Context) error {
		mu.Lock()
		started = true
		mu.Unlock()
		<-release
		return nil
	}); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	if err := s.RunNow("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("RunNow(missing) error = %v, want ErrJobNotFound", err)
	}

	if err := s.RunNow("a"); err != nil {
		t.Fatalf("RunNow() failed: %v", err)
	}

	// Wait until the worker picked it up, then a second ad-hoc run must
	// be refused while the first is in flight.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		ok := started
		mu.Unlock()
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("unit of work never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.RunNow("a"); !errors.Is(err, ErrRunInFlight) {
		t.Errorf("RunNow() while in flight error = %v, want ErrRunInFlight", err)
	}

	close(release)
	records := waitForHistory(t, s, "a", 1, 2*time.Second)
	if records[len(records)-1].Status != StatusSucceeded {
		t.Errorf("ad-hoc run status = %s, want %s", records[len(records)-1].Status, StatusSucceeded)
	}
}

func TestImmediateExhaustRemove(t *testing.T) {
	s := newTestScheduler(nil)
	defer s.Stop()
	s.Start()

	var runs atomic.Int32
	err := s.AddJob("once", "one-shot", Immediate{}, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	// The unit of work must actually run before deregistration; exhausting
	// the trigger on the enqueueing tick must not strand the queued entry.
	records := waitForHistory(t, s, "once", 1, 2*time.Second)
	if records[0].Status != StatusSucceeded {
		t.Errorf("one-shot status = %s (%q), want %s", records[0].Status, records[0].Error, StatusSucceeded)
	}
	if records[0].StartedAt == nil {
		t.Error("one-shot record never reached the running state")
	}
	if got := runs.Load(); got != 1 {
		t.Errorf("unit of work ran %d times, want exactly 1", got)
	}

	// Default policy removes the job after its only fire; history stays.
	deadline := time.Now().Add(time.Second)
	for len(s.Jobs()) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(s.Jobs()); got != 0 {
		t.Errorf("job count = %d after one-shot fire, want 0", got)
	}
	if len(s.History("once")) != 1 {
		t.Error("history must outlive job removal")
	}
}

func TestImmediateExhaustPause(t *testing.T) {
	s := newTestScheduler(&Config{
		Workers:         2,
		TickInterval:    10 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
		ExhaustPolicy:   ExhaustPause,
	})
	defer s.Stop()
	s.Start()

	if err := s.AddJob("once", "one-shot", Immediate{}, noop); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}
	waitForHistory(t, s, "once", 1, 2*time.Second)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		jobs := s.Jobs()
		if len(jobs) == 1 && jobs[0].Paused {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("one-shot job not paused under ExhaustPause: %+v", s.Jobs())
}

func TestRegistrationOrderWithinTick(t *testing.T) {
	s := newTestScheduler(&Config{
		Workers:         1, // single worker preserves queue order end-to-end
		TickInterval:    10 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	})
	defer s.Stop()

	var mu sync.Mutex
	var order []string
	record := func(id string) UnitOfWork {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	// Both jobs are due on the same first tick.
	if err := s.AddJob("first", "first", Immediate{}, record("first")); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}
	if err := s.AddJob("second", "second", Immediate{}, record("second")); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	s.Start()
	waitForHistory(t, s, "second", 1, 2*time.Second)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("execution order = %v, want [first second]", order)
	}
}

func TestRestartAfterShutdownTimeout(t *testing.T) {
	s := newTestScheduler(&Config{
		Workers:         1,
		TickInterval:    10 * time.Millisecond,
		ShutdownTimeout: 50 * time.Millisecond,
	})

	release := make(chan struct{})
	if err := s.AddJob("wedge", "wedge", Interval{Every: time.Hour}, func(ctx context.Context) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	s.Start()

	// Wait for the single worker to pick the job up and block.
	deadline := time.Now().Add(2 * time.Second)
	for {
		records := s.History("wedge")
		if len(records) == 1 && records[0].Status == StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never started: %+v", records)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Stop cannot drain the wedged worker, so it gives up at the timeout
	// and leaves that worker's exit sentinel unconsumed.
	s.Stop()
	close(release)
	waitForHistory(t, s, "wedge", 1, 2*time.Second)

	// A restarted pool must not lose workers to leftovers from the old
	// one; its single worker still has to pick up new executions.
	s.Start()
	defer s.Stop()

	if err := s.RunNow("wedge"); err != nil {
		t.Fatalf("RunNow() failed: %v", err)
	}
	records := waitForHistory(t, s, "wedge", 2, 2*time.Second)
	last := records[len(records)-1]
	if last.Status != StatusSucceeded {
		t.Errorf("post-restart run status = %s, want %s", last.Status, StatusSucceeded)
	}
}

func TestJobsSnapshot(t *testing.T) {
	s := newTestScheduler(nil)

	if err := s.AddJob("a", "job A", Daily{Hour: 9}, noop); err != nil {
		t.Fatalf("AddJob() failed: %v", err)
	}

	jobs := s.Jobs()
	jobs[0].Name = "mutated"
	jobs[0].Paused = true

	if got := s.Jobs()[0]; got.Name != "job A" || got.Paused {
		t.Error("mutating a Jobs() snapshot leaked into the registry")
	}
	if got := s.Jobs()[0].Schedule; got != "daily at 09:00" {
		t.Errorf("schedule description = %q, want %q", got, "daily at 09:00")
	}
}
