package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/databot-labs/core/internal/config"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/scheduler"
)

type stubJob struct {
	name    string
	trigger scheduler.Trigger
	runs    atomic.Int32
}

func (j *stubJob) Name() string               { return j.name }
func (j *stubJob) Trigger() scheduler.Trigger { return j.trigger }
func (j *stubJob) Execute(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func newTestScheduler() *scheduler.Scheduler {
	cfg := scheduler.DefaultConfig()
	cfg.Workers = 1
	cfg.TickInterval = 10 * time.Millisecond
	return scheduler.New(cfg, logger.New("test"))
}

func TestRegister(t *testing.T) {
	sched := newTestScheduler()

	err := Register(sched,
		&stubJob{name: "first", trigger: scheduler.Interval{Every: time.Minute}},
		&stubJob{name: "second", trigger: scheduler.Daily{Hour: 6}},
	)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	summaries := sched.Jobs()
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 registered jobs, got %d", len(summaries))
	}
	if summaries[0].ID != "first" || summaries[1].ID != "second" {
		t.Errorf("Unexpected registration order: %s, %s", summaries[0].ID, summaries[1].ID)
	}
}

func TestRegisterRejectsInvalidTrigger(t *testing.T) {
	sched := newTestScheduler()

	err := Register(sched, &stubJob{name: "bad", trigger: scheduler.Interval{}})
	if err == nil {
		t.Fatal("Expected error for invalid trigger")
	}
	if !errors.Is(err, scheduler.ErrInvalidTrigger) {
		t.Errorf("Expected ErrInvalidTrigger, got %v", err)
	}
}

func TestProcessDataJobTrigger(t *testing.T) {
	cfg := config.JobsConfig{
		ProcessInterval: 30 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		DataEndpoint:    "/data",
	}
	job := NewProcessDataJob(nil, nil, nil, nil, cfg, logger.New("test"))

	if job.Name() != "process_data" {
		t.Errorf("Unexpected job name %q", job.Name())
	}

	trigger, ok := job.Trigger().(scheduler.Interval)
	if !ok {
		t.Fatalf("Expected interval trigger, got %T", job.Trigger())
	}
	if trigger.Every != 30*time.Minute {
		t.Errorf("Expected 30m interval, got %v", trigger.Every)
	}
}

func TestReportJobTriggers(t *testing.T) {
	daily := NewDailyReportJob(nil, "csv", logger.New("test"))
	if _, ok := daily.Trigger().(scheduler.Daily); !ok {
		t.Errorf("Expected daily trigger, got %T", daily.Trigger())
	}

	weekly := NewWeeklyReportJob(nil, "csv", logger.New("test"))
	wt, ok := weekly.Trigger().(scheduler.Weekly)
	if !ok {
		t.Fatalf("Expected weekly trigger, got %T", weekly.Trigger())
	}
	if wt.Day != time.Monday {
		t.Errorf("Expected Monday, got %v", wt.Day)
	}
}

func TestCleanupJobTrigger(t *testing.T) {
	job := NewCleanupJob(nil, 0, logger.New("test"))

	trigger, ok := job.Trigger().(scheduler.Cron)
	if !ok {
		t.Fatalf("Expected cron trigger, got %T", job.Trigger())
	}
	if err := trigger.Validate(); err != nil {
		t.Errorf("Cleanup cron expression invalid: %v", err)
	}
}

func TestRegisteredJobRunsOnSchedule(t *testing.T) {
	sched := newTestScheduler()
	job := &stubJob{name: "ticker", trigger: scheduler.Immediate{}}

	if err := Register(sched, job); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job.runs.Load() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Job never executed")
}
