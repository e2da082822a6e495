package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger computes when a job should fire. Implementations are pure
// functions of their parameters; the scheduler owns all last-fire state,
// which keeps the tick loop testable with simulated clocks.
type Trigger interface {
	// Validate reports whether the trigger parameters are usable.
	// Jobs with invalid triggers are rejected at registration time.
	Validate() error

	// FirstFire returns the first fire time for a job registered at now.
	FirstFire(now time.Time) time.Time

	// NextFire returns the fire time following a fire at last. The ok
	// result is false when the trigger has no further fires. now is used
	// to coalesce catch-up fires: when the process stalled past one or
	// more occurrences, the backlog is skipped rather than replayed.
	NextFire(last, now time.Time) (next time.Time, ok bool)

	// Describe returns a short human-readable schedule description.
	Describe() string
}

// Interval fires immediately on registration and then every Every of
// wall-clock time since the previous fire.
type Interval struct {
	Every time.Duration
}

func (t Interval) Validate() error {
	if t.Every <= 0 {
		return fmt.Errorf("interval must be positive, got %s", t.Every)
	}
	return nil
}

func (t Interval) FirstFire(now time.Time) time.Time {
	return now
}

func (t Interval) NextFire(last, now time.Time) (time.Time, bool) {
	next := last.Add(t.Every)
	if !next.After(now) {
		// The process stalled past one or more periods. Skip the backlog
		// but keep the original phase so spacing stays drift-free.
		behind := now.Sub(next)
		next = next.Add(behind - behind%t.Every + t.Every)
	}
	return next, true
}

func (t Interval) Describe() string {
	return fmt.Sprintf("every %s", t.Every)
}

// Daily fires once per calendar day at a fixed local time.
type Daily struct {
	Hour   int
	Minute int
}

func (t Daily) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("hour must be in 0..23, got %d", t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("minute must be in 0..59, got %d", t.Minute)
	}
	return nil
}

func (t Daily) FirstFire(now time.Time) time.Time {
	return t.occurrenceAfter(now)
}

func (t Daily) NextFire(last, now time.Time) (time.Time, bool) {
	return t.occurrenceAfter(latest(last, now)), true
}

func (t Daily) occurrenceAfter(ref time.Time) time.Time {
	next := time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
	if !next.After(ref) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (t Daily) Describe() string {
	return fmt.Sprintf("daily at %02d:%02d", t.Hour, t.Minute)
}

// Weekly fires once per week on a fixed weekday and local time.
type Weekly struct {
	Day    time.Weekday
	Hour   int
	Minute int
}

func (t Weekly) Validate() error {
	if t.Day < time.Sunday || t.Day > time.Saturday {
		return fmt.Errorf("weekday must be in Sunday..Saturday, got %d", t.Day)
	}
	return Daily{Hour: t.Hour, Minute: t.Minute}.Validate()
}

func (t Weekly) FirstFire(now time.Time) time.Time {
	return t.occurrenceAfter(now)
}

func (t Weekly) NextFire(last, now time.Time) (time.Time, bool) {
	return t.occurrenceAfter(latest(last, now)), true
}

func (t Weekly) occurrenceAfter(ref time.Time) time.Time {
	days := (int(t.Day) - int(ref.Weekday()) + 7) % 7
	next := time.Date(ref.Year(), ref.Month(), ref.Day()+days, t.Hour, t.Minute, 0, 0, ref.Location())
	if !next.After(ref) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (t Weekly) Describe() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", t.Day, t.Hour, t.Minute)
}

// Immediate fires exactly once, as soon as the tick loop observes it,
// and is then exhausted.
type Immediate struct{}

func (t Immediate) Validate() error {
	return nil
}

func (t Immediate) FirstFire(now time.Time) time.Time {
	return now
}

func (t Immediate) NextFire(last, now time.Time) (time.Time, bool) {
	return time.Time{}, false
}

func (t Immediate) Describe() string {
	return "once, immediately"
}

// cronParser accepts the standard 5-field crontab format plus
// descriptors like @daily and @every.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron fires on a standard cron expression, e.g. "0 6 * * 1" for
// Mondays at 6 AM.
type Cron struct {
	Expr string
}

func (t Cron) Validate() error {
	if _, err := cronParser.Parse(t.Expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", t.Expr, err)
	}
	return nil
}

func (t Cron) FirstFire(now time.Time) time.Time {
	sched, err := cronParser.Parse(t.Expr)
	if err != nil {
		return now
	}
	return sched.Next(now)
}

func (t Cron) NextFire(last, now time.Time) (time.Time, bool) {
	sched, err := cronParser.Parse(t.Expr)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(latest(last, now)), true
}

func (t Cron) Describe() string {
	return "cron " + t.Expr
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
