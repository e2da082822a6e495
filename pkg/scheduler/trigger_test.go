package scheduler

import (
	"testing"
	"time"
)

func TestIntervalSpacing(t *testing.T) {
	trigger := Interval{Every: 2 * time.Second}
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	last := trigger.FirstFire(start)
	if !last.Equal(start) {
		t.Fatalf("FirstFire() = %v, want %v", last, start)
	}

	// Simulate 1000 on-schedule fires; spacing must be exactly the
	// period with no drift accumulation.
	for i := 0; i < 1000; i++ {
		next, ok := trigger.NextFire(last, last)
		if !ok {
			t.Fatalf("NextFire() reported exhausted at fire %d", i)
		}
		if got := next.Sub(last); got != 2*time.Second {
			t.Fatalf("fire %d: spacing = %v, want 2s", i, got)
		}
		last = next
	}

	want := start.Add(2000 * time.Second)
	if !last.Equal(want) {
		t.Errorf("after 1000 fires: %v, want %v (drift detected)", last, want)
	}
}

func TestIntervalCoalescing(t *testing.T) {
	trigger := Interval{Every: 2 * time.Second}
	last := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	// The process stalled 5 seconds past the last fire. The next fire
	// must skip the backlog but keep the original phase.
	now := last.Add(5 * time.Second)
	next, ok := trigger.NextFire(last, now)
	if !ok {
		t.Fatal("NextFire() reported exhausted")
	}
	if !next.After(now) {
		t.Errorf("NextFire() = %v, want strictly after %v", next, now)
	}
	if want := last.Add(6 * time.Second); !next.Equal(want) {
		t.Errorf("NextFire() = %v, want %v (phase must be preserved)", next, want)
	}
}

func TestDailyNextOccurrence(t *testing.T) {
	trigger := Daily{Hour: 9, Minute: 0}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before today's occurrence",
			now:  time.Date(2025, 3, 10, 8, 55, 0, 0, time.UTC),
			want: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "past today's occurrence rolls to tomorrow",
			now:  time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC),
			want: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at the occurrence rolls to tomorrow",
			now:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trigger.FirstFire(tt.now); !got.Equal(tt.want) {
				t.Errorf("FirstFire(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestWeeklyNextOccurrence(t *testing.T) {
	// 2025-03-10 is a Monday.
	trigger := Weekly{Day: time.Monday, Hour: 6, Minute: 30}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "same day before the occurrence",
			now:  time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC),
		},
		{
			name: "same day after the occurrence rolls a week",
			now:  time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 17, 6, 30, 0, 0, time.UTC),
		},
		{
			name: "midweek",
			now:  time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 17, 6, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trigger.FirstFire(tt.now); !got.Equal(tt.want) {
				t.Errorf("FirstFire(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestImmediateFiresOnce(t *testing.T) {
	trigger := Immediate{}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	if got := trigger.FirstFire(now); !got.Equal(now) {
		t.Errorf("FirstFire() = %v, want %v", got, now)
	}
	if _, ok := trigger.NextFire(now, now); ok {
		t.Error("NextFire() ok = true, want exhausted after the first fire")
	}
}

func TestCronNextOccurrence(t *testing.T) {
	trigger := Cron{Expr: "0 6 * * 1"} // Mondays at 06:00
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

	want := time.Date(2025, 3, 17, 6, 0, 0, 0, time.UTC)
	if got := trigger.FirstFire(now); !got.Equal(want) {
		t.Errorf("FirstFire() = %v, want %v", got, want)
	}

	next, ok := trigger.NextFire(want, want)
	if !ok {
		t.Fatal("NextFire() reported exhausted")
	}
	if wantNext := want.AddDate(0, 0, 7); !next.Equal(wantNext) {
		t.Errorf("NextFire() = %v, want %v", next, wantNext)
	}
}

func TestTriggerValidation(t *testing.T) {
	tests := []struct {
		name    string
		trigger Trigger
		wantErr bool
	}{
		{"valid interval", Interval{Every: time.Minute}, false},
		{"zero interval", Interval{}, true},
		{"negative interval", Interval{Every: -time.Second}, true},
		{"valid daily", Daily{Hour: 9, Minute: 0}, false},
		{"hour out of range", Daily{Hour: 24}, true},
		{"minute out of range", Daily{Hour: 9, Minute: 60}, true},
		{"valid weekly", Weekly{Day: time.Friday, Hour: 17, Minute: 30}, false},
		{"weekday out of range", Weekly{Day: time.Weekday(7), Hour: 9}, true},
		{"immediate", Immediate{}, false},
		{"valid cron", Cron{Expr: "*/5 * * * *"}, false},
		{"malformed cron", Cron{Expr: "not-a-cron"}, true},
		{"empty cron", Cron{Expr: ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trigger.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
