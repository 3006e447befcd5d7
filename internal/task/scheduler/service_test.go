package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "classbell/pkg/logx"
)

func TestAddScheduleRejectsBadSpec(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	if err := s.AddSchedule("x", "not-a-schedule", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if err := s.AddCron("x", "61 * * * *", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid cron")
	}
	if err := s.AddDaily("x", "25:00", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid time")
	}
}

func TestStartArmsRegisteredJobs(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop(), nil)
	noop := func(context.Context) error { return nil }
	if err := s.AddDaily("bell.rollover", "00:00", time.Second, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSchedule("ledger.prune", "6h", time.Second, noop); err != nil {
		t.Fatal(err)
	}
	// Re-registering replaces instead of duplicating.
	if err := s.AddDaily("bell.rollover", "00:01", time.Second, noop); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	if !snap.Running || snap.Timezone != "UTC" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Schedules) != 2 {
		t.Fatalf("got %d schedules, want 2", len(snap.Schedules))
	}
	for _, it := range snap.Schedules {
		if it.Next.IsZero() {
			t.Fatalf("schedule %s has no next run", it.Name)
		}
		if it.Name == "bell.rollover" && it.Spec != "1 0 * * *" {
			t.Fatalf("rollover spec = %q", it.Spec)
		}
	}

	if !s.Remove("ledger.prune") || s.Remove("ledger.prune") {
		t.Fatal("Remove should report true once")
	}
}

func TestTriggerRecordsHistory(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	var calls atomic.Int32
	boom := errors.New("boom")
	_ = s.AddDaily("ok", "03:00", time.Second, func(context.Context) error { calls.Add(1); return nil })
	_ = s.AddDaily("bad", "03:00", time.Second, func(context.Context) error { return boom })
	_ = s.AddDaily("panics", "03:00", time.Second, func(context.Context) error { panic("oops") })

	if err := s.Trigger("ok"); err != nil || calls.Load() != 1 {
		t.Fatalf("Trigger(ok) = %v, calls=%d", err, calls.Load())
	}
	if err := s.Trigger("bad"); !errors.Is(err, boom) {
		t.Fatalf("Trigger(bad) = %v", err)
	}
	if err := s.Trigger("panics"); err == nil {
		t.Fatal("panic should surface as an error")
	}
	if err := s.Trigger("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}

	hist := s.Snapshot().History
	if len(hist) != 3 || hist[0].Err != "" || hist[1].Err != "boom" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	release := make(chan struct{})
	entered := make(chan struct{})
	_ = s.AddDaily("slow", "03:00", 5*time.Second, func(context.Context) error {
		close(entered)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- s.Trigger("slow") }()
	<-entered
	if err := s.Trigger("slow"); !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("second Trigger = %v, want ErrOverlapSkip", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Trigger = %v", err)
	}
}
