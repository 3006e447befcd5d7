package scheduler

import (
	"context"
	"testing"
	"time"

	logx "classbell/pkg/logx"
)

func TestParseScheduleAccepts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		kind  SpecKind
		src   string
		cron  string
		every time.Duration
	}{
		{name: "default rollover", raw: "0 0 * * *", kind: SpecCron, src: "cron", cron: "0 0 * * *"},
		{name: "descriptor", raw: "@daily", kind: SpecCron, src: "cron", cron: "@daily"},
		{name: "cron every", raw: "@every 6h", kind: SpecCron, src: "cron", cron: "@every 6h"},
		{name: "cron prefix trims", raw: "  CRON: 5 0 * * * ", kind: SpecCron, src: "cron", cron: "5 0 * * *"},
		{name: "every prefix", raw: "every:90m", kind: SpecInterval, src: "duration", every: 90 * time.Minute},
		{name: "interval prefix hhmm", raw: "interval:02:30", kind: SpecInterval, src: "hhmm", every: 150 * time.Minute},
		{name: "bare duration", raw: "12h", kind: SpecInterval, src: "duration", every: 12 * time.Hour},
		{name: "bare hhmm", raw: "00:50", kind: SpecInterval, src: "hhmm", every: 50 * time.Minute},
		{name: "three digit hours", raw: "100:00", kind: SpecInterval, src: "hhmm", every: 100 * time.Hour},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tc.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tc.raw, err)
			}
			if got.Kind != tc.kind || got.Source != tc.src || got.Cron != tc.cron || got.Every != tc.every {
				t.Fatalf("ParseSchedule(%q) = %+v", tc.raw, got)
			}
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"   ",
		"cron:",
		"every:",
		"every:0m",
		"0s",
		"-5m",
		"00:00",
		"01:75",
		"interval:12:60",
		"tomorrow",
	} {
		if got, err := ParseSchedule(raw); err == nil {
			t.Errorf("ParseSchedule(%q) = %+v, want error", raw, got)
		}
	}
}

func TestHousekeepingSpecsNormalize(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop(), nil)
	noop := func(context.Context) error { return nil }

	if err := s.AddSchedule("bell.rollover", "0 0 * * *", time.Second, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDaily("reschedule.cleanup", "00:05", time.Second, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDaily("ledger.prune", "03:30", time.Second, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSchedule("resync", "every:90m", time.Second, noop); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"bell.rollover":      "0 0 * * *",
		"reschedule.cleanup": "5 0 * * *",
		"ledger.prune":       "30 3 * * *",
		"resync":             "@every 1h30m0s",
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != len(want) {
		t.Fatalf("got %d schedules, want %d", len(snap.Schedules), len(want))
	}
	for _, it := range snap.Schedules {
		if it.Spec != want[it.Name] {
			t.Errorf("%s spec = %q, want %q", it.Name, it.Spec, want[it.Name])
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		h, m   int
		wantOK bool
	}{
		{in: "00:05", h: 0, m: 5, wantOK: true},
		{in: " 03:30 ", h: 3, m: 30, wantOK: true},
		{in: "23:59", h: 23, m: 59, wantOK: true},
		{in: "24:00"},
		{in: "12:60"},
		{in: "7"},
		{in: "ab:cd"},
	}
	for _, tc := range tests {
		h, m, err := parseHHMM(tc.in)
		if tc.wantOK != (err == nil) {
			t.Fatalf("parseHHMM(%q) err = %v, wantOK %v", tc.in, err, tc.wantOK)
		}
		if tc.wantOK && (h != tc.h || m != tc.m) {
			t.Fatalf("parseHHMM(%q) = %d:%d, want %d:%d", tc.in, h, m, tc.h, tc.m)
		}
	}
}
