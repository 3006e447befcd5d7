package timetable

import (
	"reflect"
	"testing"
	"time"
)

func TestWeeksSinceAnchor(t *testing.T) {
	t.Parallel()
	anchor := mustDate(t, "2024-01-03") // a Wednesday; its ISO week starts 2024-01-01
	tests := []struct {
		date string
		want int
	}{
		{"2024-01-01", 0},
		{"2024-01-07", 0},
		{"2024-01-08", 1},
		{"2024-01-21", 2},
		{"2023-12-31", -1},
		{"2023-12-25", -1},
		{"2023-12-24", -2},
	}
	for _, tt := range tests {
		if got := WeeksSinceAnchor(mustDate(t, tt.date), anchor); got != tt.want {
			t.Fatalf("WeeksSinceAnchor(%s) = %d, want %d", tt.date, got, tt.want)
		}
	}
}

func TestRoundOfIsAlwaysInCycle(t *testing.T) {
	t.Parallel()
	cycle := Cycle{Length: 3, Anchor: mustDate(t, "2024-01-01")}
	start := mustDate(t, "2023-06-01")
	for i := 0; i < 400; i++ {
		r := RoundOf(start.AddDays(i), cycle)
		if r < 0 || r >= cycle.Length {
			t.Fatalf("RoundOf(%s) = %d, outside [0,%d)", start.AddDays(i), r, cycle.Length)
		}
	}
	if got := RoundOf(mustDate(t, "2023-12-25"), cycle); got != 2 {
		t.Fatalf("week before anchor should be round 2, got %d", got)
	}
}

func TestResolveAlternatingRoundsPartitionWeeks(t *testing.T) {
	t.Parallel()
	anchor := mustDate(t, "2024-01-01")
	cfg := ResolveConfig{Cycle: Cycle{Length: 2, Anchor: anchor}}
	timelines := []Timeline{
		{ID: "A", Label: "Week A", Recurrence: round(0, time.Monday)},
		{ID: "B", Label: "Week B", Recurrence: round(1, time.Monday)},
	}
	for w := -60; w <= 60; w++ {
		d := anchor.AddDays(7 * w)
		got, ok := Resolve(d, cfg, timelines)
		if !ok {
			t.Fatalf("%s: nothing resolved", d)
		}
		want := "A"
		if w%2 != 0 {
			want = "B"
		}
		if got.ID != want {
			t.Fatalf("%s (week %d): got %s, want %s", d, w, got.ID, want)
		}
	}
}

func TestResolvePriority(t *testing.T) {
	t.Parallel()
	cfg := ResolveConfig{Cycle: Cycle{Length: 2, Anchor: mustDate(t, "2024-01-01")}}
	timelines := []Timeline{
		{ID: "weekly", Label: "Weekly", Recurrence: weekly(time.Monday, time.Wednesday)},
		{ID: "weekly-2", Label: "Weekly too", Recurrence: weekly(time.Wednesday)},
		{ID: "round0", Label: "Round 0", Recurrence: round(0, time.Monday)},
		{ID: "custom", Label: "Custom", Recurrence: Recurrence{Kind: Custom, Rounds: []int{1}, Mode: ByWeek, Weekdays: Weekdays(time.Monday)}},
		{ID: "newyear", Label: "New Year", Recurrence: Recurrence{Kind: EveryWeek, Mode: ByDate, Dates: []Date{mustDate(t, "2025-01-01")}}},
	}
	tests := []struct {
		name string
		date string
		want string
	}{
		{name: "specific beats every week", date: "2024-01-01", want: "round0"},
		{name: "custom beats every week", date: "2024-01-08", want: "custom"},
		{name: "declaration order breaks ties", date: "2024-01-03", want: "weekly"},
		{name: "date override wins outright", date: "2025-01-01", want: "newyear"},
		{name: "nothing scheduled", date: "2024-01-06", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(mustDate(t, tt.date), cfg, timelines)
			if tt.want == "" {
				if ok {
					t.Fatalf("expected no timeline, got %s", got.ID)
				}
				return
			}
			if !ok || got.ID != tt.want {
				t.Fatalf("Resolve(%s) = %q (ok=%v), want %q", tt.date, got.ID, ok, tt.want)
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()
	s := sampleSchedule(t)
	cfg := ResolveConfig{Cycle: s.Cycle}
	d := mustDate(t, "2024-03-04")
	a, okA := Resolve(d, cfg, s.Timelines)
	b, okB := Resolve(d, cfg, s.Timelines)
	if okA != okB || !reflect.DeepEqual(a, b) {
		t.Fatalf("Resolve not deterministic: %+v vs %+v", a, b)
	}
}

func TestResolveReschedule(t *testing.T) {
	t.Parallel()
	s := sampleSchedule(t)
	sat := mustDate(t, "2024-01-06")
	cfg := ResolveConfig{Cycle: s.Cycle, Reschedule: map[Date]time.Weekday{sat: time.Monday}}
	got, ok := Resolve(sat, cfg, s.Timelines)
	if !ok || got.ID != "mwf" {
		t.Fatalf("rescheduled Saturday = %q (ok=%v), want mwf", got.ID, ok)
	}
	if _, ok := Resolve(sat, ResolveConfig{Cycle: s.Cycle}, s.Timelines); ok {
		t.Fatal("plain Saturday should resolve to nothing")
	}
}
