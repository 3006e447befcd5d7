package timetable

import (
	"testing"
	"time"
)

func TestOccurrencesFollowRoundsAndOverrides(t *testing.T) {
	t.Parallel()
	anchor := mustDate(t, "2024-01-01")
	timelines := []Timeline{
		{ID: "a", Label: "A", Recurrence: round(0, time.Tuesday)},
		{ID: "b", Label: "B", Recurrence: round(1, time.Tuesday, time.Thursday)},
		{ID: "holiday", Label: "Holiday", Recurrence: Recurrence{Kind: EveryWeek, Mode: ByDate, Dates: []Date{mustDate(t, "2024-01-16")}}},
	}
	cfg := ResolveConfig{
		Cycle:      Cycle{Length: 2, Anchor: anchor},
		Reschedule: map[Date]time.Weekday{mustDate(t, "2024-01-13"): time.Tuesday},
	}

	tests := []struct {
		id   string
		want []string
	}{
		// 2024-01-13 is a Saturday borrowing Tuesday in week 1; 2024-01-16 is taken by the holiday.
		{id: "a", want: []string{"2024-01-02", "2024-01-30"}},
		{id: "b", want: []string{"2024-01-09", "2024-01-11", "2024-01-13", "2024-01-23", "2024-01-25"}},
		{id: "holiday", want: []string{"2024-01-16"}},
	}
	for _, tt := range tests {
		tl, _ := Schedule{Timelines: timelines}.Timeline(tt.id)
		got, err := Occurrences(tl, cfg, timelines, anchor, mustDate(t, "2024-01-31"))
		if err != nil {
			t.Fatalf("Occurrences(%s): %v", tt.id, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Occurrences(%s) = %v, want %v", tt.id, got, tt.want)
		}
		for i := range got {
			if got[i].String() != tt.want[i] {
				t.Fatalf("Occurrences(%s)[%d] = %s, want %s", tt.id, i, got[i], tt.want[i])
			}
		}
	}
}

func TestOccurrencesBeforeAnchor(t *testing.T) {
	t.Parallel()
	anchor := mustDate(t, "2024-01-01")
	timelines := []Timeline{{ID: "a", Label: "A", Recurrence: round(0, time.Monday)}}
	cfg := ResolveConfig{Cycle: Cycle{Length: 2, Anchor: anchor}}
	got, err := Occurrences(timelines[0], cfg, timelines, mustDate(t, "2023-12-01"), mustDate(t, "2023-12-31"))
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	want := []string{"2023-12-04", "2023-12-18"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
