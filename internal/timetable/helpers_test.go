package timetable

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func entry(id string, kind EntryKind, start, end string) Entry {
	return Entry{ID: id, Kind: kind, Start: MustTime(start), End: MustTime(end)}
}

func weekly(days ...time.Weekday) Recurrence {
	return Recurrence{Kind: EveryWeek, Mode: ByWeek, Weekdays: Weekdays(days...)}
}

func round(n int, days ...time.Weekday) Recurrence {
	return Recurrence{Kind: SpecificRound, Round: n, Mode: ByWeek, Weekdays: Weekdays(days...)}
}

// sampleSchedule is anchored on Monday 2024-01-01 with a two week cycle.
func sampleSchedule(t *testing.T) Schedule {
	t.Helper()
	return Schedule{
		Cycle: Cycle{Length: 2, Anchor: mustDate(t, "2024-01-01")},
		Subjects: []Subject{
			{ID: "math", Name: "Mathematics", Short: "Ma", Teacher: "Ms. Rao", Location: "R101", Color: "#3366ff"},
			{ID: "pe", Name: "Physical Education", Short: "PE", Location: "Gym"},
		},
		Timelines: []Timeline{
			{
				ID:         "mwf",
				Label:      "Mon/Wed/Fri",
				Recurrence: weekly(time.Monday, time.Wednesday, time.Friday),
				Entries: []Entry{
					{ID: "e1", Kind: KindClass, SubjectID: "math", Start: MustTime("08:00"), End: MustTime("08:45")},
					{ID: "e2", Kind: KindBreak, Start: MustTime("08:45"), End: MustTime("09:00")},
					{ID: "e3", Kind: KindClass, SubjectID: "pe", Start: MustTime("09:00"), End: MustTime("09:45")},
				},
			},
			{
				ID:         "tue-a",
				Label:      "Tuesday A",
				Recurrence: round(0, time.Tuesday),
				Entries:    []Entry{entry("t1", KindActivity, "10:00", "11:30")},
			},
		},
	}
}
