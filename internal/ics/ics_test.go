package ics

import (
	"bytes"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"classbell/internal/timetable"
)

type fakeSource struct {
	timetable.SubjectMap
	days map[timetable.Date]timetable.Timeline
}

func (f fakeSource) Resolve(d timetable.Date) (timetable.Timeline, bool) {
	tl, ok := f.days[d]
	return tl, ok
}

func TestWriteRoundTrips(t *testing.T) {
	t.Parallel()
	monday := timetable.Date{Year: 2024, Month: time.January, Day: 1}
	tl := timetable.Timeline{ID: "mwf", Label: "Mon/Wed/Fri", Entries: []timetable.Entry{
		{ID: "e1", Kind: timetable.KindClass, SubjectID: "math", Start: timetable.HM(8, 0), End: timetable.HM(8, 45)},
		{ID: "e2", Kind: timetable.KindBreak, Start: timetable.HM(8, 45), End: timetable.HM(9, 0)},
	}}
	src := fakeSource{
		SubjectMap: timetable.NewSubjectMap([]timetable.Subject{{ID: "math", Name: "Maths", Location: "Room 3"}}),
		days:       map[timetable.Date]timetable.Timeline{monday: tl, monday.AddDays(2): tl},
	}

	var buf bytes.Buffer
	opt := Options{Location: time.UTC, Stamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := Write(&buf, src, monday, 7, opt); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cal, err := ical.ParseCalendar(&buf)
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}

	first := events[0]
	if got := first.Id(); got != UID(monday, "mwf", "e1") {
		t.Fatalf("UID = %q", got)
	}
	if p := first.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Maths" {
		t.Fatalf("summary = %+v", p)
	}
	if p := first.GetProperty(ical.ComponentPropertyLocation); p == nil || p.Value != "Room 3" {
		t.Fatalf("location = %+v", p)
	}
	start, err := first.GetStartAt()
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
}

func TestCalendarSkipBreaks(t *testing.T) {
	t.Parallel()
	monday := timetable.Date{Year: 2024, Month: time.January, Day: 1}
	src := fakeSource{days: map[timetable.Date]timetable.Timeline{monday: {ID: "x", Entries: []timetable.Entry{
		{ID: "a", Kind: timetable.KindClass, Start: timetable.HM(8, 0), End: timetable.HM(9, 0)},
		{ID: "b", Kind: timetable.KindBreak, Start: timetable.HM(9, 0), End: timetable.HM(9, 10)},
	}}}}
	cal := Calendar(src, monday, 1, Options{Location: time.UTC, SkipBreaks: true})
	if n := len(cal.Events()); n != 1 {
		t.Fatalf("got %d events, want 1", n)
	}
}
