package sheet

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"classbell/internal/timetable"
)

func sample() timetable.Schedule {
	anchor := timetable.Date{Year: 2024, Month: time.January, Day: 1}
	return timetable.Schedule{
		Cycle: timetable.Cycle{Length: 2, Anchor: anchor},
		Subjects: []timetable.Subject{
			{ID: "math", Name: "Mathematics", Short: "MA", Teacher: "Ms. Rivera", Location: "B12"},
			{ID: "pe", Name: "Physical Education", Homeroom: true},
		},
		Timelines: []timetable.Timeline{
			{
				ID: "mon", Label: "Monday",
				Recurrence: timetable.Recurrence{Kind: timetable.EveryWeek, Mode: timetable.ByWeek, Weekdays: timetable.Weekdays(time.Monday)},
				Entries: []timetable.Entry{
					{ID: "e1", Kind: timetable.KindClass, SubjectID: "math", Start: timetable.HM(8, 0), End: timetable.HM(8, 45)},
					{ID: "e2", Kind: timetable.KindBreak, Title: "Recess", Start: timetable.HM(8, 45), End: timetable.HM(9, 0)},
				},
			},
			{
				ID: "odd", Label: "Odd Tuesday",
				Recurrence: timetable.Recurrence{Kind: timetable.SpecificRound, Round: 1, Mode: timetable.ByWeek, Weekdays: timetable.Weekdays(time.Tuesday, time.Thursday)},
				Entries: []timetable.Entry{
					{ID: "e3", Kind: timetable.KindClass, SubjectID: "pe", Start: timetable.HM(10, 0), End: timetable.HM(11, 0)},
				},
			},
			{
				ID: "trip", Label: "Field trip",
				Recurrence: timetable.Recurrence{Kind: timetable.EveryWeek, Mode: timetable.ByDate, Dates: []timetable.Date{anchor.AddDays(3)}},
				Entries: []timetable.Entry{
					{ID: "e4", Kind: timetable.KindActivity, Title: "Museum", Start: timetable.HM(9, 0), End: timetable.HM(14, 0)},
				},
			},
		},
	}
}

func TestExportImport(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := Export(&buf, sample()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	want := sample()
	if got.Cycle != want.Cycle {
		t.Fatalf("cycle = %+v, want %+v", got.Cycle, want.Cycle)
	}
	if len(got.Subjects) != 2 || got.Subjects[0].Teacher != "Ms. Rivera" || !got.Subjects[1].Homeroom {
		t.Fatalf("subjects = %+v", got.Subjects)
	}
	if len(got.Timelines) != 3 {
		t.Fatalf("timelines = %d, want 3", len(got.Timelines))
	}
	odd := got.Timelines[1]
	if odd.Recurrence.Kind != timetable.SpecificRound || odd.Recurrence.Round != 1 {
		t.Fatalf("odd recurrence = %+v", odd.Recurrence)
	}
	if odd.Recurrence.Weekdays != timetable.Weekdays(time.Tuesday, time.Thursday) {
		t.Fatalf("odd weekdays = %v", odd.Recurrence.Weekdays.Names())
	}
	trip := got.Timelines[2]
	if len(trip.Recurrence.Dates) != 1 || trip.Recurrence.Dates[0].String() != "2024-01-04" {
		t.Fatalf("trip dates = %v", trip.Recurrence.Dates)
	}
	mon := got.Timelines[0]
	if len(mon.Entries) != 2 || mon.Entries[1].Title != "Recess" || mon.Entries[0].End != timetable.HM(8, 45) {
		t.Fatalf("monday entries = %+v", mon.Entries)
	}
}

// edit writes sample() and lets fn change the workbook before it is read back.
func edit(t *testing.T, fn func(f *excelize.File)) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Export(&buf, sample()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	fn(f)
	out, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return out.Bytes()
}

func TestImportRejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		fn      func(f *excelize.File)
		overlap bool
	}{
		{"bad time", func(f *excelize.File) { _ = f.SetCellValue(sheetEntries, "F2", "8h") }, false},
		{"unknown timeline", func(f *excelize.File) { _ = f.SetCellValue(sheetEntries, "A2", "nope") }, false},
		{"bad weekday", func(f *excelize.File) { _ = f.SetCellValue(sheetTimelines, "F2", "funday") }, false},
		{"overlap", func(f *excelize.File) { _ = f.SetCellValue(sheetEntries, "F3", "08:30") }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Import(bytes.NewReader(edit(t, tc.fn)))
			if err == nil {
				t.Fatal("expected error")
			}
			var oe *timetable.OverlapError
			if got := errors.As(err, &oe); got != tc.overlap {
				t.Fatalf("overlap error = %v, want %v (%v)", got, tc.overlap, err)
			}
		})
	}
}

func TestImportNotAWorkbook(t *testing.T) {
	t.Parallel()
	if _, err := Import(bytes.NewReader([]byte("not a zip"))); err == nil {
		t.Fatal("expected error")
	}
}
