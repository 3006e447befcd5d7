package timetable

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	s := sampleSchedule(t)
	s.Timelines = append(s.Timelines,
		Timeline{
			ID:         "custom",
			Label:      "Custom Thursday",
			Recurrence: Recurrence{Kind: Custom, Rounds: []int{1, 0}, Mode: ByWeek, Weekdays: Weekdays(time.Thursday, time.Monday)},
			Entries:    []Entry{{ID: "c1", Kind: KindClass, Title: "Lab", Start: MustTime("13:00:30"), End: MustTime("14:00")}},
		},
		Timeline{
			ID:         "exam",
			Label:      "Exam day",
			Recurrence: Recurrence{Kind: EveryWeek, Mode: ByDate, Dates: []Date{mustDate(t, "2025-01-01"), mustDate(t, "2025-06-30")}},
			Entries:    []Entry{{ID: "x1", Kind: KindActivity, Title: "Exam", Start: MustTime("09:00"), End: MustTime("12:00")}},
		},
	)

	raw, err := ExportBytes(s)
	if err != nil {
		t.Fatalf("ExportBytes: %v", err)
	}
	got, err := ImportBytes(raw)
	if err != nil {
		t.Fatalf("ImportBytes: %v\n%s", err, raw)
	}
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("round trip mismatch\n got: %+v\nwant: %+v", got, s)
	}
	if !strings.Contains(string(raw), `"schema_version": "`+SchemaVersion+`"`) {
		t.Fatalf("export lacks schema version:\n%s", raw)
	}
}

func TestImportRejectsOverlaps(t *testing.T) {
	t.Parallel()
	doc := `{
  "schema_version": "1.0.0",
  "cycle": {"length": 2, "anchor": "2024-01-01"},
  "timelines": [{
    "id": "mon", "label": "Monday",
    "recurrence": {"kind": "every_week", "mode": "by_week", "weekdays": ["mon"]},
    "entries": [
      {"id": "a", "kind": "class", "start": "09:00", "end": "09:45"},
      {"id": "b", "kind": "class", "start": "09:40", "end": "10:30"},
      {"id": "c", "kind": "break", "start": "10:00", "end": "10:15"}
    ]
  }]
}`
	_, err := ImportBytes([]byte(doc))
	var oe *OverlapError
	if !errors.As(err, &oe) {
		t.Fatalf("ImportBytes err = %v, want *OverlapError", err)
	}
	if oe.With.ID != "a" || oe.Entry.ID != "b" || oe.Range.String() != "09:40-09:45" {
		t.Fatalf("first pair = %s/%s %s", oe.With.ID, oe.Entry.ID, oe.Range)
	}
	if len(oe.Pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(oe.Pairs))
	}
}

func TestImportRejectsBadDocuments(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown field", doc: `{"cycle":{"length":1,"anchor":"2024-01-01"},"timelines":[],"extra":1}`},
		{name: "bad anchor", doc: `{"cycle":{"length":1,"anchor":"01/01/2024"},"timelines":[]}`},
		{name: "bad time", doc: `{"cycle":{"length":1,"anchor":"2024-01-01"},"timelines":[{"id":"t","label":"T","recurrence":{"kind":"every_week","mode":"by_week","weekdays":["mon"]},"entries":[{"id":"a","kind":"class","start":"25:00","end":"26:00"}]}]}`},
		{name: "missing round", doc: `{"cycle":{"length":2,"anchor":"2024-01-01"},"timelines":[{"id":"t","label":"T","recurrence":{"kind":"specific_round","mode":"by_week","weekdays":["mon"]},"entries":[]}]}`},
		{name: "mixed modes", doc: `{"cycle":{"length":2,"anchor":"2024-01-01"},"timelines":[{"id":"t","label":"T","recurrence":{"kind":"every_week","mode":"by_date","weekdays":["mon"],"dates":["2024-01-01"]},"entries":[]}]}`},
		{name: "inverted entry", doc: `{"cycle":{"length":1,"anchor":"2024-01-01"},"timelines":[{"id":"t","label":"T","recurrence":{"kind":"every_week","mode":"by_week","weekdays":["tue"]},"entries":[{"id":"a","kind":"class","start":"10:00","end":"09:00"}]}]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ImportBytes([]byte(tt.doc))
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ImportBytes err = %v, want *ValidationError", err)
			}
		})
	}
}
