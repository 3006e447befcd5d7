// Package sheet moves a schedule in and out of an .xlsx workbook so it can
// be edited in a spreadsheet. The workbook has four sheets: Cycle,
// Subjects, Timelines and Entries, each with a header row.
package sheet

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"classbell/internal/timetable"
)

const (
	sheetCycle     = "Cycle"
	sheetSubjects  = "Subjects"
	sheetTimelines = "Timelines"
	sheetEntries   = "Entries"
)

var (
	subjectHeader  = []any{"id", "name", "short", "teacher", "location", "color", "homeroom"}
	timelineHeader = []any{"id", "label", "kind", "rounds", "mode", "weekdays", "dates"}
	entryHeader    = []any{"timeline", "id", "kind", "subject", "title", "start", "end"}
)

// Export writes s as a workbook.
func Export(w io.Writer, s timetable.Schedule) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetCycle); err != nil {
		return err
	}
	for _, name := range []string{sheetSubjects, sheetTimelines, sheetEntries} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	rows := map[string][][]any{
		sheetCycle: {
			{"length", "anchor", "schema_version"},
			{s.Cycle.Length, s.Cycle.Anchor.String(), timetable.SchemaVersion},
		},
		sheetSubjects:  {subjectHeader},
		sheetTimelines: {timelineHeader},
		sheetEntries:   {entryHeader},
	}
	for _, sub := range s.Subjects {
		rows[sheetSubjects] = append(rows[sheetSubjects], []any{
			sub.ID, sub.Name, sub.Short, sub.Teacher, sub.Location, sub.Color, sub.Homeroom,
		})
	}
	for _, t := range s.Timelines {
		r := t.Recurrence
		rounds := r.Rounds
		if r.Kind == timetable.SpecificRound {
			rounds = []int{r.Round}
		}
		dates := make([]string, 0, len(r.Dates))
		for _, d := range r.Dates {
			dates = append(dates, d.String())
		}
		rows[sheetTimelines] = append(rows[sheetTimelines], []any{
			t.ID, t.Label, string(r.Kind), joinInts(rounds), string(r.Mode),
			strings.Join(r.Weekdays.Names(), ","), strings.Join(dates, ","),
		})
		for _, e := range t.Entries {
			rows[sheetEntries] = append(rows[sheetEntries], []any{
				t.ID, e.ID, string(e.Kind), e.SubjectID, e.Title, e.Start.String(), e.End.String(),
			})
		}
	}

	for name, rs := range rows {
		for i, r := range rs {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", name, i+1, err)
			}
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// Import reads a workbook written by Export (or edited by hand) and
// validates the result, overlaps included.
func Import(r io.Reader) (timetable.Schedule, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return timetable.Schedule{}, &timetable.ValidationError{Field: "workbook", Reason: err.Error()}
	}
	defer f.Close()

	var s timetable.Schedule
	if err := readCycle(f, &s); err != nil {
		return s, err
	}
	if err := readSubjects(f, &s); err != nil {
		return s, err
	}
	index, err := readTimelines(f, &s)
	if err != nil {
		return s, err
	}
	if err := readEntries(f, &s, index); err != nil {
		return s, err
	}
	for i := range s.Timelines {
		slices.SortStableFunc(s.Timelines[i].Entries, func(a, b timetable.Entry) int {
			return int(a.Start - b.Start)
		})
	}
	if err := s.Validate(); err != nil {
		return timetable.Schedule{}, err
	}
	return s, nil
}

// body returns the rows after the header, padded to width.
func body(f *excelize.File, sheet string, width int) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &timetable.ValidationError{Field: sheet, Reason: err.Error()}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		for len(r) < width {
			r = append(r, "")
		}
		for i := range r {
			r[i] = strings.TrimSpace(r[i])
		}
		out = append(out, r)
	}
	return out, nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellErr(sheet string, row int, col, reason string) error {
	// +2: one for the header, one for 1-based rows.
	return &timetable.ValidationError{Field: fmt.Sprintf("%s!%s row %d", sheet, col, row+2), Reason: reason}
}

func readCycle(f *excelize.File, s *timetable.Schedule) error {
	rows, err := body(f, sheetCycle, 2)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &timetable.ValidationError{Field: sheetCycle, Reason: "missing cycle row"}
	}
	n, err := strconv.Atoi(rows[0][0])
	if err != nil {
		return cellErr(sheetCycle, 0, "length", "not a number")
	}
	anchor, err := timetable.ParseDate(rows[0][1])
	if err != nil {
		return cellErr(sheetCycle, 0, "anchor", err.Error())
	}
	s.Cycle = timetable.Cycle{Length: n, Anchor: anchor}
	return nil
}

func readSubjects(f *excelize.File, s *timetable.Schedule) error {
	rows, err := body(f, sheetSubjects, len(subjectHeader))
	if err != nil {
		return err
	}
	for _, r := range rows {
		s.Subjects = append(s.Subjects, timetable.Subject{
			ID: r[0], Name: r[1], Short: r[2], Teacher: r[3], Location: r[4], Color: r[5],
			Homeroom: strings.EqualFold(r[6], "true") || r[6] == "1",
		})
	}
	return nil
}

func readTimelines(f *excelize.File, s *timetable.Schedule) (map[string]int, error) {
	rows, err := body(f, sheetTimelines, len(timelineHeader))
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	for i, r := range rows {
		rec := timetable.Recurrence{Kind: timetable.RecurrenceKind(r[2]), Mode: timetable.MatchMode(r[4])}
		rounds, err := splitInts(r[3])
		if err != nil {
			return nil, cellErr(sheetTimelines, i, "rounds", err.Error())
		}
		if rec.Kind == timetable.SpecificRound && len(rounds) == 1 {
			rec.Round = rounds[0]
		} else {
			rec.Rounds = rounds
		}
		for _, w := range splitList(r[5]) {
			d, err := timetable.ParseWeekday(w)
			if err != nil {
				return nil, cellErr(sheetTimelines, i, "weekdays", err.Error())
			}
			rec.Weekdays = rec.Weekdays.With(d)
		}
		for _, ds := range splitList(r[6]) {
			d, err := timetable.ParseDate(ds)
			if err != nil {
				return nil, cellErr(sheetTimelines, i, "dates", err.Error())
			}
			rec.Dates = append(rec.Dates, d)
		}
		id := r[0]
		if id == "" {
			id = timetable.NewID()
		}
		if _, dup := index[id]; dup {
			return nil, cellErr(sheetTimelines, i, "id", "duplicate id "+id)
		}
		index[id] = len(s.Timelines)
		s.Timelines = append(s.Timelines, timetable.Timeline{ID: id, Label: r[1], Recurrence: rec})
	}
	return index, nil
}

func readEntries(f *excelize.File, s *timetable.Schedule, index map[string]int) error {
	rows, err := body(f, sheetEntries, len(entryHeader))
	if err != nil {
		return err
	}
	for i, r := range rows {
		ti, ok := index[r[0]]
		if !ok {
			return cellErr(sheetEntries, i, "timeline", "unknown timeline "+r[0])
		}
		start, err := timetable.ParseTimeOfDay(r[5])
		if err != nil {
			return cellErr(sheetEntries, i, "start", err.Error())
		}
		end, err := timetable.ParseTimeOfDay(r[6])
		if err != nil {
			return cellErr(sheetEntries, i, "end", err.Error())
		}
		id := r[1]
		if id == "" {
			id = timetable.NewID()
		}
		t := &s.Timelines[ti]
		t.Entries = append(t.Entries, timetable.Entry{
			ID: id, Kind: timetable.EntryKind(r[2]), SubjectID: r[3], Title: r[4], Start: start, End: end,
		})
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitInts(s string) ([]int, error) {
	var out []int
	for _, p := range splitList(s) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
