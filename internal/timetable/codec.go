package timetable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// Document is the JSON import/export form of a Schedule.
type Document struct {
	SchemaVersion string        `json:"schema_version"`
	Cycle         docCycle      `json:"cycle"`
	Subjects      []docSubject  `json:"subjects,omitempty"`
	Timelines     []docTimeline `json:"timelines"`
}

type docCycle struct {
	Length int    `json:"length"`
	Anchor string `json:"anchor"`
}

type docSubject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Short    string `json:"short,omitempty"`
	Teacher  string `json:"teacher,omitempty"`
	Location string `json:"location,omitempty"`
	Color    string `json:"color,omitempty"`
	Homeroom bool   `json:"homeroom,omitempty"`
}

type docTimeline struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Recurrence RecurrenceDoc `json:"recurrence"`
	Entries    []docEntry    `json:"entries"`
}

// RecurrenceDoc is the wire form of a Recurrence.
type RecurrenceDoc struct {
	Kind     RecurrenceKind `json:"kind"`
	Round    *int           `json:"round,omitempty"`
	Rounds   []int          `json:"rounds,omitempty"`
	Mode     MatchMode      `json:"mode"`
	Weekdays []string       `json:"weekdays,omitempty"`
	Dates    []string       `json:"dates,omitempty"`
}

type docEntry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	SubjectID string    `json:"subject_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
}

// ToDocument converts a schedule into its wire form.
func ToDocument(s Schedule) Document {
	doc := Document{
		SchemaVersion: SchemaVersion,
		Cycle:         docCycle{Length: s.Cycle.Length, Anchor: s.Cycle.Anchor.String()},
		Timelines:     make([]docTimeline, 0, len(s.Timelines)),
	}
	for _, sub := range s.Subjects {
		doc.Subjects = append(doc.Subjects, docSubject(sub))
	}
	for _, t := range s.Timelines {
		dt := docTimeline{ID: t.ID, Label: t.Label, Recurrence: toRecurrenceDoc(t.Recurrence), Entries: make([]docEntry, 0, len(t.Entries))}
		for _, e := range t.Entries {
			dt.Entries = append(dt.Entries, docEntry(e))
		}
		doc.Timelines = append(doc.Timelines, dt)
	}
	return doc
}

func toRecurrenceDoc(r Recurrence) RecurrenceDoc {
	out := RecurrenceDoc{Kind: r.Kind, Mode: r.Mode, Rounds: slices.Clone(r.Rounds)}
	if r.Kind == SpecificRound {
		round := r.Round
		out.Round = &round
	}
	if !r.Weekdays.Empty() {
		out.Weekdays = r.Weekdays.Names()
	}
	for _, d := range r.Dates {
		out.Dates = append(out.Dates, d.String())
	}
	return out
}

// Schedule converts the document back to the model and validates it,
// including the conflict check over every timeline.
func (doc Document) Schedule() (Schedule, error) {
	anchor, err := ParseDate(doc.Cycle.Anchor)
	if err != nil {
		return Schedule{}, &ValidationError{Field: "cycle.anchor", Reason: err.Error()}
	}
	s := Schedule{Cycle: Cycle{Length: doc.Cycle.Length, Anchor: anchor}}
	for _, sub := range doc.Subjects {
		s.Subjects = append(s.Subjects, Subject(sub))
	}
	for _, dt := range doc.Timelines {
		rec, err := dt.Recurrence.Model()
		if err != nil {
			return Schedule{}, fmt.Errorf("timeline %q: %w", dt.Label, err)
		}
		t := Timeline{ID: dt.ID, Label: dt.Label, Recurrence: rec}
		for _, de := range dt.Entries {
			t.Entries = append(t.Entries, Entry(de))
		}
		s.Timelines = append(s.Timelines, t)
	}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Model converts the wire form into a Recurrence. Range checks against the
// cycle are left to Recurrence.Validate.
func (dr RecurrenceDoc) Model() (Recurrence, error) {
	r := Recurrence{Kind: dr.Kind, Mode: dr.Mode, Rounds: slices.Clone(dr.Rounds)}
	if dr.Round != nil {
		r.Round = *dr.Round
	} else if dr.Kind == SpecificRound {
		return Recurrence{}, &ValidationError{Field: "recurrence.round", Reason: "required for specific_round"}
	}
	for _, name := range dr.Weekdays {
		wd, err := ParseWeekday(name)
		if err != nil {
			return Recurrence{}, &ValidationError{Field: "recurrence.weekdays", Reason: err.Error()}
		}
		r.Weekdays = r.Weekdays.With(wd)
	}
	for _, raw := range dr.Dates {
		d, err := ParseDate(raw)
		if err != nil {
			return Recurrence{}, &ValidationError{Field: "recurrence.dates", Reason: err.Error()}
		}
		r.Dates = append(r.Dates, d)
	}
	return r, nil
}

// Export writes s as indented JSON.
func Export(w io.Writer, s Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToDocument(s))
}

// Import decodes and validates a JSON document. Unknown fields are rejected.
func Import(r io.Reader) (Schedule, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Schedule{}, &ValidationError{Field: "document", Reason: err.Error()}
	}
	return doc.Schedule()
}

func ImportBytes(b []byte) (Schedule, error) { return Import(bytes.NewReader(b)) }

func ExportBytes(s Schedule) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
