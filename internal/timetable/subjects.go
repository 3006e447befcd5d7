package timetable

import (
	"fmt"
	"strings"
)

// Subject is display metadata shared by many entries.
type Subject struct {
	ID       string
	Name     string
	Short    string
	Teacher  string
	Location string
	Color    string
	// Homeroom is set when the subject is taught in the class's own room.
	Homeroom bool
}

// Registry looks subjects up by id. Entries only store the id.
type Registry interface {
	Lookup(id string) (Subject, bool)
}

// SubjectMap is a read-only Registry over a fixed list.
type SubjectMap map[string]Subject

func NewSubjectMap(subjects []Subject) SubjectMap {
	m := make(SubjectMap, len(subjects))
	for _, s := range subjects {
		m[s.ID] = s
	}
	return m
}

func (m SubjectMap) Lookup(id string) (Subject, bool) {
	s, ok := m[id]
	return s, ok
}

// SubjectOf resolves the entry's subject. A dangling reference returns a
// *ReferenceError alongside a zero Subject so callers can render it unset.
func SubjectOf(reg Registry, e Entry) (Subject, error) {
	if e.SubjectID == "" || reg == nil {
		return Subject{}, nil
	}
	s, ok := reg.Lookup(e.SubjectID)
	if !ok {
		return Subject{}, &ReferenceError{EntryID: e.ID, SubjectID: e.SubjectID}
	}
	return s, nil
}

// Title is what a bell or the UI shows for e: explicit title, then subject
// name, then a label for the kind.
func Title(reg Registry, e Entry) string {
	if t := strings.TrimSpace(e.Title); t != "" {
		return t
	}
	if s, err := SubjectOf(reg, e); err == nil && s.Name != "" {
		return s.Name
	}
	return KindLabel(e.Kind)
}

func KindLabel(k EntryKind) string {
	switch k {
	case KindClass:
		return "Class"
	case KindBreak:
		return "Break"
	case KindActivity:
		return "Activity"
	}
	return string(k)
}

func (s Subject) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return &ValidationError{Field: "subject.id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "subject.name", Reason: "must not be empty"}
	}
	return nil
}

func validateSubjects(subjects []Subject) error {
	ids := map[string]bool{}
	names := map[string]bool{}
	for _, s := range subjects {
		if err := s.Validate(); err != nil {
			return err
		}
		if ids[s.ID] {
			return &ValidationError{Field: "subject.id", Reason: fmt.Sprintf("duplicate id %q", s.ID)}
		}
		ids[s.ID] = true
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if names[key] {
			return &ValidationError{Field: "subject.name", Reason: fmt.Sprintf("duplicate name %q", s.Name)}
		}
		names[key] = true
	}
	return nil
}

func subjectRefs(s Schedule, id string) int {
	n := 0
	for _, t := range s.Timelines {
		for _, e := range t.Entries {
			if e.SubjectID == id {
				n++
			}
		}
	}
	return n
}
