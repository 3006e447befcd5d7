package timetable

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimelineNotFound = errors.New("timeline not found")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrSubjectNotFound  = errors.New("subject not found")
)

// ValidationError rejects an edit before it is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OverlapError names the entry that collides with the candidate and the
// shared interval. Bulk checks attach every conflicting pair in Pairs.
type OverlapError struct {
	TimelineID string
	Entry      Entry
	With       Entry
	Range      Range
	Pairs      []Conflict
}

func (e *OverlapError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "entry %s overlaps %s at %s", describe(e.Entry), describe(e.With), e.Range)
	if n := len(e.Pairs); n > 1 {
		fmt.Fprintf(&b, " (+%d more)", n-1)
	}
	return b.String()
}

func describe(e Entry) string {
	if e.Title != "" {
		return fmt.Sprintf("%q [%s]", e.Title, e.Range())
	}
	return fmt.Sprintf("%s [%s]", e.Kind, e.Range())
}

func newOverlapError(timelineID string, pairs []Conflict) *OverlapError {
	first := pairs[0]
	return &OverlapError{TimelineID: timelineID, Entry: first.B, With: first.A, Range: first.Range, Pairs: pairs}
}

// PersistenceError wraps an I/O failure while saving or exporting. The
// previously saved state and the in-memory model are both left untouched.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ReferenceError reports an entry pointing at a subject that no longer
// exists. Callers display the entry as having no subject.
type ReferenceError struct {
	EntryID   string
	SubjectID string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("entry %s references missing subject %q", e.EntryID, e.SubjectID)
}

func (e *ReferenceError) Unwrap() error { return ErrSubjectNotFound }

// SubjectInUseError blocks deleting a subject that entries still reference.
type SubjectInUseError struct {
	SubjectID string
	Refs      int
}

func (e *SubjectInUseError) Error() string {
	return fmt.Sprintf("subject %q is used by %d entries", e.SubjectID, e.Refs)
}
