package timetable

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"classbell/internal/eventbus"
	"classbell/pkg/logx"
)

// Change ops published with eventbus.ScheduleChanged.
const (
	OpReplace         = "replace"
	OpCycle           = "cycle"
	OpTimelineCreate  = "timeline.create"
	OpTimelineUpdate  = "timeline.update"
	OpTimelineDelete  = "timeline.delete"
	OpEntryAdd        = "entry.add"
	OpEntryUpdate     = "entry.update"
	OpEntryRemove     = "entry.remove"
	OpSubjectPut      = "subject.put"
	OpSubjectDelete   = "subject.delete"
	OpRescheduleApply = "reschedule"
)

// Change describes one applied mutation.
type Change struct {
	Op         string `json:"op"`
	TimelineID string `json:"timeline_id,omitempty"`
	EntryID    string `json:"entry_id,omitempty"`
	SubjectID  string `json:"subject_id,omitempty"`
}

// Persister saves a full schedule. It should stage and swap atomically and
// return a *PersistenceError on failure.
type Persister interface {
	Save(s Schedule) error
}

// Durations are the default lengths used by AppendEntry.
type Durations struct {
	Class    time.Duration
	Break    time.Duration
	Activity time.Duration
}

func DefaultDurations() Durations {
	return Durations{Class: 40 * time.Minute, Break: 10 * time.Minute, Activity: 30 * time.Minute}
}

func (d Durations) For(k EntryKind) time.Duration {
	switch k {
	case KindBreak:
		return d.Break
	case KindActivity:
		return d.Activity
	}
	return d.Class
}

// Store is the single owner of the schedule. Mutations are serialized, run
// against a copy, persisted, and only then swapped in, so a failed check or
// save leaves the current model untouched.
type Store struct {
	mu         sync.Mutex
	sched      Schedule
	reschedule map[Date]time.Weekday
	defaults   Durations

	persist Persister
	bus     eventbus.Bus
	log     logx.Logger
}

type StoreOption func(*Store)

func WithPersister(p Persister) StoreOption { return func(s *Store) { s.persist = p } }
func WithBus(b eventbus.Bus) StoreOption    { return func(s *Store) { s.bus = b } }
func WithLogger(l logx.Logger) StoreOption  { return func(s *Store) { s.log = l } }
func WithDefaults(d Durations) StoreOption  { return func(s *Store) { s.defaults = d } }

// NewStore validates sched and takes ownership of a copy.
func NewStore(sched Schedule, opts ...StoreOption) (*Store, error) {
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	s := &Store{sched: sched.Clone(), defaults: DefaultDurations()}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	for i := range s.sched.Timelines {
		sortEntries(s.sched.Timelines[i].Entries)
	}
	return s, nil
}

// Snapshot returns a deep copy of the current schedule.
func (s *Store) Snapshot() Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Clone()
}

func (s *Store) Timelines() []Timeline { return s.Snapshot().Timelines }

func (s *Store) Timeline(id string) (Timeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sched.Timeline(id)
	return t.Clone(), ok
}

func (s *Store) Lookup(id string) (Subject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.sched.Subjects {
		if sub.ID == id {
			return sub, true
		}
	}
	return Subject{}, false
}

func (s *Store) Subjects() []Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sched.Subjects)
}

// ResolveConfig returns the current resolver context.
func (s *Store) ResolveConfig() ResolveConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ResolveConfig{Cycle: s.sched.Cycle, Reschedule: maps.Clone(s.reschedule)}
}

// Resolve runs the resolver against the current snapshot.
func (s *Store) Resolve(date Date) (Timeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := Resolve(date, ResolveConfig{Cycle: s.sched.Cycle, Reschedule: s.reschedule}, s.sched.Timelines)
	return t.Clone(), ok
}

// SetReschedule installs the date -> weekday overrides. They come from
// configuration and are not persisted with the schedule.
func (s *Store) SetReschedule(m map[Date]time.Weekday) {
	s.mu.Lock()
	s.reschedule = maps.Clone(m)
	s.mu.Unlock()
	s.publish(Change{Op: OpRescheduleApply})
}

func (s *Store) SetDefaults(d Durations) {
	s.mu.Lock()
	s.defaults = d
	s.mu.Unlock()
}

func (s *Store) mutate(ch Change, fn func(*Schedule) error) error {
	s.mu.Lock()
	next := s.sched.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.persist != nil {
		if err := s.persist.Save(next); err != nil {
			s.mu.Unlock()
			if _, ok := err.(*PersistenceError); !ok {
				err = &PersistenceError{Op: "save", Err: err}
			}
			s.log.Warn("schedule save failed", logx.String("op", ch.Op), logx.Err(err))
			return err
		}
	}
	s.sched = next
	s.mu.Unlock()

	s.log.Debug("schedule changed",
		logx.String("op", ch.Op),
		logx.String("timeline", ch.TimelineID),
		logx.String("entry", ch.EntryID),
	)
	s.publish(ch)
	return nil
}

func (s *Store) publish(ch Change) {
	if s.bus == nil {
		return
	}
	typ := eventbus.ScheduleChanged
	if strings.HasPrefix(ch.Op, "subject.") {
		typ = eventbus.SubjectsChanged
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ch})
}

// Replace swaps the whole schedule, e.g. after an import or a file reload.
func (s *Store) Replace(next Schedule) error {
	if err := next.Validate(); err != nil {
		return err
	}
	return s.mutate(Change{Op: OpReplace}, func(cur *Schedule) error {
		*cur = next.Clone()
		for i := range cur.Timelines {
			sortEntries(cur.Timelines[i].Entries)
		}
		return nil
	})
}

// SetCycle changes the rotation. Rules that no longer fit are rejected.
func (s *Store) SetCycle(c Cycle) error {
	return s.mutate(Change{Op: OpCycle}, func(cur *Schedule) error {
		cur.Cycle = c
		return cur.Validate()
	})
}

// ---- timelines ----

func (s *Store) CreateTimeline(label string, rec Recurrence) (Timeline, error) {
	t := Timeline{ID: NewID(), Label: strings.TrimSpace(label), Recurrence: rec.clone()}
	err := s.mutate(Change{Op: OpTimelineCreate, TimelineID: t.ID}, func(cur *Schedule) error {
		if err := checkNewLabel(*cur, t.Label, ""); err != nil {
			return err
		}
		if err := rec.Validate(cur.Cycle.Length); err != nil {
			return err
		}
		cur.Timelines = append(cur.Timelines, t)
		return nil
	})
	if err != nil {
		return Timeline{}, err
	}
	return t.Clone(), nil
}

// DuplicateTimeline deep-copies a timeline under a new label; the copy and
// each of its entries get fresh identifiers.
func (s *Store) DuplicateTimeline(id, label string) (Timeline, error) {
	var dup Timeline
	newID := NewID()
	err := s.mutate(Change{Op: OpTimelineCreate, TimelineID: newID}, func(cur *Schedule) error {
		src, ok := cur.Timeline(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrTimelineNotFound, id)
		}
		label = strings.TrimSpace(label)
		if label == "" {
			label = src.Label + " (copy)"
		}
		if err := checkNewLabel(*cur, label, ""); err != nil {
			return err
		}
		dup = src.Clone()
		dup.ID = newID
		dup.Label = label
		for i := range dup.Entries {
			dup.Entries[i].ID = NewID()
		}
		cur.Timelines = append(cur.Timelines, dup)
		return nil
	})
	if err != nil {
		return Timeline{}, err
	}
	return dup.Clone(), nil
}

// UpdateTimeline renames a timeline and replaces its recurrence rule.
func (s *Store) UpdateTimeline(id, label string, rec Recurrence) error {
	return s.mutate(Change{Op: OpTimelineUpdate, TimelineID: id}, func(cur *Schedule) error {
		i := cur.timelineIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTimelineNotFound, id)
		}
		label = strings.TrimSpace(label)
		if err := checkNewLabel(*cur, label, id); err != nil {
			return err
		}
		if err := rec.Validate(cur.Cycle.Length); err != nil {
			return err
		}
		cur.Timelines[i].Label = label
		cur.Timelines[i].Recurrence = rec.clone()
		return nil
	})
}

func (s *Store) DeleteTimeline(id string) error {
	return s.mutate(Change{Op: OpTimelineDelete, TimelineID: id}, func(cur *Schedule) error {
		i := cur.timelineIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTimelineNotFound, id)
		}
		cur.Timelines = slices.Delete(cur.Timelines, i, i+1)
		return nil
	})
}

func checkNewLabel(s Schedule, label, selfID string) error {
	seen := map[string]bool{}
	for _, t := range s.Timelines {
		if t.ID != selfID {
			seen[strings.ToLower(strings.TrimSpace(t.Label))] = true
		}
	}
	return checkLabel(label, seen)
}

// ---- entries ----

// AddEntry inserts e into a timeline. An empty ID is filled in.
func (s *Store) AddEntry(timelineID string, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	err := s.mutate(Change{Op: OpEntryAdd, TimelineID: timelineID, EntryID: e.ID}, func(cur *Schedule) error {
		t, err := timelineRef(cur, timelineID)
		if err != nil {
			return err
		}
		if _, dup := t.Entry(e.ID); dup {
			return &ValidationError{Field: "entry.id", Reason: fmt.Sprintf("duplicate id %q", e.ID)}
		}
		return insertEntry(t, e)
	})
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// AppendEntry adds an entry of kind right after the last one, lasting the
// default duration for that kind. In an empty timeline it starts at start.
func (s *Store) AppendEntry(timelineID string, kind EntryKind, subjectID, title string, start TimeOfDay) (Entry, error) {
	s.mu.Lock()
	d := s.defaults.For(kind)
	s.mu.Unlock()

	e := Entry{ID: NewID(), Kind: kind, SubjectID: subjectID, Title: title}
	err := s.mutate(Change{Op: OpEntryAdd, TimelineID: timelineID, EntryID: e.ID}, func(cur *Schedule) error {
		t, err := timelineRef(cur, timelineID)
		if err != nil {
			return err
		}
		e.Start = start
		if n := len(t.Entries); n > 0 {
			e.Start = t.Entries[n-1].End
		}
		e.End = e.Start + TimeOfDay(d/time.Second)
		if e.End > EndOfDay {
			return &ValidationError{Field: "entry.time", Reason: "no room left in the day"}
		}
		return insertEntry(t, e)
	})
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// UpdateEntry replaces the entry with the same ID. The conflict check skips
// the entry's own old range.
func (s *Store) UpdateEntry(timelineID string, e Entry) error {
	return s.mutate(Change{Op: OpEntryUpdate, TimelineID: timelineID, EntryID: e.ID}, func(cur *Schedule) error {
		t, err := timelineRef(cur, timelineID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(t.Entries, func(x Entry) bool { return x.ID == e.ID })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, e.ID)
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if err := CheckEntry(t.Entries, e); err != nil {
			return withTimeline(err, t.ID)
		}
		t.Entries[i] = e
		sortEntries(t.Entries)
		return nil
	})
}

func (s *Store) RemoveEntry(timelineID, entryID string) error {
	return s.mutate(Change{Op: OpEntryRemove, TimelineID: timelineID, EntryID: entryID}, func(cur *Schedule) error {
		t, err := timelineRef(cur, timelineID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(t.Entries, func(x Entry) bool { return x.ID == entryID })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
		}
		t.Entries = slices.Delete(t.Entries, i, i+1)
		return nil
	})
}

func timelineRef(s *Schedule, id string) (*Timeline, error) {
	i := s.timelineIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTimelineNotFound, id)
	}
	return &s.Timelines[i], nil
}

func insertEntry(t *Timeline, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := CheckEntry(t.Entries, e); err != nil {
		return withTimeline(err, t.ID)
	}
	t.Entries = append(t.Entries, e)
	sortEntries(t.Entries)
	return nil
}

func withTimeline(err error, id string) error {
	if oe, ok := err.(*OverlapError); ok {
		oe.TimelineID = id
	}
	return err
}

// ---- subjects ----

// PutSubject inserts or replaces a subject.
func (s *Store) PutSubject(sub Subject) error {
	return s.mutate(Change{Op: OpSubjectPut, SubjectID: sub.ID}, func(cur *Schedule) error {
		if i := slices.IndexFunc(cur.Subjects, func(x Subject) bool { return x.ID == sub.ID }); i >= 0 {
			cur.Subjects[i] = sub
		} else {
			cur.Subjects = append(cur.Subjects, sub)
		}
		return validateSubjects(cur.Subjects)
	})
}

// DeleteSubject removes a subject. While entries reference it the delete is
// refused with *SubjectInUseError unless cascade is set, in which case those
// entries lose their subject.
func (s *Store) DeleteSubject(id string, cascade bool) error {
	return s.mutate(Change{Op: OpSubjectDelete, SubjectID: id}, func(cur *Schedule) error {
		i := slices.IndexFunc(cur.Subjects, func(x Subject) bool { return x.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSubjectNotFound, id)
		}
		if n := subjectRefs(*cur, id); n > 0 {
			if !cascade {
				return &SubjectInUseError{SubjectID: id, Refs: n}
			}
			for ti := range cur.Timelines {
				for ei := range cur.Timelines[ti].Entries {
					if cur.Timelines[ti].Entries[ei].SubjectID == id {
						cur.Timelines[ti].Entries[ei].SubjectID = ""
					}
				}
			}
		}
		cur.Subjects = slices.Delete(cur.Subjects, i, i+1)
		return nil
	})
}
