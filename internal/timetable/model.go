package timetable

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the version of the exported data model. Outside consumers
// (plugins, sync tools) compare against it; nothing in this package does.
const SchemaVersion = "1.0.0"

// NewID returns a fresh identifier for timelines and entries.
func NewID() string { return uuid.NewString() }

// ---- Date ----

// Date is a calendar date without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) utc() time.Time { return d.In(time.UTC) }

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday { return d.utc().Weekday() }

// AddDays returns d shifted by n days; n may be negative.
func (d Date) AddDays(n int) Date { return DateOf(d.utc().AddDate(0, 0, n)) }

// Before and After compare calendar dates.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// DaysSince returns the signed number of days from o to d.
func (d Date) DaysSince(o Date) int {
	return int(d.utc().Sub(o.utc()).Hours() / 24)
}

// Monday returns the Monday of d's ISO week.
func (d Date) Monday() Date {
	off := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-off)
}

// MarshalText encodes d as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText decodes a YYYY-MM-DD date.
func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ---- TimeOfDay ----

// TimeOfDay is a wall-clock time as seconds after midnight. 24:00 is allowed
// as an end time.
type TimeOfDay int

// EndOfDay is 24:00, valid only as an end time.
const EndOfDay TimeOfDay = 24 * 60 * 60

// HM returns the time h:m.
func HM(h, m int) TimeOfDay { return TimeOfDay(h*3600 + m*60) }

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || len(p) > 2 {
			return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
		}
		v[i] = n
	}
	h, m, sec := v[0], v[1], v[2]
	if m > 59 || sec > 59 || h > 24 || (h == 24 && (m != 0 || sec != 0)) {
		return 0, fmt.Errorf("invalid time %q (out of range)", s)
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// MustTime is ParseTimeOfDay that panics on error. Use it for literals.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Hour, Minute and Second split t into its clock fields.
func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// String formats t as HH:MM, or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Duration returns t as an offset from midnight.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) * time.Second }

// On returns the instant of t on date d in loc.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// ClockOf returns the time of day of ts in its own location.
func ClockOf(ts time.Time) TimeOfDay {
	h, m, s := ts.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// MarshalText encodes t in its String form.
func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes HH:MM or HH:MM:SS.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ---- Weekdays ----

// WeekdaySet is a bit set of weekdays indexed by time.Weekday.
type WeekdaySet uint8

var weekdayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Weekdays builds a set from days.
func Weekdays(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// With returns s plus d.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet { return s | 1<<uint(d) }
// Has reports whether d is in s.
func (s WeekdaySet) Has(d time.Weekday) bool       { return s&(1<<uint(d)) != 0 }
// Empty reports whether s holds no day.
func (s WeekdaySet) Empty() bool                   { return s&0x7f == 0 }

// Days lists the set Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for i := 1; i <= 7; i++ {
		d := time.Weekday(i % 7)
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Names lists the short names of the set, Monday first.
func (s WeekdaySet) Names() []string {
	days := s.Days()
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = weekdayNames[d]
	}
	return out
}

// ParseWeekday accepts mon..sun as well as full English names.
func ParseWeekday(s string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if v == n || (len(v) > 3 && strings.HasPrefix(strings.ToLower(time.Weekday(i).String()), v)) {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// ---- Entries ----


// EntryKind classifies an entry.
type EntryKind string

const (
	KindClass    EntryKind = "class"
	KindBreak    EntryKind = "break"
	KindActivity EntryKind = "activity"
)

// Valid reports whether k is one of the known kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case KindClass, KindBreak, KindActivity:
		return true
	}
	return false
}

// Entry is one time-bounded block of a timeline. Start is inclusive, End exclusive.
type Entry struct {
	ID        string
	Kind      EntryKind
	SubjectID string
	Title     string
	Start     TimeOfDay
	End       TimeOfDay
}

// Duration is the length of e.
func (e Entry) Duration() time.Duration { return (e.End - e.Start).Duration() }

// Range returns the interval e occupies.
func (e Entry) Range() Range { return Range{Start: e.Start, End: e.End} }

// Validate checks the ID, kind and time bounds of e.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return &ValidationError{Field: "entry.id", Reason: "must not be empty"}
	case !e.Kind.Valid():
		return &ValidationError{Field: "entry.kind", Reason: fmt.Sprintf("unknown kind %q", e.Kind)}
	case e.Start < 0 || e.End > EndOfDay:
		return &ValidationError{Field: "entry.time", Reason: "outside of the day"}
	case e.Start >= e.End:
		return &ValidationError{Field: "entry.time", Reason: fmt.Sprintf("start %s must be before end %s", e.Start, e.End)}
	}
	return nil
}

// Range is a half-open interval of the day.
type Range struct {
	Start TimeOfDay
	End   TimeOfDay
}

// String formats r as start-end.
func (r Range) String() string { return r.Start.String() + "-" + r.End.String() }

// ---- Recurrence ----


// RecurrenceKind selects which weeks of the cycle a rule applies to.
type RecurrenceKind string

const (
	EveryWeek     RecurrenceKind = "every_week"
	SpecificRound RecurrenceKind = "specific_round"
	Custom        RecurrenceKind = "custom"
)

// MatchMode selects whether a rule matches by weekday or by explicit date.
type MatchMode string

const (
	ByWeek MatchMode = "by_week"
	ByDate MatchMode = "by_date"
)

// Recurrence decides on which days a timeline applies. In ByWeek mode the
// weekday set and the round rule are used; in ByDate mode only Dates count.
type Recurrence struct {
	Kind     RecurrenceKind
	Round    int
	Rounds   []int
	Mode     MatchMode
	Weekdays WeekdaySet
	Dates    []Date
}

// Specific reports whether the rule is narrower than every week.
func (r Recurrence) Specific() bool { return r.Kind == SpecificRound || r.Kind == Custom }

// MatchesRound reports whether the rule applies in the given round.
func (r Recurrence) MatchesRound(round int) bool {
	switch r.Kind {
	case EveryWeek:
		return true
	case SpecificRound:
		return r.Round == round
	case Custom:
		return slices.Contains(r.Rounds, round)
	}
	return false
}

// HasDate reports whether d is one of the explicit dates.
func (r Recurrence) HasDate(d Date) bool { return slices.Contains(r.Dates, d) }

// Validate checks r against a cycle of cycleLength weeks.
func (r Recurrence) Validate(cycleLength int) error {
	switch r.Kind {
	case EveryWeek:
	case SpecificRound:
		if r.Round < 0 || r.Round >= cycleLength {
			return &ValidationError{Field: "recurrence.round", Reason: fmt.Sprintf("%d outside cycle of %d", r.Round, cycleLength)}
		}
	case Custom:
		if len(r.Rounds) == 0 {
			return &ValidationError{Field: "recurrence.rounds", Reason: "must not be empty"}
		}
		seen := map[int]bool{}
		for _, n := range r.Rounds {
			if n < 0 || n >= cycleLength {
				return &ValidationError{Field: "recurrence.rounds", Reason: fmt.Sprintf("%d outside cycle of %d", n, cycleLength)}
			}
			if seen[n] {
				return &ValidationError{Field: "recurrence.rounds", Reason: fmt.Sprintf("duplicate round %d", n)}
			}
			seen[n] = true
		}
	default:
		return &ValidationError{Field: "recurrence.kind", Reason: fmt.Sprintf("unknown kind %q", r.Kind)}
	}

	switch r.Mode {
	case ByWeek:
		if r.Weekdays.Empty() {
			return &ValidationError{Field: "recurrence.weekdays", Reason: "must not be empty"}
		}
		if len(r.Dates) > 0 {
			return &ValidationError{Field: "recurrence.dates", Reason: "not allowed with by_week"}
		}
	case ByDate:
		if len(r.Dates) == 0 {
			return &ValidationError{Field: "recurrence.dates", Reason: "must not be empty"}
		}
		if !r.Weekdays.Empty() {
			return &ValidationError{Field: "recurrence.weekdays", Reason: "not allowed with by_date"}
		}
	default:
		return &ValidationError{Field: "recurrence.mode", Reason: fmt.Sprintf("unknown mode %q", r.Mode)}
	}
	return nil
}

func (r Recurrence) clone() Recurrence {
	r.Rounds = slices.Clone(r.Rounds)
	r.Dates = slices.Clone(r.Dates)
	return r
}

// ---- Timeline / Schedule ----

// Timeline is a named daily template ("Day").
type Timeline struct {
	ID         string
	Label      string
	Recurrence Recurrence
	Entries    []Entry
}

// Clone returns a deep copy of t.
func (t Timeline) Clone() Timeline {
	t.Recurrence = t.Recurrence.clone()
	t.Entries = slices.Clone(t.Entries)
	return t
}

// Entry looks up an entry by ID.
func (t Timeline) Entry(id string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func sortEntries(es []Entry) {
	slices.SortStableFunc(es, func(a, b Entry) int {
		if a.Start != b.Start {
			return cmpInt(int(a.Start), int(b.Start))
		}
		return cmpInt(int(a.End), int(b.End))
	})
}

// Cycle is the schedule-wide week rotation.
type Cycle struct {
	Length int
	Anchor Date
}

// Validate checks the length and anchor of c.
func (c Cycle) Validate() error {
	if c.Length < 1 {
		return &ValidationError{Field: "cycle.length", Reason: "must be at least 1"}
	}
	if c.Anchor.IsZero() {
		return &ValidationError{Field: "cycle.anchor", Reason: "must be set"}
	}
	return nil
}

// Schedule is the whole persisted timetable.
type Schedule struct {
	Cycle     Cycle
	Subjects  []Subject
	Timelines []Timeline
}

// Clone returns a deep copy of s.
func (s Schedule) Clone() Schedule {
	out := Schedule{Cycle: s.Cycle, Subjects: slices.Clone(s.Subjects)}
	if s.Timelines != nil {
		out.Timelines = make([]Timeline, len(s.Timelines))
		for i, t := range s.Timelines {
			out.Timelines[i] = t.Clone()
		}
	}
	return out
}

// Timeline looks up a timeline by ID.
func (s Schedule) Timeline(id string) (Timeline, bool) {
	for _, t := range s.Timelines {
		if t.ID == id {
			return t, true
		}
	}
	return Timeline{}, false
}

func (s Schedule) timelineIndex(id string) int {
	return slices.IndexFunc(s.Timelines, func(t Timeline) bool { return t.ID == id })
}

// Validate checks names, recurrences, entries and overlaps. The first
// problem found is returned; overlaps carry every conflicting pair.
func (s Schedule) Validate() error {
	if err := s.Cycle.Validate(); err != nil {
		return err
	}
	if err := validateSubjects(s.Subjects); err != nil {
		return err
	}
	ids := map[string]bool{}
	labels := map[string]bool{}
	for _, t := range s.Timelines {
		if strings.TrimSpace(t.ID) == "" {
			return &ValidationError{Field: "timeline.id", Reason: "must not be empty"}
		}
		if ids[t.ID] {
			return &ValidationError{Field: "timeline.id", Reason: fmt.Sprintf("duplicate id %q", t.ID)}
		}
		ids[t.ID] = true
		if err := checkLabel(t.Label, labels); err != nil {
			return err
		}
		if err := t.Recurrence.Validate(s.Cycle.Length); err != nil {
			return fmt.Errorf("timeline %q: %w", t.Label, err)
		}
		entryIDs := map[string]bool{}
		for _, e := range t.Entries {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("timeline %q: %w", t.Label, err)
			}
			if entryIDs[e.ID] {
				return &ValidationError{Field: "entry.id", Reason: fmt.Sprintf("duplicate id %q in timeline %q", e.ID, t.Label)}
			}
			entryIDs[e.ID] = true
		}
		if pairs := CheckTimeline(t.Entries); len(pairs) > 0 {
			return newOverlapError(t.ID, pairs)
		}
	}
	return nil
}

func checkLabel(label string, seen map[string]bool) error {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return &ValidationError{Field: "timeline.label", Reason: "must not be empty"}
	}
	if seen[key] {
		return &ValidationError{Field: "timeline.label", Reason: fmt.Sprintf("duplicate name %q", label)}
	}
	seen[key] = true
	return nil
}
