package bell

import (
	"cmp"
	"slices"
	"time"

	"classbell/internal/timetable"
)

// Kind is the type of a bell notification.
type Kind string

const (
	ActivityStart Kind = "activity_start"
	ActivityEnd   Kind = "activity_end"
	Dismissal     Kind = "dismissal"
)

// Transition is one bell of a day: the instant, what rings and for which entry.
type Transition struct {
	Kind       Kind
	At         time.Time
	Entry      timetable.Entry
	TimelineID string
	Date       timetable.Date
}

// Plan is the list of transitions of one day for the active timeline.
// An empty TimelineID means nothing is scheduled.
type Plan struct {
	Date        timetable.Date
	TimelineID  string
	Label       string
	Entries     []timetable.Entry
	Transitions []Transition
}

func (p Plan) Active() bool { return p.TimelineID != "" }

// PlanOptions tune how entry boundaries turn into transitions.
type PlanOptions struct {
	// DismissBeforeBreak rings a dismissal instead of activity_end when a
	// break follows an entry.
	DismissBeforeBreak bool
}

// BuildPlan turns the day's timeline into transitions, one per instant:
//
//   - an instant where a class or activity starts rings activity_start;
//   - a break starting as an entry ends rings activity_end for that entry
//     (dismissal with DismissBeforeBreak);
//   - the end of the final entry rings dismissal;
//   - any other non-break end into free time rings activity_end.
func BuildPlan(date timetable.Date, tl timetable.Timeline, ok bool, loc *time.Location, opts PlanOptions) Plan {
	p := Plan{Date: date}
	if !ok {
		return p
	}
	p.TimelineID = tl.ID
	p.Label = tl.Label
	p.Entries = slices.Clone(tl.Entries)
	slices.SortStableFunc(p.Entries, func(a, b timetable.Entry) int { return cmp.Compare(a.Start, b.Start) })
	if len(p.Entries) == 0 {
		return p
	}

	starts := map[timetable.TimeOfDay]timetable.Entry{}
	ends := map[timetable.TimeOfDay]timetable.Entry{}
	instants := make([]timetable.TimeOfDay, 0, 2*len(p.Entries))
	seen := map[timetable.TimeOfDay]bool{}
	for _, e := range p.Entries {
		starts[e.Start] = e
		ends[e.End] = e
		for _, at := range []timetable.TimeOfDay{e.Start, e.End} {
			if !seen[at] {
				seen[at] = true
				instants = append(instants, at)
			}
		}
	}
	slices.Sort(instants)

	final := p.Entries[len(p.Entries)-1]
	for _, at := range instants {
		start, starting := starts[at]
		end, ending := ends[at]

		var tr Transition
		switch {
		case starting && start.Kind != timetable.KindBreak:
			tr = Transition{Kind: ActivityStart, Entry: start}
		case ending && end.ID == final.ID:
			tr = Transition{Kind: Dismissal, Entry: end}
		case starting && ending && end.Kind != timetable.KindBreak:
			tr = Transition{Kind: ActivityEnd, Entry: end}
			if opts.DismissBeforeBreak {
				tr.Kind = Dismissal
			}
		case !starting && ending && end.Kind != timetable.KindBreak:
			tr = Transition{Kind: ActivityEnd, Entry: end}
		default:
			continue
		}
		tr.At = at.On(date, loc)
		tr.TimelineID = tl.ID
		tr.Date = date
		p.Transitions = append(p.Transitions, tr)
	}
	return p
}

// Next returns the index of the first transition at or after now, or
// len(Transitions) when the day is over.
func (p Plan) Next(now time.Time) int {
	for i, tr := range p.Transitions {
		if !tr.At.Before(now) {
			return i
		}
	}
	return len(p.Transitions)
}
