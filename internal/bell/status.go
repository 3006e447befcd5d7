package bell

import (
	"time"

	"classbell/internal/timetable"
)

// Status is the "now / next" view of a day.
type Status struct {
	Date       timetable.Date
	TimelineID string
	Label      string
	State      State

	Current   *timetable.Entry
	Next      []timetable.Entry
	Remaining time.Duration
	// Progress of the current entry in percent.
	Progress float64
	NextBell *Transition
}

// StatusAt reports what is happening in plan at now.
func StatusAt(p Plan, now time.Time) Status {
	st := Status{Date: p.Date, TimelineID: p.TimelineID, Label: p.Label}
	loc := now.Location()
	for i := range p.Entries {
		e := p.Entries[i]
		start, end := e.Start.On(p.Date, loc), e.End.On(p.Date, loc)
		switch {
		case !now.Before(start) && now.Before(end):
			st.Current = &e
			st.Remaining = end.Sub(now)
			st.Progress = float64(now.Sub(start)) / float64(end.Sub(start)) * 100
		case start.After(now):
			st.Next = append(st.Next, e)
		}
	}
	if i := p.Next(now); i < len(p.Transitions) {
		tr := p.Transitions[i]
		st.NextBell = &tr
	}
	return st
}
