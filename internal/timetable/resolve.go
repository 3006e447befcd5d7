package timetable

import "time"

// ResolveConfig is the schedule context the resolver needs besides the
// timelines themselves.
type ResolveConfig struct {
	Cycle Cycle
	// Reschedule lets a date borrow another weekday's timetable.
	Reschedule map[Date]time.Weekday
}

// WeeksSinceAnchor counts ISO weeks (Monday start) between the anchor's week
// and date's week. Dates before the anchor give negative values.
func WeeksSinceAnchor(date, anchor Date) int {
	days := date.Monday().DaysSince(anchor.Monday())
	return floorDiv(days, 7)
}

// RoundOf returns the cycle round of date, always in [0, cycle.Length).
func RoundOf(date Date, cycle Cycle) int {
	n := cycle.Length
	if n < 1 {
		n = 1
	}
	return floorMod(WeeksSinceAnchor(date, cycle.Anchor), n)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// EffectiveWeekday is the weekday used for week-mode matching on date.
func (c ResolveConfig) EffectiveWeekday(date Date) time.Weekday {
	if wd, ok := c.Reschedule[date]; ok {
		return wd
	}
	return date.Weekday()
}

// Resolve picks the timeline active on date.
//
// A date-mode timeline listing the date wins outright. Otherwise week-mode
// timelines containing the weekday are matched against the date's round; a
// specific_round or custom rule beats every_week and ties go to the earlier
// timeline. ok is false when nothing is scheduled.
func Resolve(date Date, cfg ResolveConfig, timelines []Timeline) (Timeline, bool) {
	i := resolveIndex(date, cfg, timelines)
	if i < 0 {
		return Timeline{}, false
	}
	return timelines[i], true
}

func resolveIndex(date Date, cfg ResolveConfig, timelines []Timeline) int {
	for i, t := range timelines {
		if t.Recurrence.Mode == ByDate && t.Recurrence.HasDate(date) {
			return i
		}
	}

	weekday := cfg.EffectiveWeekday(date)
	round := RoundOf(date, cfg.Cycle)
	best := -1
	for i, t := range timelines {
		r := t.Recurrence
		if r.Mode != ByWeek || !r.Weekdays.Has(weekday) || !r.MatchesRound(round) {
			continue
		}
		if best < 0 || (r.Specific() && !timelines[best].Recurrence.Specific()) {
			best = i
		}
	}
	return best
}
