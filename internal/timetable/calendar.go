package timetable

import (
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// RuleSet expands a timeline's own recurrence into an rrule set, ignoring
// other timelines. Week rules become WEEKLY rules with an interval of the
// cycle length, one per matching round, starting from the anchor week.
func RuleSet(t Timeline, cycle Cycle, from Date) (*rrule.Set, error) {
	set := &rrule.Set{}
	r := t.Recurrence
	if r.Mode == ByDate {
		for _, d := range r.Dates {
			set.RDate(d.utc())
		}
		return set, nil
	}

	n := max(cycle.Length, 1)
	days := make([]rrule.Weekday, 0, 7)
	for _, wd := range r.Weekdays.Days() {
		days = append(days, rruleWeekdays[wd])
	}

	rounds := []int{0}
	interval := n
	switch r.Kind {
	case EveryWeek:
		interval = 1
	case SpecificRound:
		rounds = []int{r.Round}
	case Custom:
		rounds = r.Rounds
	}

	// The rule must start on or before from, at a week of the right round.
	base := cycle.Anchor.Monday()
	back := floorDiv(WeeksSinceAnchor(from, cycle.Anchor), n) - 1
	for _, round := range rounds {
		start := base.AddDays(7 * (back*n + round))
		if interval == 1 {
			start = from.Monday()
		}
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Interval:  interval,
			Wkst:      rrule.MO,
			Byweekday: days,
			Dtstart:   start.utc(),
		})
		if err != nil {
			return nil, fmt.Errorf("timeline %q: %w", t.Label, err)
		}
		set.RRule(rule)
	}
	return set, nil
}

// Occurrences lists the dates in [from, to] on which t is the active
// timeline. Candidates come from the timeline's own rule plus rescheduled
// dates; each is confirmed with Resolve so priority between timelines holds.
func Occurrences(t Timeline, cfg ResolveConfig, timelines []Timeline, from, to Date) ([]Date, error) {
	if to.Before(from) {
		return nil, nil
	}
	set, err := RuleSet(t, cfg.Cycle, from)
	if err != nil {
		return nil, err
	}
	var candidates []Date
	for _, ts := range set.Between(from.utc(), to.utc(), true) {
		candidates = append(candidates, DateOf(ts.UTC()))
	}
	for d := range cfg.Reschedule {
		if !d.Before(from) && !d.After(to) {
			candidates = append(candidates, d)
		}
	}
	slices.SortFunc(candidates, Date.Compare)
	candidates = slices.Compact(candidates)

	out := make([]Date, 0, len(candidates))
	for _, d := range candidates {
		if got, ok := Resolve(d, cfg, timelines); ok && got.ID == t.ID {
			out = append(out, d)
		}
	}
	return out, nil
}
