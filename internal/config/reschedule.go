package config

import (
	"maps"
	"slices"

	"classbell/internal/timetable"
)

// PruneReschedule drops reschedule days before today and returns them
// sorted. Unparseable keys are left for Validate to report.
func (c *Config) PruneReschedule(today timetable.Date) []string {
	var stale []string
	for ds := range c.Schedule.Reschedule {
		d, err := timetable.ParseDate(ds)
		if err != nil || !d.Before(today) {
			continue
		}
		stale = append(stale, ds)
	}
	if len(stale) == 0 {
		return nil
	}
	m := maps.Clone(c.Schedule.Reschedule)
	for _, ds := range stale {
		delete(m, ds)
	}
	c.Schedule.Reschedule = m
	slices.Sort(stale)
	return stale
}
