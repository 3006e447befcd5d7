// Package ics exports resolved school days as an iCalendar feed, one
// VEVENT per timetable entry.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"classbell/internal/timetable"
)

const prodID = "-//classbell//timetable//EN"

// Source is what the export reads. *timetable.Store satisfies it.
type Source interface {
	Resolve(date timetable.Date) (timetable.Timeline, bool)
	timetable.Registry
}

type Options struct {
	Location *time.Location
	// SkipBreaks leaves break entries out of the feed.
	SkipBreaks bool
	// Stamp is DTSTAMP for every event; zero means now.
	Stamp time.Time
}

// Calendar resolves every day in [from, from+days) and adds its entries.
func Calendar(src Source, from timetable.Date, days int, opt Options) *ical.Calendar {
	loc := opt.Location
	if loc == nil {
		loc = time.Local
	}
	stamp := opt.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for i := 0; i < days; i++ {
		date := from.AddDays(i)
		tl, ok := src.Resolve(date)
		if !ok {
			continue
		}
		for _, e := range tl.Entries {
			if opt.SkipBreaks && e.Kind == timetable.KindBreak {
				continue
			}
			ev := cal.AddEvent(UID(date, tl.ID, e.ID))
			ev.SetDtStampTime(stamp.UTC())
			ev.SetStartAt(e.Start.On(date, loc))
			ev.SetEndAt(e.End.On(date, loc))
			ev.SetSummary(timetable.Title(src, e))
			ev.SetDescription(fmt.Sprintf("%s · %s", tl.Label, timetable.KindLabel(e.Kind)))
			if s, err := timetable.SubjectOf(src, e); err == nil && s.Location != "" {
				ev.SetLocation(s.Location)
			}
		}
	}
	return cal
}

// Write serializes Calendar to w.
func Write(w io.Writer, src Source, from timetable.Date, days int, opt Options) error {
	_, err := io.WriteString(w, Calendar(src, from, days, opt).Serialize())
	return err
}

// UID is stable across exports so calendar clients update events in place.
func UID(date timetable.Date, timelineID, entryID string) string {
	return fmt.Sprintf("%s-%s-%s@classbell", date, timelineID, entryID)
}
