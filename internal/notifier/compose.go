package notifier

import (
	"context"
	"fmt"

	"classbell/internal/bell"
	"classbell/internal/timetable"
	kit "classbell/internal/transport"
)

// Compose renders a rung bell as a sink message.
func Compose(ev bell.Event, reg timetable.Registry) kit.Message {
	m := kit.Message{Kind: string(ev.Kind), Level: kit.LevelInfo, FireTime: ev.At}
	name := timetable.Title(reg, ev.Entry)
	switch ev.Kind {
	case bell.ActivityStart:
		m.Title = "Class begins"
		m.Body = fmt.Sprintf("%s until %s", name, ev.Entry.End)
		if s, err := timetable.SubjectOf(reg, ev.Entry); err == nil && s.Location != "" {
			m.Body += " · " + s.Location
		}
	case bell.ActivityEnd:
		m.Title = "Class is over"
		m.Body = name + " has ended"
		if ev.Next != nil {
			m.Body += fmt.Sprintf("\nNext: %s at %s", timetable.Title(reg, *ev.Next), ev.Next.Start)
		}
	case bell.Dismissal:
		m.Title = "School is over"
		m.Level = kit.LevelAnnouncement
		if ev.Next != nil {
			m.Body = fmt.Sprintf("Next: %s at %s", timetable.Title(reg, *ev.Next), ev.Next.Start)
		}
	default:
		m.Title = string(ev.Kind)
	}
	if ev.CatchUp {
		m.Body += " (late)"
	}
	return m
}

// Bells adapts the service to the bell scheduler. Subject names are looked
// up in reg at dispatch time so renames show up without a restart.
func (s *Service) Bells(reg timetable.Registry) bell.Dispatcher {
	return bell.DispatchFunc(func(ctx context.Context, ev bell.Event) error {
		return s.Notify(ctx, Compose(ev, reg))
	})
}
