package app

import (
	"context"
	"time"

	"classbell/internal/config"
	"classbell/internal/eventbus"
	"classbell/internal/storage"
	"classbell/internal/timetable"
	logx "classbell/pkg/logx"
)

// OpenSchedule loads the schedule document named by cfg and wraps it in a
// store that saves back to the same file. A missing document starts an
// empty schedule whose cycle comes from the config (length 1, anchored on
// this week's Monday, when unset).
func OpenSchedule(cfg *Config, bus eventbus.Bus, log logx.Logger) (*timetable.Store, *storage.ScheduleFile, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	file := storage.NewScheduleFile(cfg.Schedule.Path)
	sched, err := file.Load()
	fresh := false
	if err != nil {
		if !storage.IsNotExist(err) {
			return nil, nil, err
		}
		loc, lerr := cfg.Location()
		if lerr != nil {
			return nil, nil, lerr
		}
		sched = timetable.Schedule{Cycle: timetable.Cycle{
			Length: 1,
			Anchor: timetable.DateOf(time.Now().In(loc)).Monday(),
		}}
		fresh = true
		log.Warn("schedule not found; starting empty", logx.String("path", file.Path))
	}
	if c, changed, err := cycleOverride(cfg, sched.Cycle); err != nil {
		return nil, nil, err
	} else if changed {
		sched.Cycle = c
	}

	defaults, err := mapDurations(cfg)
	if err != nil {
		return nil, nil, err
	}
	reschedule, err := cfg.RescheduleMap()
	if err != nil {
		return nil, nil, err
	}

	store, err := timetable.NewStore(sched,
		timetable.WithPersister(file),
		timetable.WithBus(bus),
		timetable.WithLogger(log.With(logx.String("comp", "timetable"))),
		timetable.WithDefaults(defaults),
	)
	if err != nil {
		return nil, nil, err
	}
	store.SetReschedule(reschedule)
	if fresh {
		if err := file.Save(store.Snapshot()); err != nil {
			log.Warn("could not create schedule file", logx.Err(err))
		}
	}
	if bus != nil {
		bus.Publish(eventbus.Event{Type: eventbus.ScheduleLoaded, Data: file.Path})
	}
	return store, file, nil
}

// watchSchedule reloads the document after outside edits. Saves made by
// this process are recognised and skipped.
func (a *App) watchSchedule(ctx context.Context) error {
	return config.WatchFile(ctx, a.file.Path, 0, a.log, func(context.Context) {
		if a.file.Written() {
			return
		}
		sched, err := a.file.Load()
		if err != nil {
			a.log.Warn("schedule reload rejected", logx.String("path", a.file.Path), logx.Err(err))
			return
		}
		if c, changed, err := cycleOverride(a.cfgm.Get(), sched.Cycle); err == nil && changed {
			sched.Cycle = c
		}
		if err := a.timetable.Replace(sched); err != nil {
			a.log.Warn("schedule reload rejected", logx.String("path", a.file.Path), logx.Err(err))
			return
		}
		a.log.Info("schedule reloaded", logx.String("path", a.file.Path), logx.Int("timelines", len(sched.Timelines)))
	})
}
