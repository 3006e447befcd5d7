package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"classbell/internal/api"
	"classbell/internal/bell"
	"classbell/internal/eventbus"
	"classbell/internal/notifier"
	"classbell/internal/storage"
	"classbell/internal/task/scheduler"
	"classbell/internal/timetable"
	logx "classbell/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	timetable *timetable.Store
	file      *storage.ScheduleFile

	clock  bell.Clock
	offset time.Duration
	bells  *bell.Scheduler
	notif  *notifier.Service
	cron   *scheduler.Service
	api    *api.Server

	bellMu     sync.Mutex
	bellCancel context.CancelFunc
	bellDone   chan struct{}
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	ts, file, err := OpenSchedule(cfg, bus, log)
	if err != nil {
		return nil, err
	}

	clock, offset, err := clockFor(cfg)
	if err != nil {
		return nil, err
	}
	bellCfg, err := mapBellConfig(cfg)
	if err != nil {
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	sinks, err := buildSinks(cfg, log)
	if err != nil {
		return nil, err
	}
	notifSvc := notifier.New(ncfg, log, bus, store, sinks...)

	opts := []bell.Option{
		bell.WithClock(clock),
		bell.WithBus(bus),
		bell.WithLogger(log.With(logx.String("comp", "bell"))),
	}
	if store != nil {
		opts = append(opts, bell.WithLedger(store))
	}
	bells := bell.New(bellCfg, ts, notifSvc.Bells(ts), opts...)

	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	cronSvc := scheduler.New(scfg, log.With(logx.String("comp", "cron")), bus)

	a := &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		timetable: ts,
		file:      file,
		clock:     clock,
		offset:    offset,
		bells:     bells,
		notif:     notifSvc,
		cron:      cronSvc,
		api:       api.New(ts, bells, bellCfg.Location, log),
	}
	if err := a.registerJobs(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Timetable exposes the live schedule store.
func (a *App) Timetable() *timetable.Store { return a.timetable }

// Bells exposes the bell scheduler.
func (a *App) Bells() *bell.Scheduler { return a.bells }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) now() time.Time { return a.bells.Now() }

// validate rejects a reloaded config before it is committed.
func (a *App) validate(_ context.Context, cfg *Config) error {
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := buildSinks(cfg, logx.Nop()); err != nil {
		return err
	}
	if _, err := mapBellConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDurations(cfg); err != nil {
		return err
	}
	if rollover := strings.TrimSpace(cfg.Bell.Rollover); rollover != "" {
		if _, err := scheduler.ParseSchedule(rollover); err != nil {
			return fmt.Errorf("bell.rollover: %w", err)
		}
	}
	if c, changed, err := cycleOverride(cfg, a.timetable.Snapshot().Cycle); err != nil {
		return err
	} else if changed {
		probe := a.timetable.Snapshot()
		probe.Cycle = c
		if err := probe.Validate(); err != nil {
			return fmt.Errorf("schedule cycle: %w", err)
		}
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validate)

	cfg := a.cfgm.Get()
	c := a.sup.Context()

	if a.notif.Enabled() {
		a.notif.Start(c)
	}
	if cfg.Bell.Enabled {
		a.startBells(c)
	} else {
		a.log.Warn("bells disabled via config")
	}
	if a.cron.Enabled() {
		a.cron.Start(c)
	}
	a.api.Apply(c, mapAPIConfig(cfg))

	// Store edits (API, file reload, reschedule) replace the bell plan.
	changes, unsubChanges := a.bus.Subscribe(32, eventbus.ScheduleChanged, eventbus.SubjectsChanged)
	a.sup.Go0("bell.invalidate", func(c context.Context) {
		defer unsubChanges()
		for {
			select {
			case <-c.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				a.bells.Invalidate()
			}
		}
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	if cfg.Schedule.Watch {
		a.sup.Go("schedule.watch", a.watchSchedule)
	}

	// Expired reschedule days are dropped once at startup as well as nightly.
	a.sup.Go0("reschedule.cleanup", func(c context.Context) {
		if err := a.pruneReschedule(c); err != nil {
			a.log.Warn("reschedule cleanup failed", logx.Err(err))
		}
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started",
		logx.String("schedule", a.file.Path),
		logx.Int("timelines", len(a.timetable.Timelines())),
		logx.Duration("time_offset", a.offset),
	)
	return nil
}

func (a *App) startBells(ctx context.Context) {
	a.bellMu.Lock()
	defer a.bellMu.Unlock()
	if a.bellCancel != nil {
		return
	}
	c, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.bellCancel, a.bellDone = cancel, done
	a.sup.Go("bell.run", func(context.Context) error {
		defer close(done)
		return a.bells.Run(c)
	})
}

func (a *App) stopBells(ctx context.Context) {
	a.bellMu.Lock()
	cancel, done := a.bellCancel, a.bellDone
	a.bellCancel, a.bellDone = nil, nil
	a.bellMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// applyConfig pushes a reloaded config into the running services.
func (a *App) applyConfig(c context.Context, oldCfg, newCfg *Config) {
	sections, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}
	if newCfg.Schedule.Path != oldCfg.Schedule.Path || newCfg.Schedule.TimeOffset != oldCfg.Schedule.TimeOffset {
		a.log.Warn("schedule.path or schedule.time_offset changed; restart required for changes to take effect")
	}

	a.logs.Apply(mapLogConfig(newCfg))

	// schedule: cycle override, reschedule days, default durations
	if cyc, changed, err := cycleOverride(newCfg, a.timetable.Snapshot().Cycle); err != nil {
		a.log.Warn("invalid cycle override; keeping previous", logx.Err(err))
	} else if changed {
		if err := a.timetable.SetCycle(cyc); err != nil {
			a.log.Warn("cycle change rejected", logx.Err(err))
		}
	}
	if m, err := newCfg.RescheduleMap(); err == nil {
		a.timetable.SetReschedule(m)
	}
	if d, err := mapDurations(newCfg); err == nil {
		a.timetable.SetDefaults(d)
	}

	// bells
	if bc, err := mapBellConfig(newCfg); err != nil {
		a.log.Warn("invalid bell config; keeping previous", logx.Err(err))
	} else {
		a.bells.Apply(bc)
	}
	switch {
	case oldCfg.Bell.Enabled && !newCfg.Bell.Enabled:
		a.log.Info("bells disabled via config")
		stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
		a.stopBells(stopCtx)
		cancel()
	case !oldCfg.Bell.Enabled && newCfg.Bell.Enabled:
		a.log.Info("bells enabled via config")
		a.startBells(c)
	}

	// notifier
	prevNotifEnabled := a.notif.Enabled()
	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
		if sinks, err := buildSinks(newCfg, a.log); err != nil {
			a.log.Warn("invalid sinks; keeping previous", logx.Err(err))
		} else {
			a.notif.SetSinks(sinks...)
		}
		if prevNotifEnabled && !ncfg.Enabled {
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		} else if !prevNotifEnabled && ncfg.Enabled {
			a.log.Info("notifier enabled via config")
			a.notif.Start(c)
		}
	}

	// housekeeping cron
	prevCronEnabled := a.cron.Enabled()
	if scfg, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.cron.Apply(scfg)
		if err := a.registerJobs(newCfg); err != nil {
			a.log.Warn("housekeeping jobs not updated", logx.Err(err))
		}
		if prevCronEnabled && !scfg.Enabled {
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.cron.Stop(stopCtx)
			cancel()
		} else if !prevCronEnabled && scfg.Enabled {
			a.cron.Start(c)
		}
	}

	a.api.Apply(c, mapAPIConfig(newCfg))

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// step runs one shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
			max = time.Until(dl)
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("bells", 2*time.Second, func(c context.Context) error { a.stopBells(c); return nil })
	step("api", 2*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("cron", 2*time.Second, func(c context.Context) error { a.cron.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
