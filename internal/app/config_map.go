package app

import (
	"fmt"
	"strings"
	"time"

	"classbell/internal/api"
	"classbell/internal/bell"
	"classbell/internal/config"
	"classbell/internal/notifier"
	"classbell/internal/storage"
	"classbell/internal/task/scheduler"
	"classbell/internal/timetable"
	kit "classbell/internal/transport"
	"classbell/internal/transport/telegram"
	logx "classbell/pkg/logx"
)

func mapLogConfig(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *Config) (storage.Config, bool, error) {
	sc := cfg.Store()
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "none":
		return storage.Config{}, false, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := parseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *Config) (notifier.Config, error) {
	n := cfg.Notifications()
	base, err := parseDurationOrDefault("notifier.retry_base", n.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := parseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
		return notifier.Config{}, fmt.Errorf("notifier: workers, queue_size, rate_per_sec and retry_max must be >= 0")
	}
	return notifier.Config{
		Enabled:       n.Enabled,
		Workers:       n.Workers,
		QueueSize:     n.QueueSize,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
	}, nil
}

// buildSinks returns the enabled sinks. A sink that cannot be built is an
// error so a bad reload is rejected instead of silently muting bells.
func buildSinks(cfg *Config, log logx.Logger) ([]kit.Sink, error) {
	n := cfg.Notifications()
	var out []kit.Sink
	if n.Sinks.Log.Enabled {
		out = append(out, kit.LogSink{Log: log.With(logx.String("comp", "bells"))})
	}
	if tg := n.Sinks.Telegram; tg.Enabled {
		s, err := telegram.New(telegram.Config{Token: tg.Token, ChatID: tg.ChatID, ThreadID: tg.ThreadID}, log)
		if err != nil {
			return nil, fmt.Errorf("notifier.sinks.telegram: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func mapBellConfig(cfg *Config) (bell.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return bell.Config{}, err
	}
	grace, err := parseDurationField("bell.grace", cfg.Bell.Grace)
	if err != nil {
		return bell.Config{}, err
	}
	resync, err := parseDurationField("bell.resync", cfg.Bell.Resync)
	if err != nil {
		return bell.Config{}, err
	}
	return bell.Config{
		CatchUp:            bell.CatchUp(cfg.Bell.CatchUp),
		DismissBeforeBreak: cfg.Bell.DismissBeforeBreak,
		Grace:              grace,
		Resync:             resync,
		Location:           loc,
	}, nil
}

func mapSchedulerConfig(cfg *Config) (scheduler.Config, error) {
	timeout, err := parseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Timezone:       strings.TrimSpace(cfg.Schedule.Timezone),
		DefaultTimeout: timeout,
		HistorySize:    cfg.Scheduler.HistorySize,
	}, nil
}

func mapAPIConfig(cfg *Config) api.Config {
	addr := strings.TrimSpace(cfg.API.Addr)
	if addr == "" {
		addr = config.DefaultAPIAddr
	}
	return api.Config{Enabled: cfg.API.Enabled, Addr: addr, Pprof: cfg.API.Pprof}
}

func mapDurations(cfg *Config) (timetable.Durations, error) {
	d := timetable.DefaultDurations()
	var err error
	if d.Class, err = parseDurationOrDefault("schedule.default_duration.class", cfg.Schedule.DefaultDuration.Class, d.Class); err != nil {
		return d, err
	}
	if d.Break, err = parseDurationOrDefault("schedule.default_duration.break", cfg.Schedule.DefaultDuration.Break, d.Break); err != nil {
		return d, err
	}
	if d.Activity, err = parseDurationOrDefault("schedule.default_duration.activity", cfg.Schedule.DefaultDuration.Activity, d.Activity); err != nil {
		return d, err
	}
	return d, nil
}

// cycleOverride applies schedule.cycle_length and schedule.anchor on top of
// cur. It reports whether anything was overridden.
func cycleOverride(cfg *Config, cur timetable.Cycle) (timetable.Cycle, bool, error) {
	out := cur
	if cfg.Schedule.CycleLength > 0 {
		out.Length = cfg.Schedule.CycleLength
	}
	if a := strings.TrimSpace(cfg.Schedule.Anchor); a != "" {
		d, err := timetable.ParseDate(a)
		if err != nil {
			return cur, false, fmt.Errorf("schedule.anchor: %w", err)
		}
		out.Anchor = d
	}
	return out, out != cur, nil
}

// clockFor applies schedule.time_offset to the system clock.
func clockFor(cfg *Config) (bell.Clock, time.Duration, error) {
	off, err := config.ParseSignedDuration("schedule.time_offset", cfg.Schedule.TimeOffset)
	if err != nil {
		return nil, 0, err
	}
	if off == 0 {
		return bell.SystemClock{}, 0, nil
	}
	return bell.OffsetClock{Base: bell.SystemClock{}, Offset: off}, off, nil
}
