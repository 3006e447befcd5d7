package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"classbell/internal/timetable"
	logx "classbell/pkg/logx"
)

// Validate checks every field that does not fail JSON decoding on its own.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !logx.ValidLevel(c.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	s := c.Schedule
	if strings.TrimSpace(s.Path) == "" {
		add(errors.New("schedule.path: required"))
	}
	if _, err := c.Location(); err != nil {
		add(err)
	}
	if s.CycleLength < 0 {
		add(errors.New("schedule.cycle_length: must be >= 1"))
	}
	if s.Anchor != "" {
		if _, err := timetable.ParseDate(s.Anchor); err != nil {
			add(fmt.Errorf("schedule.anchor: %w", err))
		}
	}
	if _, err := ParseSignedDuration("schedule.time_offset", s.TimeOffset); err != nil {
		add(err)
	}
	if _, err := c.RescheduleMap(); err != nil {
		add(err)
	}
	for path, raw := range map[string]string{
		"schedule.default_duration.class":    s.DefaultDuration.Class,
		"schedule.default_duration.break":    s.DefaultDuration.Break,
		"schedule.default_duration.activity": s.DefaultDuration.Activity,
		"bell.grace":                         c.Bell.Grace,
		"bell.resync":                        c.Bell.Resync,
		"scheduler.default_timeout":          c.Scheduler.DefaultTimeout,
	} {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	switch c.Bell.CatchUp {
	case "", "in_progress", "none":
	default:
		add(fmt.Errorf("bell.catch_up: %q (want in_progress or none)", c.Bell.CatchUp))
	}

	n := c.Notifications()
	for path, raw := range map[string]string{
		"notifier.retry_base":      n.RetryBase,
		"notifier.retry_max_delay": n.RetryMaxDelay,
	} {
		_, err := ParseDurationField(path, raw)
		add(err)
	}
	if n.Sinks.Telegram.Enabled && n.Sinks.Telegram.ChatID == 0 {
		add(errors.New("notifier.sinks.telegram.chat_id: required when the sink is enabled"))
	}

	st := c.Store()
	switch st.Driver {
	case "none":
	case "file", "sqlite":
		if strings.TrimSpace(st.Path) == "" {
			add(fmt.Errorf("storage.path: required for driver %q", st.Driver))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", st.Driver))
	}
	_, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout)
	add(err)

	return errors.Join(errs...)
}

// Location is the timezone bells ring in.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Schedule.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// RescheduleMap parses schedule.reschedule.
func (c *Config) RescheduleMap() (map[timetable.Date]time.Weekday, error) {
	if len(c.Schedule.Reschedule) == 0 {
		return nil, nil
	}
	out := make(map[timetable.Date]time.Weekday, len(c.Schedule.Reschedule))
	for ds, ws := range c.Schedule.Reschedule {
		d, err := timetable.ParseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("schedule.reschedule: %w", err)
		}
		w, err := timetable.ParseWeekday(ws)
		if err != nil {
			return nil, fmt.Errorf("schedule.reschedule[%s]: %w", ds, err)
		}
		out[d] = w
	}
	return out, nil
}
