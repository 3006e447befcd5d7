package config

import (
	"maps"
	"reflect"
	"sort"
	"strings"

	logx "classbell/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging. Secrets like the telegram token are never
// included, only whether one is set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oldS, newS := oldCfg.Schedule, newCfg.Schedule
	if strings.TrimSpace(oldS.Path) != strings.TrimSpace(newS.Path) ||
		oldS.Timezone != newS.Timezone ||
		oldS.CycleLength != newS.CycleLength ||
		oldS.Anchor != newS.Anchor ||
		oldS.TimeOffset != newS.TimeOffset ||
		oldS.DefaultDuration != newS.DefaultDuration ||
		oldS.Watch != newS.Watch ||
		!maps.Equal(oldS.Reschedule, newS.Reschedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.timezone", newS.Timezone),
			logx.Int("schedule.cycle_length", newS.CycleLength),
			logx.String("schedule.anchor", newS.Anchor),
			logx.String("schedule.time_offset", newS.TimeOffset),
			logx.Int("schedule.reschedule_days", len(newS.Reschedule)),
		)
	}

	if oldCfg.Bell != newCfg.Bell {
		changed = append(changed, "bell")
		attrs = append(attrs,
			logx.Bool("bell.enabled", newCfg.Bell.Enabled),
			logx.String("bell.catch_up", newCfg.Bell.CatchUp),
			logx.Bool("bell.dismiss_before_break", newCfg.Bell.DismissBeforeBreak),
		)
	}

	oldN, newN := oldCfg.Notifications(), newCfg.Notifications()
	oTok, nTok := oldN.Sinks.Telegram.Token != "", newN.Sinks.Telegram.Token != ""
	oldN.Sinks.Telegram.Token, newN.Sinks.Telegram.Token = "", ""
	if !reflect.DeepEqual(oldN, newN) || oTok != nTok {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Bool("notifier.log", newN.Sinks.Log.Enabled),
			logx.Bool("notifier.telegram", newN.Sinks.Telegram.Enabled),
			logx.Bool("notifier.telegram_token_set", nTok),
		)
	}

	if oldCfg.Store() != newCfg.Store() {
		st := newCfg.Store()
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", st.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(st.Path) != ""),
			logx.Int("storage.retain_days", st.RetainDays),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled))
	}

	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", newCfg.API.Addr),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
