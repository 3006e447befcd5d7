package app

import (
	"context"
	"strings"
	"time"

	"classbell/internal/config"
	"classbell/internal/timetable"
	logx "classbell/pkg/logx"
)

const (
	jobRollover   = "bell.rollover"
	jobReschedule = "reschedule.cleanup"
	jobLedger     = "ledger.prune"
)

// registerJobs installs the housekeeping jobs. Calling it again after a
// reload replaces them.
func (a *App) registerJobs(cfg *Config) error {
	rollover := strings.TrimSpace(cfg.Bell.Rollover)
	if rollover == "" {
		rollover = config.DefaultRollover
	}
	if err := a.cron.AddSchedule(jobRollover, rollover, 10*time.Second, a.rollover); err != nil {
		return err
	}
	if err := a.cron.AddDaily(jobReschedule, "00:05", 30*time.Second, a.pruneReschedule); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.cron.AddDaily(jobLedger, "03:30", time.Minute, a.pruneLedger); err != nil {
			return err
		}
	} else {
		a.cron.Remove(jobLedger)
	}
	return nil
}

// rollover re-resolves the day. The bell scheduler also wakes at midnight
// on its own; this covers suspended hosts and timezone changes.
func (a *App) rollover(context.Context) error {
	if a.bells != nil {
		a.bells.Reactivate()
	}
	return nil
}

// pruneReschedule drops reschedule entries for past dates from the config
// file. The config reload then pushes the trimmed map into the store.
func (a *App) pruneReschedule(ctx context.Context) error {
	cur := a.cfgm.Get()
	if cur == nil || len(cur.Schedule.Reschedule) == 0 {
		return nil
	}
	today := timetable.DateOf(a.now())
	// PruneReschedule clones the map, so probing a copy leaves cur intact.
	if probe := *cur; len(probe.PruneReschedule(today)) == 0 {
		return nil
	}
	var removed []string
	if _, err := a.cfgm.Update(ctx, func(c *Config) { removed = c.PruneReschedule(today) }); err != nil {
		return err
	}
	a.log.Info("reschedule entries expired", logx.Any("dates", removed))
	return nil
}

func (a *App) pruneLedger(ctx context.Context) error {
	days := a.cfgm.Get().Store().RetainDays
	cutoff := a.now().AddDate(0, 0, -days)
	n, err := a.store.PruneFired(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info("fired ledger pruned", logx.Int("removed", n), logx.Int("retain_days", days))
	}
	return nil
}
