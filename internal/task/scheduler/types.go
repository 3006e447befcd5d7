package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Config controls the scheduler (trigger) service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"
	// DefaultTimeout applies to jobs registered with a zero timeout.
	DefaultTimeout time.Duration
	HistorySize    int
}

type Job func(ctx context.Context) error

type scheduleDef struct {
	name          string
	spec          string // cron spec or @every
	timeout       time.Duration
	job           Job
	entryID       cron.EntryID
	startupSpread time.Duration // initial random delay for @every schedules
	running       *atomic.Bool
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
}

// HistoryItem is one finished (or skipped) run.
type HistoryItem struct {
	Name    string
	Started time.Time
	Took    time.Duration
	Skipped bool
	Err     string
}

type Snapshot struct {
	Enabled   bool
	Timezone  string
	Running   bool
	Schedules []ScheduleInfo
	History   []HistoryItem
}
