package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Bell      BellConfig      `json:"bell"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`
	API       APIConfig       `json:"api"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ScheduleConfig locates the schedule document and sets the calendar it is
// interpreted in.
//
// Example:
//
//	"schedule": {
//	  "path": "./schedule.json",
//	  "timezone": "Asia/Jakarta",
//	  "cycle_length": 2,
//	  "anchor": "2024-07-15",
//	  "reschedule": { "2024-08-17": "monday" }
//	}
type ScheduleConfig struct {
	Path     string `json:"path"`
	Timezone string `json:"timezone,omitempty"`

	// CycleLength and Anchor override the document's cycle when set.
	CycleLength int    `json:"cycle_length,omitempty"`
	Anchor      string `json:"anchor,omitempty"`

	// TimeOffset shifts the bell clock, e.g. "-2m" for bells that run early.
	TimeOffset string `json:"time_offset,omitempty"`

	// Reschedule maps a date to the weekday whose timetable it borrows.
	Reschedule map[string]string `json:"reschedule,omitempty"`

	DefaultDuration DefaultDurations `json:"default_duration,omitempty"`

	// Watch reloads the document when it changes on disk.
	Watch bool `json:"watch"`
}

type DefaultDurations struct {
	Class    string `json:"class,omitempty"`
	Break    string `json:"break,omitempty"`
	Activity string `json:"activity,omitempty"`
}

type BellConfig struct {
	Enabled            bool   `json:"enabled"`
	CatchUp            string `json:"catch_up,omitempty"` // in_progress | none
	DismissBeforeBreak bool   `json:"dismiss_before_break,omitempty"`
	Grace              string `json:"grace,omitempty"`
	Resync             string `json:"resync,omitempty"`
	// Rollover is the schedule of the day-change re-check (default "0 0 * * *").
	Rollover string `json:"rollover,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// If the whole section is omitted, the notifier is enabled with the log
// sink only.
type NotifierConfig struct {
	Enabled       bool        `json:"enabled"`
	Workers       int         `json:"workers"`
	QueueSize     int         `json:"queue_size"`
	RatePerSec    int         `json:"rate_per_sec"`
	RetryMax      int         `json:"retry_max"`
	RetryBase     string      `json:"retry_base"`
	RetryMaxDelay string      `json:"retry_max_delay"`
	Sinks         SinksConfig `json:"sinks"`
}

type SinksConfig struct {
	Log      LogSinkConfig      `json:"log"`
	Telegram TelegramSinkConfig `json:"telegram"`
}

type LogSinkConfig struct {
	Enabled bool `json:"enabled"`
}

type TelegramSinkConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"` // prefer CLASSBELL_TELEGRAM_TOKEN
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// StorageConfig controls the fired ledger and the delivery log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./classbell.db", "retain_days": 30 }
type StorageConfig struct {
	Driver      string `json:"driver"` // none | file | sqlite
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	RetainDays  int    `json:"retain_days,omitempty"`
}

// SchedulerConfig controls the housekeeping cron service.
type SchedulerConfig struct {
	Enabled        bool   `json:"enabled"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8089"
	// Pprof serves /debug/pprof on the API listener. Keep addr on loopback.
	Pprof bool `json:"pprof,omitempty"`
}
