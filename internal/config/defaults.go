package config

import "strings"

const (
	DefaultAPIAddr    = "127.0.0.1:8089"
	DefaultRollover   = "0 0 * * *"
	DefaultRetainDays = 30
	DefaultSchedule   = "./schedule.json"

	// EnvTelegramToken overrides notifier.sinks.telegram.token.
	EnvTelegramToken = "CLASSBELL_TELEGRAM_TOKEN"
)

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info", Console: true},
		Schedule:  ScheduleConfig{Path: DefaultSchedule, Watch: true},
		Bell:      BellConfig{Enabled: true, CatchUp: "in_progress", Rollover: DefaultRollover},
		Scheduler: SchedulerConfig{Enabled: true},
		API:       APIConfig{Addr: DefaultAPIAddr},
	}
}

// Notifications returns the notifier section with omitted-section defaults.
func (c *Config) Notifications() NotifierConfig {
	if c.Notifier == nil {
		return NotifierConfig{
			Enabled:    true,
			Workers:    2,
			QueueSize:  256,
			RatePerSec: 3,
			RetryMax:   3,
			Sinks:      SinksConfig{Log: LogSinkConfig{Enabled: true}},
		}
	}
	return *c.Notifier
}

// Store returns the storage section. An omitted section disables the ledger.
func (c *Config) Store() StorageConfig {
	if c.Storage == nil {
		return StorageConfig{Driver: "none"}
	}
	s := *c.Storage
	if strings.TrimSpace(s.Driver) == "" {
		s.Driver = "none"
	}
	if s.RetainDays <= 0 {
		s.RetainDays = DefaultRetainDays
	}
	return s
}
