package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"classbell/internal/timetable"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadJSONAndYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "config.json", `{
  "schedule": {"path": "s.json", "timezone": "UTC", "cycle_length": 2, "anchor": "2024-01-01",
               "reschedule": {"2024-08-17": "mon"}},
  "bell": {"catch_up": "none", "grace": "5s"},
  "storage": {"driver": "sqlite", "path": "x.db"}
}`)
	yamlPath := writeFile(t, dir, "config.yaml", `
schedule:
  path: s.json
  timezone: UTC
  cycle_length: 2
  anchor: "2024-01-01"
  reschedule:
    "2024-08-17": mon
bell:
  catch_up: none
  grace: 5s
storage:
  driver: sqlite
  path: x.db
`)

	for _, p := range []string{jsonPath, yamlPath} {
		t.Run(filepath.Ext(p), func(t *testing.T) {
			cfg, err := NewConfigManager(p).Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !cfg.Bell.Enabled || cfg.Bell.CatchUp != "none" || cfg.Bell.Rollover != DefaultRollover {
				t.Fatalf("bell = %+v (defaults should survive partial sections)", cfg.Bell)
			}
			if st := cfg.Store(); st.Driver != "sqlite" || st.RetainDays != DefaultRetainDays {
				t.Fatalf("storage = %+v", st)
			}
			rs, err := cfg.RescheduleMap()
			if err != nil {
				t.Fatal(err)
			}
			d := timetable.Date{Year: 2024, Month: time.August, Day: 17}
			if rs[d] != time.Monday {
				t.Fatalf("reschedule = %v", rs)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", `{"bell": {"volume": 3}}`, "unknown field"},
		{"trailing data", `{} {}`, "trailing data"},
		{"bad level", `{"logging": {"level": "loud"}}`, "logging.level"},
		{"bad tz", `{"schedule": {"path": "s", "timezone": "Mars/Base"}}`, "schedule.timezone"},
		{"bad catch up", `{"bell": {"catch_up": "all"}}`, "bell.catch_up"},
		{"bad reschedule", `{"schedule": {"path": "s", "reschedule": {"2024-08-17": "someday"}}}`, "reschedule"},
		{"negative grace", `{"bell": {"grace": "-1s"}}`, "bell.grace"},
		{"sqlite without path", `{"storage": {"driver": "sqlite"}}`, "storage.path"},
		{"telegram without chat", `{"notifier": {"enabled": true, "sinks": {"telegram": {"enabled": true}}}}`, "chat_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("config.json", []byte(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Decode err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "nope.json"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.Path != DefaultSchedule || !cfg.Notifications().Sinks.Log.Enabled {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestApplyEnvOverridesToken(t *testing.T) {
	t.Setenv(EnvTelegramToken, "secret")
	cfg, err := Decode("c.json", []byte(`{"notifier": {"enabled": true, "sinks": {"telegram": {"enabled": true, "chat_id": 42}}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Notifications().Sinks.Telegram.Token; got != "secret" {
		t.Fatalf("token = %q", got)
	}
}

func TestPruneReschedule(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Schedule.Reschedule = map[string]string{
		"2024-01-05": "mon",
		"2024-01-01": "tue",
		"2024-01-10": "wed",
		"2024-01-09": "thu",
	}
	stale := cfg.PruneReschedule(timetable.Date{Year: 2024, Month: time.January, Day: 9})
	if !slices.Equal(stale, []string{"2024-01-01", "2024-01-05"}) {
		t.Fatalf("stale = %v", stale)
	}
	if len(cfg.Schedule.Reschedule) != 2 {
		t.Fatalf("left = %v", cfg.Schedule.Reschedule)
	}
}

func TestUpdateWritesAndPublishes(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.yaml", "schedule:\n  path: s.json\n  reschedule:\n    \"2024-01-01\": mon\n")
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	_, err := m.Update(context.Background(), func(c *Config) {
		c.PruneReschedule(timetable.Date{Year: 2024, Month: time.February, Day: 1})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	select {
	case got := <-sub:
		if len(got.Schedule.Reschedule) != 0 {
			t.Fatalf("published reschedule = %v", got.Schedule.Reschedule)
		}
	default:
		t.Fatal("update not published")
	}

	reread, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse after write: %v", err)
	}
	if len(reread.Schedule.Reschedule) != 0 || reread.Schedule.Path != "s.json" {
		t.Fatalf("file after write = %+v", reread.Schedule)
	}

	if _, err := m.Update(context.Background(), func(c *Config) { c.Bell.CatchUp = "bogus" }); err == nil {
		t.Fatal("invalid update accepted")
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.json", `{"bell": {"grace": "5s"}}`)
	m := NewConfigManager(p)
	m.Debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case got := <-sub:
			if got.Bell.Grace != "7s" {
				t.Fatalf("grace = %q", got.Bell.Grace)
			}
			return
		case <-tick.C:
			// rewrite until the watcher is up and sees it
			writeFile(t, filepath.Dir(p), "config.json", `{"bell": {"grace": "7s"}}`)
		case <-deadline:
			t.Fatal("change not published")
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Bell.CatchUp = "none"
	b.Notifier = &NotifierConfig{Enabled: true, Sinks: SinksConfig{Telegram: TelegramSinkConfig{Token: "x"}}}

	changed, attrs := SummarizeConfigChange(a, b)
	if !slices.Equal(changed, []string{"bell", "notifier"}) {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	if changed, _ := SummarizeConfigChange(a, Default()); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}
