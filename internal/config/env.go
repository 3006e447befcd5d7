package config

import (
	"os"
	"strings"
)

// ApplyEnv overlays secrets from the environment. The token never has to
// live in the config file.
func (c *Config) ApplyEnv() {
	tok := strings.TrimSpace(os.Getenv(EnvTelegramToken))
	if tok == "" {
		return
	}
	n := c.Notifications()
	n.Sinks.Telegram.Token = tok
	c.Notifier = &n
}
