package transport

import (
	"context"

	logx "classbell/pkg/logx"
)

// LogSink writes every message to the application log. It is the default
// provider and never fails.
type LogSink struct {
	Log logx.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Send(_ context.Context, m Message) error {
	log := s.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	fields := []logx.Field{
		logx.String("kind", m.Kind),
		logx.String("level", string(m.Level)),
		logx.String("title", m.Title),
		logx.Time("fire_time", m.FireTime),
	}
	if m.Body != "" {
		fields = append(fields, logx.String("body", m.Body))
	}
	switch m.Level {
	case LevelWarning:
		log.Warn("notification", fields...)
	default:
		log.Info("notification", fields...)
	}
	return nil
}
