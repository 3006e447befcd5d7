// Package transport defines the delivery side of bells: a Message and the
// Sink interface every provider (log, telegram) implements.
package transport

import (
	"context"
	"time"
)

// Level tags how loud a message is.
type Level string

const (
	LevelInfo         Level = "info"
	LevelAnnouncement Level = "announcement"
	LevelWarning      Level = "warning"
	LevelSystem       Level = "system"
)

func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelAnnouncement, LevelWarning, LevelSystem:
		return true
	}
	return false
}

// Message is what a sink receives for one bell or system notice.
type Message struct {
	Kind     string // activity_start, activity_end, dismissal or "system"
	Level    Level
	Title    string
	Body     string
	FireTime time.Time
}

// Text renders the message as a single plain-text block.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	if m.Title == "" {
		return m.Body
	}
	return m.Title + "\n" + m.Body
}

// Sink delivers messages to one provider.
type Sink interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	ID string
	Fn func(ctx context.Context, m Message) error
}

func (s SinkFunc) Name() string                              { return s.ID }
func (s SinkFunc) Send(ctx context.Context, m Message) error { return s.Fn(ctx, m) }
