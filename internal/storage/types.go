package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the ledger store.
//
// Driver values:
//   - "file": jsonl journal + snapshot next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", the ledger is kept in memory only.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// FiredRecord marks one bell transition as dispatched.
// Key is date|timeline|instant|kind and is unique.
type FiredRecord struct {
	Key        string    `json:"key"`
	Date       string    `json:"date"`
	TimelineID string    `json:"timeline_id"`
	EntryID    string    `json:"entry_id"`
	Kind       string    `json:"kind"`
	At         time.Time `json:"at"`
	FiredAt    time.Time `json:"fired_at"`
}

// Delivery records one notification handed to a sink.
type Delivery struct {
	At     time.Time `json:"at"`
	Sink   string    `json:"sink"`
	Kind   string    `json:"kind"`
	Level  string    `json:"level"`
	Title  string    `json:"title"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
}
