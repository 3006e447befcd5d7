package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"classbell/pkg/logx"
)

// Store is the persistence API used by the bell scheduler and the notifier.
type Store interface {
	// MarkFired records rec. It reports false when the key was already present.
	MarkFired(ctx context.Context, rec FiredRecord) (bool, error)
	// FiredOn returns the records of one date (YYYY-MM-DD).
	FiredOn(ctx context.Context, date string) ([]FiredRecord, error)
	// PruneFired drops records whose transition happened before cutoff.
	PruneFired(ctx context.Context, cutoff time.Time) (int, error)
	AppendDelivery(ctx context.Context, d Delivery) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// FiredKey builds the ledger key of a transition: one per entry and kind
// on a given date and timeline.
func FiredKey(date, timelineID, entryID, kind string) string {
	return date + "|" + timelineID + "|" + entryID + "|" + kind
}
