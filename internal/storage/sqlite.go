package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"classbell/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) MarkFired(ctx context.Context, rec FiredRecord) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	if rec.Key == "" {
		return false, errors.New("fired record without key")
	}
	if rec.FiredAt.IsZero() {
		rec.FiredAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fired(key, date, timeline_id, entry_id, kind, at, fired_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(key) DO NOTHING`,
		rec.Key, rec.Date, rec.TimelineID, nullStr(rec.EntryID), rec.Kind,
		rec.At.UnixMilli(), rec.FiredAt.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) FiredOn(ctx context.Context, date string) ([]FiredRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, date, timeline_id, COALESCE(entry_id, ''), kind, at, fired_at
		 FROM fired WHERE date = ? ORDER BY at`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FiredRecord
	for rows.Next() {
		var r FiredRecord
		var at, firedAt int64
		if err := rows.Scan(&r.Key, &r.Date, &r.TimelineID, &r.EntryID, &r.Kind, &at, &firedAt); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(at)
		r.FiredAt = time.UnixMilli(firedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneFired(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM fired WHERE at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, d Delivery) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}
	ok := 0
	if d.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, sink, kind, level, title, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		d.At.Format(time.RFC3339Nano), d.Sink, d.Kind, d.Level, d.Title, ok, nullStr(d.Error), d.TookMS,
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
