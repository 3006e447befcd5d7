package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"classbell/internal/timetable"
)

// ScheduleFile stores the schedule as a JSON document. It implements
// timetable.Persister; writes go to a temp file in the same directory that
// is synced and renamed over the old one.
type ScheduleFile struct {
	Path string

	mu       sync.Mutex
	lastHash string
}

func NewScheduleFile(path string) *ScheduleFile { return &ScheduleFile{Path: path} }

// Load reads and validates the document. A missing file returns
// os.ErrNotExist wrapped in a *timetable.PersistenceError.
func (f *ScheduleFile) Load() (timetable.Schedule, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return timetable.Schedule{}, &timetable.PersistenceError{Op: "load", Path: f.Path, Err: err}
	}
	s, err := timetable.ImportBytes(b)
	if err != nil {
		return timetable.Schedule{}, err
	}
	f.mu.Lock()
	f.lastHash = hashBytes(b)
	f.mu.Unlock()
	return s, nil
}

// Save implements timetable.Persister.
func (f *ScheduleFile) Save(s timetable.Schedule) error {
	data, err := timetable.ExportBytes(s)
	if err != nil {
		return &timetable.PersistenceError{Op: "encode", Path: f.Path, Err: err}
	}
	if err := writeAtomic(f.Path, data, 0o644); err != nil {
		return &timetable.PersistenceError{Op: "save", Path: f.Path, Err: err}
	}
	f.mu.Lock()
	f.lastHash = hashBytes(data)
	f.mu.Unlock()
	return nil
}

// Written reports whether the file content currently on disk is the last
// thing this process wrote or loaded. Watchers use it to skip their own saves.
func (f *ScheduleFile) Written() bool {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHash != "" && f.lastHash == hashBytes(b)
}

func IsNotExist(err error) bool { return errors.Is(err, os.ErrNotExist) }

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return errors.New("path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".classbell-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
