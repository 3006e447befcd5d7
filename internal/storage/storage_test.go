package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"classbell/internal/timetable"
	"classbell/pkg/logx"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{}
	for _, driver := range []string{"file", "sqlite"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, driver, "ledger.db")}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("Open(none) = %v, %v; want nil, nil", st, err)
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFiredLedgerIsExactlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	for name, st := range openTestStores(t) {
		rec := FiredRecord{
			Key:        FiredKey("2024-01-01", "mwf", "e1", "activity_start"),
			Date:       "2024-01-01",
			TimelineID: "mwf",
			EntryID:    "e1",
			Kind:       "activity_start",
			At:         at,
			FiredAt:    at,
		}
		ok, err := st.MarkFired(ctx, rec)
		if err != nil || !ok {
			t.Fatalf("%s: first MarkFired = %v, %v", name, ok, err)
		}
		ok, err = st.MarkFired(ctx, rec)
		if err != nil || ok {
			t.Fatalf("%s: second MarkFired = %v, %v; want false", name, ok, err)
		}

		old := rec
		old.Key = FiredKey("2023-12-01", "mwf", "e3", "dismissal")
		old.Date = "2023-12-01"
		old.At = at.AddDate(0, -1, 0)
		if _, err := st.MarkFired(ctx, old); err != nil {
			t.Fatalf("%s: MarkFired old: %v", name, err)
		}

		got, err := st.FiredOn(ctx, "2024-01-01")
		if err != nil || len(got) != 1 || got[0].Key != rec.Key || got[0].EntryID != "e1" {
			t.Fatalf("%s: FiredOn = %+v, %v", name, got, err)
		}

		n, err := st.PruneFired(ctx, at.AddDate(0, 0, -7))
		if err != nil || n != 1 {
			t.Fatalf("%s: PruneFired = %d, %v; want 1", name, n, err)
		}
		if got, _ := st.FiredOn(ctx, "2023-12-01"); len(got) != 0 {
			t.Fatalf("%s: pruned record still present", name)
		}

		if err := st.AppendDelivery(ctx, Delivery{Sink: "log", Kind: "dismissal", Level: "info", Title: "School is over", OK: true}); err != nil {
			t.Fatalf("%s: AppendDelivery: %v", name, err)
		}
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	at := time.Date(2024, 1, 1, 9, 45, 0, 0, time.UTC)
	rec := FiredRecord{Key: FiredKey("2024-01-01", "mwf", "e3", "dismissal"), Date: "2024-01-01", TimelineID: "mwf", EntryID: "e3", Kind: "dismissal", At: at}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := st.MarkFired(ctx, rec); err != nil {
		t.Fatalf("MarkFired: %v", err)
	}
	_ = st.Close()

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if ok, err := st.MarkFired(ctx, rec); err != nil || ok {
		t.Fatalf("MarkFired after reopen = %v, %v; want already fired", ok, err)
	}
}

func TestScheduleFileSaveLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	f := NewScheduleFile(filepath.Join(dir, "schedule.json"))

	if _, err := f.Load(); !IsNotExist(err) {
		t.Fatalf("Load missing = %v, want not-exist", err)
	}

	anchor, _ := timetable.ParseDate("2024-01-01")
	s := timetable.Schedule{
		Cycle: timetable.Cycle{Length: 2, Anchor: anchor},
		Timelines: []timetable.Timeline{{
			ID:    "mon",
			Label: "Monday",
			Recurrence: timetable.Recurrence{
				Kind: timetable.EveryWeek, Mode: timetable.ByWeek, Weekdays: timetable.Weekdays(time.Monday),
			},
			Entries: []timetable.Entry{{ID: "a", Kind: timetable.KindClass, Start: timetable.HM(8, 0), End: timetable.HM(8, 45)}},
		}},
	}
	if err := f.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !f.Written() {
		t.Fatal("Written() = false right after Save")
	}
	got, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("Load = %+v, want %+v", got, s)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestScheduleFileFailedSaveKeepsOldContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.json")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The parent "directory" is a regular file, so staging the write fails.
	f := NewScheduleFile(filepath.Join(path, "nested.json"))
	err := f.Save(timetable.Schedule{Cycle: timetable.Cycle{Length: 1}})
	var pe *timetable.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Save err = %v, want *PersistenceError", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "previous" {
		t.Fatalf("previous content clobbered: %q", b)
	}
}
