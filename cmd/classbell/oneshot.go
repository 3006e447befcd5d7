package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"classbell/internal/app"
	"classbell/internal/bell"
	"classbell/internal/config"
	"classbell/internal/ics"
	"classbell/internal/sheet"
	"classbell/internal/storage"
	"classbell/internal/timetable"
	logx "classbell/pkg/logx"
)

func loadConfig(path string) (*config.Config, error) {
	return config.NewConfigManager(path).Load()
}

func runCheck(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	sched, err := storage.NewScheduleFile(cfg.Schedule.Path).Load()
	var oe *timetable.OverlapError
	switch {
	case errors.As(err, &oe):
		fmt.Printf("timeline %s has %d conflict(s):\n", oe.TimelineID, len(oe.Pairs))
		for _, p := range oe.Pairs {
			fmt.Printf("  %s (%s) overlaps %s (%s) at %s\n", p.A.ID, p.A.Range(), p.B.ID, p.B.Range(), p.Range)
		}
		return errors.New("schedule has conflicts")
	case err != nil:
		return err
	}
	entries := 0
	for _, t := range sched.Timelines {
		entries += len(t.Entries)
	}
	fmt.Printf("%s: ok (%d timelines, %d entries, %d subjects, cycle %d)\n",
		cfg.Schedule.Path, len(sched.Timelines), entries, len(sched.Subjects), sched.Cycle.Length)
	return nil
}

func runStatus(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	store, _, err := app.OpenSchedule(cfg, nil, logx.Nop())
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	off, err := config.ParseSignedDuration("schedule.time_offset", cfg.Schedule.TimeOffset)
	if err != nil {
		return err
	}
	now := time.Now().Add(off).In(loc)
	today := timetable.DateOf(now)
	tl, ok := store.Resolve(today)
	plan := bell.BuildPlan(today, tl, ok, loc, bell.PlanOptions{DismissBeforeBreak: cfg.Bell.DismissBeforeBreak})
	if !plan.Active() {
		fmt.Printf("%s (%s): nothing scheduled\n", today, now.Weekday())
		return nil
	}

	st := bell.StatusAt(plan, now)
	fmt.Printf("%s (%s): %s\n", today, now.Weekday(), plan.Label)
	for _, e := range plan.Entries {
		mark := " "
		if st.Current != nil && st.Current.ID == e.ID {
			mark = ">"
		}
		fmt.Printf(" %s %s-%s  %-8s %s\n", mark, e.Start, e.End, e.Kind, timetable.Title(store, e))
	}
	if st.Current != nil {
		fmt.Printf("now: %s, %s left (%.0f%%)\n", timetable.Title(store, *st.Current),
			st.Remaining.Round(time.Second), st.Progress)
	}
	if tr := st.NextBell; tr != nil {
		fmt.Printf("next bell: %s at %s (%s)\n", strings.ReplaceAll(string(tr.Kind), "_", " "),
			tr.At.Format("15:04"), humanize.RelTime(tr.At, now, "ago", "from now"))
	}
	return nil
}

func runExportICS(cfgPath, out string, days int) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	store, _, err := app.OpenSchedule(cfg, nil, logx.Nop())
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	from := timetable.DateOf(time.Now().In(loc))
	if err := ics.Write(&buf, store, from, days, ics.Options{Location: loc}); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d days from %s, %s)\n", out, days, from, humanize.Bytes(uint64(buf.Len())))
	return nil
}

func runImportXLSX(cfgPath, in string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	sched, err := sheet.Import(f)
	if err != nil {
		return err
	}
	store, _, err := app.OpenSchedule(cfg, nil, logx.Nop())
	if err != nil {
		return err
	}
	if err := store.Replace(sched); err != nil {
		return err
	}
	fmt.Printf("imported %d timelines and %d subjects into %s\n", len(sched.Timelines), len(sched.Subjects), cfg.Schedule.Path)
	return nil
}

func runExportXLSX(cfgPath, out string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	store, _, err := app.OpenSchedule(cfg, nil, logx.Nop())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := sheet.Export(&buf, store.Snapshot()); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s)\n", out, humanize.Bytes(uint64(buf.Len())))
	return nil
}
