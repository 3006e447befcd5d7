package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"classbell/internal/app"
)

func main() {
	var (
		cfgPath    string
		check      bool
		status     bool
		exportICS  string
		days       int
		importXLSX string
		exportXLSX string
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config (json or yaml)")
	flag.BoolVar(&check, "check", false, "validate the schedule and print every conflict")
	flag.BoolVar(&status, "status", false, "print today's plan and the next bell")
	flag.StringVar(&exportICS, "export-ics", "", "write an iCalendar file of the coming days")
	flag.IntVar(&days, "days", 14, "number of days for -export-ics")
	flag.StringVar(&importXLSX, "import-xlsx", "", "replace the schedule with a spreadsheet")
	flag.StringVar(&exportXLSX, "export-xlsx", "", "write the schedule as a spreadsheet")
	flag.Parse()

	// .env is optional; it usually carries CLASSBELL_TELEGRAM_TOKEN.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Println("warning: .env:", err)
	}

	var err error
	switch {
	case check:
		err = runCheck(cfgPath)
	case status:
		err = runStatus(cfgPath)
	case exportICS != "":
		err = runExportICS(cfgPath, exportICS, days)
	case importXLSX != "":
		err = runImportXLSX(cfgPath, importXLSX)
	case exportXLSX != "":
		err = runExportXLSX(cfgPath, exportXLSX)
	default:
		err = serve(cfgPath)
	}
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func serve(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		} else {
			reason = app.StopAppStop
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	return a.Err()
}
