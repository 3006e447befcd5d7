package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classbell/internal/eventbus"
	logx "classbell/pkg/logx"
)

// ErrOverlapSkip is returned when a job is still running from an earlier trigger.
var ErrOverlapSkip = errors.New("job still running")

func (s *Service) run(d scheduleDef) (err error) {
	if !d.running.CompareAndSwap(false, true) {
		s.log.Debug("schedule trigger skipped", logx.String("schedule", d.name))
		s.record(HistoryItem{Name: d.name, Started: time.Now(), Skipped: true})
		return ErrOverlapSkip
	}
	defer d.running.Store(false)

	s.mu.Lock()
	base := s.base
	timeout := d.timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	s.runs.Add(1)
	s.mu.Unlock()
	defer s.runs.Done()

	if base == nil {
		base = context.Background()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(base, timeout)
	defer cancel()

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		item := HistoryItem{Name: d.name, Started: started, Took: time.Since(started)}
		if err != nil {
			item.Err = err.Error()
			s.log.Warn("job failed", logx.String("schedule", d.name), logx.Duration("took", item.Took), logx.Err(err))
		} else {
			s.log.Debug("job done", logx.String("schedule", d.name), logx.Duration("took", item.Took))
		}
		s.record(item)
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.MaintenanceRan, Time: time.Now(), Data: item})
		}
	}()

	return d.job(ctx)
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
	s.hmu.Unlock()
}
