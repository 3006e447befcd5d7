package bell

import (
	"context"
	"sync"
	"time"

	"classbell/internal/eventbus"
	"classbell/internal/storage"
	"classbell/internal/timetable"
	"classbell/pkg/logx"
)

// State of the scheduler loop.
type State string

const (
	StateIdle    State = "idle"
	StateWaiting State = "waiting"
	StateFiring  State = "firing"
)

// CatchUp decides what happens to the entry already in progress when a plan
// is (re)computed, e.g. after a restart in the middle of a lesson.
type CatchUp string

const (
	// CatchUpInProgress rings the running entry's start once if it never rang.
	CatchUpInProgress CatchUp = "in_progress"
	// CatchUpNone never replays anything from the past.
	CatchUpNone CatchUp = "none"
)

type Config struct {
	CatchUp            CatchUp
	DismissBeforeBreak bool
	// Grace is how late a transition may still ring. Older ones are dropped.
	Grace time.Duration
	// Resync caps every sleep so wall clock jumps are noticed.
	Resync   time.Duration
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.CatchUp == "" {
		c.CatchUp = CatchUpInProgress
	}
	if c.Grace <= 0 {
		c.Grace = 10 * time.Second
	}
	if c.Resync <= 0 {
		c.Resync = time.Minute
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Event is handed to the dispatcher when a transition rings.
type Event struct {
	Transition
	Label   string
	Next    *timetable.Entry
	CatchUp bool
	FiredAt time.Time
}

// Dispatcher delivers rung bells (notifier, UI binding, tests).
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

type DispatchFunc func(ctx context.Context, ev Event) error

func (f DispatchFunc) Dispatch(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Resolver yields the active timeline of a date. *timetable.Store fits.
type Resolver interface {
	Resolve(date timetable.Date) (timetable.Timeline, bool)
}

// Ledger persists fired transitions across restarts. storage.Store fits.
type Ledger interface {
	MarkFired(ctx context.Context, rec storage.FiredRecord) (bool, error)
	FiredOn(ctx context.Context, date string) ([]storage.FiredRecord, error)
}

// Scheduler rings the bells of the active timeline.
//
// Run is the only blocking part: it sleeps until the next transition (capped
// by Resync), rings it once and recomputes. Edits and day changes replace
// the plan through Invalidate/Reactivate; the pending wait is dropped
// without ringing.
type Scheduler struct {
	resolver Resolver
	dispatch Dispatcher
	ledger   Ledger
	bus      eventbus.Bus
	clock    Clock
	log      logx.Logger

	wake chan string

	mu     sync.Mutex
	cfg    Config
	state  State
	plan   Plan
	cursor int

	// fired is only touched by the Run goroutine.
	fired     map[string]bool
	firedDate timetable.Date
}

type Option func(*Scheduler)

func WithClock(c Clock) Option        { return func(s *Scheduler) { s.clock = c } }
func WithLedger(l Ledger) Option      { return func(s *Scheduler) { s.ledger = l } }
func WithBus(b eventbus.Bus) Option   { return func(s *Scheduler) { s.bus = b } }
func WithLogger(l logx.Logger) Option { return func(s *Scheduler) { s.log = l } }

func New(cfg Config, resolver Resolver, dispatch Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		resolver: resolver,
		dispatch: dispatch,
		clock:    SystemClock{},
		wake:     make(chan string, 1),
		cfg:      cfg.withDefaults(),
		state:    StateIdle,
		fired:    map[string]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// Apply swaps the configuration and recomputes the plan.
func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
	s.signal("config")
}

// Invalidate drops the current wait and recomputes; call it after the
// active timeline was edited.
func (s *Scheduler) Invalidate() { s.signal("invalidate") }

// Reactivate re-runs the resolver, e.g. at midnight or after a reschedule.
func (s *Scheduler) Reactivate() { s.signal("reactivate") }

func (s *Scheduler) signal(reason string) {
	select {
	case s.wake <- reason:
	default:
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Plan returns the plan currently being followed.
func (s *Scheduler) Plan() Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Now is the scheduler's notion of the current time (offset applied).
func (s *Scheduler) Now() time.Time { return s.clock.Now().In(s.config().Location) }

func (s *Scheduler) Status() Status {
	st := StatusAt(s.Plan(), s.Now())
	st.State = s.State()
	return st
}

func (s *Scheduler) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()
	if changed && s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.BellState, Data: st})
	}
}

// Run drives the state machine until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateIdle)
	s.recompute(ctx, "start")
	for {
		cfg := s.config()
		now := s.clock.Now().In(cfg.Location)
		if timetable.DateOf(now) != s.Plan().Date {
			s.recompute(ctx, "rollover")
			now = s.clock.Now().In(cfg.Location)
		}
		s.fireDue(ctx, now, cfg)
		if ctx.Err() != nil {
			return nil
		}

		wait, pending := s.nextWait(now, cfg)
		if pending {
			s.setState(StateWaiting)
		} else {
			s.setState(StateIdle)
		}

		t := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C():
		case reason := <-s.wake:
			t.Stop()
			s.recompute(ctx, reason)
		}
	}
}

// recompute resolves today's timeline and rebuilds the plan. Transitions
// already older than the grace window are skipped, never replayed.
func (s *Scheduler) recompute(ctx context.Context, reason string) {
	cfg := s.config()
	now := s.clock.Now().In(cfg.Location)
	date := timetable.DateOf(now)

	// An entry ending at 24:00 rings at the first instant of the next day,
	// so the outgoing plan gets its last chance before it is replaced.
	if cur := s.Plan(); cur.Active() && cur.Date != date {
		s.fireDue(ctx, now, cfg)
	}

	tl, ok := s.resolver.Resolve(date)
	plan := BuildPlan(date, tl, ok, cfg.Location, PlanOptions{DismissBeforeBreak: cfg.DismissBeforeBreak})

	if date != s.firedDate {
		s.loadFired(ctx, date)
	}

	s.mu.Lock()
	prev := s.plan
	s.plan = plan
	s.cursor = plan.Next(now.Add(-cfg.Grace))
	s.mu.Unlock()

	s.log.Debug("plan computed",
		logx.String("reason", reason),
		logx.String("date", date.String()),
		logx.String("timeline", plan.TimelineID),
		logx.Int("transitions", len(plan.Transitions)),
	)
	if s.bus != nil && (prev.TimelineID != plan.TimelineID || prev.Date != plan.Date) {
		s.bus.Publish(eventbus.Event{Type: eventbus.BellInvalidated, Data: map[string]any{
			"reason":   reason,
			"date":     date.String(),
			"timeline": plan.TimelineID,
		}})
	}

	if cfg.CatchUp == CatchUpInProgress {
		s.catchUp(ctx, plan, now)
	}
}

func (s *Scheduler) loadFired(ctx context.Context, date timetable.Date) {
	s.fired = map[string]bool{}
	s.firedDate = date
	if s.ledger == nil {
		return
	}
	recs, err := s.ledger.FiredOn(ctx, date.String())
	if err != nil {
		s.log.Warn("fired ledger read failed", logx.String("date", date.String()), logx.Err(err))
		return
	}
	for _, r := range recs {
		s.fired[r.Key] = true
	}
}

// catchUp rings the start of the entry in progress at now, if it never rang.
func (s *Scheduler) catchUp(ctx context.Context, plan Plan, now time.Time) {
	for _, tr := range plan.Transitions {
		if tr.Kind != ActivityStart || tr.At.After(now) {
			continue
		}
		end := tr.Entry.End.On(plan.Date, now.Location())
		if now.Before(end) {
			s.fire(ctx, plan, tr, true)
		}
	}
}

// fireDue rings every transition in (now-grace, now] and skips older ones.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time, cfg Config) {
	for {
		s.mu.Lock()
		plan := s.plan
		if s.cursor >= len(plan.Transitions) || plan.Transitions[s.cursor].At.After(now) {
			s.mu.Unlock()
			return
		}
		tr := plan.Transitions[s.cursor]
		s.cursor++
		s.mu.Unlock()

		if late := now.Sub(tr.At); late > cfg.Grace {
			s.log.Info("transition skipped",
				logx.String("kind", string(tr.Kind)),
				logx.Time("at", tr.At),
				logx.Duration("late", late),
			)
			continue
		}
		s.fire(ctx, plan, tr, false)
	}
}

func (s *Scheduler) fire(ctx context.Context, plan Plan, tr Transition, catchUp bool) {
	// Keyed by entry, not instant: moving an entry that already rang must
	// not ring it again.
	key := storage.FiredKey(tr.Date.String(), tr.TimelineID, tr.Entry.ID, string(tr.Kind))
	if s.fired[key] {
		return
	}
	s.fired[key] = true

	firedAt := s.clock.Now()
	if s.ledger != nil {
		fresh, err := s.ledger.MarkFired(ctx, storage.FiredRecord{
			Key:        key,
			Date:       tr.Date.String(),
			TimelineID: tr.TimelineID,
			EntryID:    tr.Entry.ID,
			Kind:       string(tr.Kind),
			At:         tr.At,
			FiredAt:    firedAt,
		})
		switch {
		case err != nil:
			s.log.Warn("fired ledger write failed", logx.String("key", key), logx.Err(err))
		case !fresh:
			return
		}
	}

	s.setState(StateFiring)
	ev := Event{Transition: tr, Label: plan.Label, Next: nextEntry(plan, tr), CatchUp: catchUp, FiredAt: firedAt}
	s.log.Info("bell",
		logx.String("kind", string(tr.Kind)),
		logx.String("entry", tr.Entry.ID),
		logx.Time("at", tr.At),
		logx.Bool("catch_up", catchUp),
	)
	if s.dispatch != nil {
		if err := s.dispatch.Dispatch(ctx, ev); err != nil {
			s.log.Warn("bell dispatch failed", logx.String("kind", string(tr.Kind)), logx.Err(err))
		}
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.BellTransition, Data: ev})
	}
}

func nextEntry(plan Plan, tr Transition) *timetable.Entry {
	at := timetable.ClockOf(tr.At)
	for i := range plan.Entries {
		e := plan.Entries[i]
		if e.ID == tr.Entry.ID || e.Kind == timetable.KindBreak {
			continue
		}
		if e.Start >= at {
			return &e
		}
	}
	return nil
}

func (s *Scheduler) nextWait(now time.Time, cfg Config) (time.Duration, bool) {
	s.mu.Lock()
	plan, cursor := s.plan, s.cursor
	s.mu.Unlock()

	wait := cfg.Resync
	pending := plan.Active() && cursor < len(plan.Transitions)
	if pending {
		if d := plan.Transitions[cursor].At.Sub(now); d < wait {
			wait = d
		}
	}
	midnight := timetable.DateOf(now).AddDays(1).In(cfg.Location)
	if d := midnight.Sub(now); d < wait {
		wait = d
	}
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, pending
}
