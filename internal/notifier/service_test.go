package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classbell/internal/bell"
	"classbell/internal/eventbus"
	"classbell/internal/storage"
	"classbell/internal/timetable"
	kit "classbell/internal/transport"
)

type recordingSink struct {
	name  string
	mu    sync.Mutex
	fails int
	got   []kit.Message
	sent  chan kit.Message
}

func newRecordingSink(name string, fails int) *recordingSink {
	return &recordingSink{name: name, fails: fails, sent: make(chan kit.Message, 8)}
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(_ context.Context, m kit.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("boom")
	}
	r.got = append(r.got, m)
	r.sent <- m
	return nil
}

type deliveryLog struct {
	storage.Store
	mu  sync.Mutex
	out []storage.Delivery
}

func (d *deliveryLog) AppendDelivery(_ context.Context, rec storage.Delivery) error {
	d.mu.Lock()
	d.out = append(d.out, rec)
	d.mu.Unlock()
	return nil
}

func fastConfig() Config {
	return Config{
		Enabled:       true,
		Workers:       1,
		RatePerSec:    100,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
}

func waitMsg(t *testing.T, ch <-chan kit.Message) kit.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	return kit.Message{}
}

func TestNotifyFansOutToSinks(t *testing.T) {
	t.Parallel()
	a, b := newRecordingSink("a", 0), newRecordingSink("b", 0)
	svc := New(fastConfig(), nopLog(), nil, nil, a, b)
	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	if err := svc.Notify(context.Background(), kit.Message{Kind: "system", Title: "hi"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if m := waitMsg(t, a.sent); m.Level != kit.LevelInfo {
		t.Fatalf("level = %q, want default info", m.Level)
	}
	waitMsg(t, b.sent)
}

func TestNotifyRetriesAndLogsDelivery(t *testing.T) {
	t.Parallel()
	sink := newRecordingSink("flaky", 2)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16, "notifier.")
	defer unsub()
	store := &deliveryLog{}

	svc := New(fastConfig(), nopLog(), bus, store, sink)
	svc.Start(context.Background())
	if err := svc.Notify(context.Background(), kit.Message{Kind: "dismissal", Title: "School is over"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitMsg(t, sink.sent)
	svc.Stop(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.out) != 1 || !store.out[0].OK || store.out[0].Sink != "flaky" {
		t.Fatalf("deliveries = %+v", store.out)
	}
	if h := svc.Snapshot(); len(h) != 1 || h[0].Title != "School is over" {
		t.Fatalf("history = %+v", h)
	}

	var sawSent bool
	for len(events) > 0 {
		if ev := <-events; ev.Type == eventbus.NotifierSent {
			sawSent = true
		}
	}
	if !sawSent {
		t.Fatal("no notifier.sent event")
	}
}

func TestNotifyGivesUpAfterRetries(t *testing.T) {
	t.Parallel()
	sink := newRecordingSink("down", 10)
	store := &deliveryLog{}
	svc := New(fastConfig(), nopLog(), nil, store, sink)
	svc.Start(context.Background())
	_ = svc.Notify(context.Background(), kit.Message{Kind: "system", Title: "x"})
	svc.Stop(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.out) != 1 || store.out[0].OK || store.out[0].Error != "boom" {
		t.Fatalf("deliveries = %+v", store.out)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.fails != 7 {
		t.Fatalf("attempts = %d, want 3", 10-sink.fails)
	}
}

func TestNotifyStates(t *testing.T) {
	t.Parallel()
	off := New(Config{}, nopLog(), nil, nil, newRecordingSink("a", 0))
	if err := off.Notify(context.Background(), kit.Message{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled: err = %v", err)
	}

	idle := New(fastConfig(), nopLog(), nil, nil, newRecordingSink("a", 0))
	if err := idle.Notify(context.Background(), kit.Message{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("not started: err = %v", err)
	}

	empty := New(fastConfig(), nopLog(), nil, nil)
	empty.Start(context.Background())
	defer empty.Stop(context.Background())
	if err := empty.Notify(context.Background(), kit.Message{}); !errors.Is(err, ErrNoSinks) {
		t.Fatalf("no sinks: err = %v", err)
	}
}

func TestCompose(t *testing.T) {
	t.Parallel()
	reg := timetable.NewSubjectMap([]timetable.Subject{{ID: "math", Name: "Maths", Location: "Room 3"}})
	date := timetable.Date{Year: 2024, Month: time.January, Day: 1}
	e1 := timetable.Entry{ID: "e1", Kind: timetable.KindClass, SubjectID: "math", Start: timetable.HM(8, 0), End: timetable.HM(8, 45)}
	e3 := timetable.Entry{ID: "e3", Kind: timetable.KindClass, Title: "Physics", Start: timetable.HM(9, 0), End: timetable.HM(9, 45)}
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		ev    bell.Event
		title string
		body  string
		level kit.Level
	}{
		{
			name:  "start",
			ev:    bell.Event{Transition: bell.Transition{Kind: bell.ActivityStart, At: at, Entry: e1, Date: date}},
			title: "Class begins", body: "Maths until 08:45 · Room 3", level: kit.LevelInfo,
		},
		{
			name:  "end with next",
			ev:    bell.Event{Transition: bell.Transition{Kind: bell.ActivityEnd, At: at, Entry: e1, Date: date}, Next: &e3},
			title: "Class is over", body: "Maths has ended\nNext: Physics at 09:00", level: kit.LevelInfo,
		},
		{
			name:  "dismissal",
			ev:    bell.Event{Transition: bell.Transition{Kind: bell.Dismissal, At: at, Entry: e3, Date: date}},
			title: "School is over", body: "", level: kit.LevelAnnouncement,
		},
		{
			name:  "catch up",
			ev:    bell.Event{Transition: bell.Transition{Kind: bell.ActivityStart, At: at, Entry: e3, Date: date}, CatchUp: true},
			title: "Class begins", body: "Physics until 09:45 (late)", level: kit.LevelInfo,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Compose(tt.ev, reg)
			if m.Title != tt.title || m.Body != tt.body || m.Level != tt.level {
				t.Fatalf("Compose = %q / %q / %s, want %q / %q / %s", m.Title, m.Body, m.Level, tt.title, tt.body, tt.level)
			}
			if m.Kind != string(tt.ev.Kind) || !m.FireTime.Equal(at) {
				t.Fatalf("kind/fire time = %s %v", m.Kind, m.FireTime)
			}
		})
	}
}
