package bell

import "time"

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTimer(d time.Duration) Timer { return sysTimer{time.NewTimer(d)} }

type sysTimer struct{ t *time.Timer }

func (t sysTimer) C() <-chan time.Time { return t.t.C }
func (t sysTimer) Stop() bool          { return t.t.Stop() }

// OffsetClock shifts another clock by a fixed amount, for bells that run
// ahead of or behind the system time.
type OffsetClock struct {
	Base   Clock
	Offset time.Duration
}

func (c OffsetClock) Now() time.Time { return c.Base.Now().Add(c.Offset) }

func (c OffsetClock) NewTimer(d time.Duration) Timer { return c.Base.NewTimer(d) }
