package tokenward

import "time"

// Clock supplies the current time. Injecting it keeps expiry arithmetic
// unit-testable without real wall-clock waits.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock [Clock] used when none is injected.
func SystemClock() Clock { return systemClock{} }

// Timer is the handle to one scheduled callback. Stop reports whether the
// callback was prevented from running.
type Timer interface {
	Stop() bool
}

// Scheduler schedules a single callback after a delay. Implementations
// must run the callback on its own goroutine (or test-controlled
// equivalent) and must not block Schedule.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

type timerScheduler struct{}

type afterFuncTimer struct {
	t *time.Timer
}

func (t afterFuncTimer) Stop() bool { return t.t.Stop() }

func (timerScheduler) Schedule(d time.Duration, fn func()) Timer {
	return afterFuncTimer{t: time.AfterFunc(d, fn)}
}

// SystemScheduler returns the time.AfterFunc-backed [Scheduler] used when
// none is injected.
func SystemScheduler() Scheduler { return timerScheduler{} }
