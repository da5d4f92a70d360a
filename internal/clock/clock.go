// Package clock abstracts the timers the stream session schedules so
// reconnect and refresh delays can be driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake(), whose time only moves
// when Advance is called; AfterFunc callbacks run synchronously inside
// Advance, in deadline order.
package clock

import "time"

// Clock is the subset of the time package the session needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable scheduled call.
type Timer struct {
	stop func() bool
}

// Stop prevents the call from running. It reports whether the timer was
// still pending.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}
