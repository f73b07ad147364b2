// Package clock abstracts the few time operations the reparse scheduler
// needs so that debounce windows can be driven deterministically in tests.
package clock

import "time"

// Clock is injected wherever code would otherwise call time.Now or
// time.AfterFunc directly. Production code uses Real(); tests use Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned Timer can
	// cancel the pending call with Stop or move it with Reset.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer represents one scheduled callback.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset changes the timer to fire after duration d. Returns true if the
// timer was active before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

// Since returns the time elapsed since start according to c.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}
