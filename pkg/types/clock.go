// Package types holds the primitives shared by every workchan package:
// the clock abstraction, worker identity and the error taxonomy.
package types

import "time"

// Clock abstracts the time operations used by timed waits so tests can
// drive them with a mock clock.
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration
	// After returns a channel that delivers the current time after d
	After(d time.Duration) <-chan time.Time
	// NewTimer creates a new Timer firing after d
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of *time.Timer the library relies on.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock implements Clock on top of package time.
type RealClock struct{}

// NewRealClock creates a new real clock
func NewRealClock() Clock {
	return RealClock{}
}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}

// OrRealClock returns c, or a real clock when c is nil.
func OrRealClock(c Clock) Clock {
	if c == nil {
		return NewRealClock()
	}
	return c
}
