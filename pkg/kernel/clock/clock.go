// Package clock abstracts wall time so reminder and sleep timers can run
// against a deterministic clock in tests.
package clock

import "time"

// Clock tells time and schedules callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// call stopped it; false means it already ran or was stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
