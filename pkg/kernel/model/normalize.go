package model

import (
	"math"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/schema"
)

// DefaultMinReminderInterval is the shortest reminder interval allowed.
const DefaultMinReminderInterval = 4 * time.Second

const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// UnitKnown reports whether u is one of the supported time bases.
func UnitKnown(u string) bool {
	switch u {
	case "", "s", "m", "h":
		return true
	}
	return false
}

func unitSeconds(u string) float64 {
	switch u {
	case "m":
		return 60
	case "h":
		return 3600
	}
	return 1
}

// seconds converts a quantity to seconds. Malformed, negative and
// non-finite amounts become 0. Unknown units count as seconds.
func seconds(q schema.Quantity) float64 {
	v, ok := q.Value.Float()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	s := v * unitSeconds(q.Unit)
	if s > maxSeconds {
		return maxSeconds
	}
	return s
}

// ReminderInterval normalizes a timer quantity and clamps it up to floor.
func ReminderInterval(q schema.Quantity, floor time.Duration) time.Duration {
	d := time.Duration(seconds(q) * float64(time.Second))
	if d < floor {
		return floor
	}
	return d
}

// SleepDuration normalizes a sleep quantity. Anything unusable is 0.
func SleepDuration(q *schema.Quantity) time.Duration {
	if q == nil {
		return 0
	}
	return time.Duration(seconds(*q) * float64(time.Second))
}

func timerFrom(t *schema.Timer, floor time.Duration) *Timer {
	if t == nil {
		return nil
	}
	return &Timer{
		Interval: ReminderInterval(t.Quantity, floor),
		Enabled:  t.IsEnabled(),
	}
}
