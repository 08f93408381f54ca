// Package engine implements the goal workflow interpreter: a cursor that
// walks the block tree one user decision at a time.
//
// The cursor is a pure state machine. Step takes the current time and an
// event and returns effects; timer effects are commands the host carries
// out with a real or fake clock.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/trace"
)

// DefaultSkipAfter is how long a sleep must run before skip is accepted.
const DefaultSkipAfter = 3 * time.Second

// ErrStarted is returned by a second call to Start.
var ErrStarted = errors.New("cursor already started")

// Config configures a Cursor.
type Config struct {
	// SkipAfter is the minimum dwell before a sleep can be skipped.
	// Negative disables skipping. Sleep blocks may override it.
	SkipAfter time.Duration
}

// DefaultConfig returns the stock cursor configuration.
func DefaultConfig() Config {
	return Config{SkipAfter: DefaultSkipAfter}
}

// Cursor executes one workflow. It is not safe for concurrent use; the
// owner serializes calls.
type Cursor struct {
	wf  *model.Workflow
	cfg Config
	st  State
}

// NewCursor creates a cursor positioned before the first block.
func NewCursor(wf *model.Workflow, cfg Config) *Cursor {
	return &Cursor{wf: wf, cfg: cfg, st: newState()}
}

func (c *Cursor) machine(now time.Time) *machine {
	return &machine{wf: c.wf, cfg: c.cfg, st: &c.st, now: now}
}

// Start enters the first block. A workflow without reachable blocks
// finishes immediately.
func (c *Cursor) Start(now time.Time) ([]Effect, error) {
	if c.st.Closed {
		return nil, ErrClosed
	}
	if c.st.Phase != PhaseIdle {
		return nil, ErrStarted
	}
	m := c.machine(now)
	m.push(frameRoot, "", c.wf.Root)
	m.settle()
	m.retime()
	return m.out, nil
}

// Step applies one event. Instructions that the current phase does not
// accept fail with *InvalidInstructionError and leave the state untouched.
// Timer events carrying stale tokens are ignored.
func (c *Cursor) Step(now time.Time, ev Event) ([]Effect, error) {
	m := c.machine(now)
	switch e := ev.(type) {
	case Instruction:
		if c.st.Closed {
			return nil, fmt.Errorf("%s: %w", e, ErrClosed)
		}
		if c.st.Phase == PhaseIdle {
			return nil, fmt.Errorf("%s: %w", e, ErrNotStarted)
		}
		if err := m.instruct(e); err != nil {
			return nil, err
		}
	case TimerFired:
		if !c.st.Closed {
			m.fireReminder(e.Token)
		}
	case CountdownExpired:
		if !c.st.Closed {
			m.expire(e.Token)
		}
	case ReminderAcknowledged:
		if !c.st.Closed {
			m.retime()
		}
	case Pause:
		if !c.st.Paused {
			c.st.Paused = true
			m.retime()
		}
	case Resume:
		if c.st.Paused {
			c.st.Paused = false
			m.retime()
		}
	default:
		return nil, fmt.Errorf("unsupported event %T", ev)
	}
	return m.out, nil
}

// Teardown cancels every live timer. Afterwards instructions fail with
// ErrClosed and timer events are ignored.
func (c *Cursor) Teardown() []Effect {
	if c.st.Closed {
		return nil
	}
	m := c.machine(time.Time{})
	m.cancelReminder()
	if s := c.st.Sleep; s != nil {
		m.emit(CancelCountdown{Token: s.Token})
		c.st.Sleep = nil
	}
	c.st.Closed = true
	return m.out
}

// Workflow returns the workflow being executed.
func (c *Cursor) Workflow() *model.Workflow { return c.wf }

// Phase returns the current phase.
func (c *Cursor) Phase() Phase { return c.st.Phase }

// Finished reports whether the cursor reached the end.
func (c *Cursor) Finished() bool { return c.st.Phase == AtEnd }

// Closed reports whether Teardown ran.
func (c *Cursor) Closed() bool { return c.st.Closed }

// Paused reports whether reminders are suspended by Pause.
func (c *Cursor) Paused() bool { return c.st.Paused }

// Log returns a copy of the execution log.
func (c *Cursor) Log() []trace.Entry { return c.st.Log.Entries() }

// LogTexts returns the execution log as plain strings.
func (c *Cursor) LogTexts() []string { return c.st.Log.Texts() }

// Title is the parallel progress text at a parallel block and the
// workflow name elsewhere.
func (c *Cursor) Title() string {
	if c.st.Phase == AtParallel && c.st.Parallel != nil {
		return c.st.Parallel.title()
	}
	return c.wf.Name
}

// Pending lists the mini-tasks still selectable at a parallel block.
func (c *Cursor) Pending() []Preview {
	if c.st.Parallel == nil {
		return nil
	}
	out := make([]Preview, 0, len(c.st.Parallel.Pending))
	for _, id := range c.st.Parallel.Pending {
		out = append(out, previewOf(c.wf.Block(id)))
	}
	return out
}

// Remaining returns the time left on the sleep countdown.
func (c *Cursor) Remaining(now time.Time) time.Duration {
	s := c.st.Sleep
	if s == nil {
		return 0
	}
	return max(s.Duration-now.Sub(s.StartedAt), 0)
}

// ActiveReminder reports the live reminder: the id of the block owning the
// timer ("" for the goal) and its interval.
func (c *Cursor) ActiveReminder() (owner string, interval time.Duration, ok bool) {
	r := c.st.Reminder
	if r == nil {
		return "", 0, false
	}
	return r.BlockID, r.Interval, true
}
