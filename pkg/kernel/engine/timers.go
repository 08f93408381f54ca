package engine

import (
	"time"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
)

// liveTimer resolves the reminder for the current position: the innermost
// enabled timer on the path, else the goal's.
func (m *machine) liveTimer() (owner string, t *model.Timer) {
	for i := len(m.st.Frames) - 1; i >= 0; i-- {
		id := m.st.Frames[i].current()
		if id == "" {
			continue
		}
		if b := m.wf.Block(id); b != nil {
			if r := b.Reminder(); r != nil && r.Enabled {
				return id, r
			}
		}
	}
	if t := m.wf.Timer; t != nil && t.Enabled {
		return "", t
	}
	return "", nil
}

func (m *machine) cancelReminder() {
	if r := m.st.Reminder; r != nil {
		m.emit(CancelReminder{Token: r.Token})
		m.st.Reminder = nil
	}
}

// retime cancels the live reminder and arms a fresh one, at full interval,
// for wherever the cursor now rests.
func (m *machine) retime() {
	m.cancelReminder()
	switch m.st.Phase {
	case PhaseIdle, AtSleep, AtEnd:
		return
	}
	if m.st.Paused || m.st.Closed {
		return
	}
	owner, t := m.liveTimer()
	if t == nil {
		return
	}
	tok := m.st.nextToken()
	m.st.Reminder = &reminderState{BlockID: owner, Interval: t.Interval, Token: tok}
	m.emit(ArmReminder{Token: tok, Interval: t.Interval})
}

// fireReminder handles a reminder tick. Stale tokens are dropped.
func (m *machine) fireReminder(token uint64) {
	r := m.st.Reminder
	if r == nil || r.Token != token {
		return
	}
	id := m.st.currentBlock()
	m.emit(ReminderFired{BlockID: id, Text: m.wf.Block(id).DisplayText()})

	r.Token = m.st.nextToken()
	m.emit(ArmReminder{Token: r.Token, Interval: r.Interval})
}

func (m *machine) enterSleep(b *model.Sleep) {
	tok := m.st.nextToken()
	m.st.Sleep = &sleepState{BlockID: b.ID, StartedAt: m.now, Duration: b.Duration, Token: tok}
	m.enter(b, AtSleep, b.DisplayText(), "")
	m.emit(ArmCountdown{Token: tok, Duration: b.Duration})
}

func (m *machine) skipThreshold(b *model.Sleep) time.Duration {
	if b.SkipAfter != nil {
		return *b.SkipAfter
	}
	return m.cfg.SkipAfter
}

func (m *machine) checkSkip(in Instruction) error {
	s := m.st.Sleep
	b := m.wf.Block(s.BlockID).(*model.Sleep)
	th := m.skipThreshold(b)
	if th < 0 {
		return invalid(in, AtSleep, "sleep %q cannot be skipped", b.ID)
	}
	if elapsed := m.now.Sub(s.StartedAt); elapsed < th {
		return invalid(in, AtSleep, "skip allowed after %s, only %s elapsed", th, elapsed)
	}
	return nil
}

// leaveSleep ends the sleep early, cancelling its countdown.
func (m *machine) leaveSleep() {
	s := m.st.Sleep
	m.emit(CancelCountdown{Token: s.Token})
	m.st.Sleep = nil
	m.completeSleep(m.wf.Block(s.BlockID).(*model.Sleep))
	m.next()
}

// expire handles the countdown reaching zero. Stale tokens are dropped.
func (m *machine) expire(token uint64) {
	s := m.st.Sleep
	if m.st.Phase != AtSleep || s == nil || s.Token != token {
		return
	}
	m.st.Sleep = nil
	m.completeSleep(m.wf.Block(s.BlockID).(*model.Sleep))
	m.next()
	m.settle()
	m.retime()
}

func (m *machine) completeSleep(b *model.Sleep) {
	text := b.DisplayText()
	m.log(b.ID, text)
	m.emit(BlockCompleted{BlockID: b.ID, Kind: b.Kind(), Entry: text})
	m.emit(TaskCompleted{BlockID: b.ID})
}
