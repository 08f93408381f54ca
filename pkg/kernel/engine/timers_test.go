package engine

import (
	"errors"
	"testing"
	"time"
)

const sleepWorkflow = `
apiVersion: goal/v1
goal:
  name: Warten
  timer: {value: 10, unit: s}
  blocks:
    - {type: task, text: Vorher}
    - type: sleep
      text: Tee
      duration: {value: 60, unit: s}
    - {type: task, text: Nachher}
`

func TestSleep_SkipAfterThreshold(t *testing.T) {
	c := start(t, sleepWorkflow)
	drive(t, c, Ok())
	if c.Phase() != AtSleep {
		t.Fatalf("phase = %s, want AtSleep", c.Phase())
	}

	if _, err := c.Step(epoch.Add(2*time.Second), Skip()); !errors.Is(err, ErrInvalidInstruction) {
		t.Errorf("early skip: err = %v, want ErrInvalidInstruction", err)
	}
	effects, err := c.Step(epoch.Add(3500*time.Millisecond), Skip())
	if err != nil {
		t.Fatalf("skip at 3.5s: %v", err)
	}
	if countEffects[CancelCountdown](effects) != 1 {
		t.Error("skip must cancel the countdown")
	}
	if c.Current().Text != "Nachher" {
		t.Errorf("current = %q, want Nachher", c.Current().Text)
	}
	want := []string{"Vorher", "Warte: Tee (60 s)"}
	if got := c.LogTexts(); !equalStrings(got, want) {
		t.Errorf("log = %v, want %v", got, want)
	}
}

func TestSleep_CountdownExpiryAdvances(t *testing.T) {
	c := start(t, sleepWorkflow)
	effects := drive(t, c, Ok())

	var arm ArmCountdown
	for _, e := range effects {
		if a, ok := e.(ArmCountdown); ok {
			arm = a
		}
	}
	if arm.Duration != time.Minute {
		t.Fatalf("countdown = %v, want 1m", arm.Duration)
	}
	if got := c.Remaining(epoch.Add(20 * time.Second)); got != 40*time.Second {
		t.Errorf("remaining = %v, want 40s", got)
	}

	// A stale token does nothing.
	if out, _ := c.Step(epoch.Add(time.Minute), CountdownExpired{Token: arm.Token + 99}); len(out) != 0 {
		t.Errorf("stale expiry produced %v", out)
	}
	effects, err := c.Step(epoch.Add(time.Minute), CountdownExpired{Token: arm.Token})
	if err != nil {
		t.Fatal(err)
	}
	if c.Current().Text != "Nachher" {
		t.Errorf("current = %q, want Nachher", c.Current().Text)
	}
	if countEffects[TaskCompleted](effects) != 1 {
		t.Error("sleep completion should award a task")
	}
}

func TestSleep_SuspendsReminders(t *testing.T) {
	c := start(t, sleepWorkflow)
	effects := drive(t, c, Ok())
	if countEffects[CancelReminder](effects) != 1 {
		t.Errorf("entering sleep must cancel the reminder: %v", effects)
	}
	if countEffects[ArmReminder](effects) != 0 {
		t.Errorf("no reminder may be armed while sleeping: %v", effects)
	}
	if _, _, ok := c.ActiveReminder(); ok {
		t.Error("reminder live during sleep")
	}
	effects, _ = c.Step(epoch.Add(4*time.Second), Skip())
	if _, ok := lastArm(effects); !ok {
		t.Error("reminder should resume after the sleep")
	}
}

func TestSleep_ZeroDurationPassesThrough(t *testing.T) {
	c := start(t, `
apiVersion: goal/v1
goal:
  name: Sofort
  blocks:
    - {type: sleep, duration: {value: -5, unit: m}}
    - {type: sleep, text: kaputt, duration: {value: abc}}
    - {type: task, text: Da}
`)
	if c.Current().Text != "Da" {
		t.Fatalf("current = %q, want Da", c.Current().Text)
	}
	want := []string{"Warte (-5 m)", "Warte: kaputt (abc s)"}
	if got := c.LogTexts(); !equalStrings(got, want) {
		t.Errorf("log = %v, want %v", got, want)
	}
}

func TestSleep_SkipThresholdOverrides(t *testing.T) {
	wf := compile(t, `
apiVersion: goal/v1
goal:
  name: Ohne
  blocks:
    - {type: sleep, text: fest, duration: {value: 1, unit: h}}
    - {type: sleep, text: kurz, duration: {value: 1, unit: h}, skip_after: 10s}
`)
	c := NewCursor(wf, Config{SkipAfter: -1})
	if _, err := c.Start(epoch); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Step(epoch.Add(30*time.Minute), Skip()); !errors.Is(err, ErrInvalidInstruction) {
		t.Errorf("skip with skipping disabled: err = %v", err)
	}
	// Expire the first sleep, then the second one has its own threshold.
	c.Step(epoch.Add(time.Hour), CountdownExpired{Token: c.st.Sleep.Token})
	if c.Current().Text != "Warte: kurz (1 h)" {
		t.Fatalf("current = %q", c.Current().Text)
	}
	if _, err := c.Step(epoch.Add(time.Hour+5*time.Second), Skip()); err == nil {
		t.Error("skip before per-block threshold accepted")
	}
	if _, err := c.Step(epoch.Add(time.Hour+10*time.Second), Skip()); err != nil {
		t.Errorf("skip after per-block threshold: %v", err)
	}
	if !c.Finished() {
		t.Errorf("phase = %s, want AtEnd", c.Phase())
	}
}

const timerWorkflow = `
apiVersion: goal/v1
goal:
  name: Erinnern
  timer: {value: 1, unit: m}
  blocks:
    - {type: task, text: Ohne}
    - {type: task, text: Eigen, timer: {value: 20, unit: s}}
    - type: repeat
      mode: while
      condition: Nochmal
      timer: {value: 30, unit: s}
      body:
        - {type: task, text: Drin}
        - {type: task, text: Aus, timer: {value: 5, unit: s, enabled: false}}
    - {type: task, text: Zu schnell, timer: {value: 1, unit: s}}
`

func TestTimers_InnermostWins(t *testing.T) {
	c := start(t, timerWorkflow)
	check := func(step string, wantOwner bool, want time.Duration) {
		t.Helper()
		owner, iv, ok := c.ActiveReminder()
		if !ok {
			t.Fatalf("%s: no live reminder", step)
		}
		if iv != want {
			t.Errorf("%s: interval = %v, want %v", step, iv, want)
		}
		if (owner != "") != wantOwner {
			t.Errorf("%s: owner = %q", step, owner)
		}
	}

	check("goal timer", false, time.Minute)
	drive(t, c, Ok())
	check("own timer", true, 20*time.Second)
	drive(t, c, Ok())
	check("loop condition", true, 30*time.Second)
	drive(t, c, Yes())
	check("inside loop body", true, 30*time.Second)
	drive(t, c, Ok())
	check("disabled timer falls back to loop", true, 30*time.Second)
	drive(t, c, Ok(), No())
	check("sub-minimum interval clamped", true, 4*time.Second)
	drive(t, c, Ok())
	if _, _, ok := c.ActiveReminder(); ok {
		t.Error("reminder live after the end")
	}
}

func TestTimers_ResetOnEveryInstruction(t *testing.T) {
	c := start(t, taskSequence+"  timer: {value: 8, unit: s}\n")
	for i := 0; i < 4; i++ {
		effects := drive(t, c, Ok())
		if countEffects[CancelReminder](effects) != 1 {
			t.Errorf("step %d: cancel count = %d", i, countEffects[CancelReminder](effects))
		}
		arm, ok := lastArm(effects)
		if !ok || arm.Interval != 8*time.Second {
			t.Errorf("step %d: arm = %#v", i, arm)
		}
	}
}

func TestTimers_FireRepeatsWithCurrentText(t *testing.T) {
	c := start(t, timerWorkflow)
	tok := c.st.Reminder.Token

	effects, err := c.Step(epoch.Add(time.Minute), TimerFired{Token: tok})
	if err != nil {
		t.Fatal(err)
	}
	var fired ReminderFired
	for _, e := range effects {
		if f, ok := e.(ReminderFired); ok {
			fired = f
		}
	}
	if fired.Text != "Ohne" {
		t.Errorf("reminder text = %q, want Ohne", fired.Text)
	}
	arm, ok := lastArm(effects)
	if !ok || arm.Token == tok {
		t.Fatalf("reminder must re-arm with a fresh token, got %#v", arm)
	}

	// The old token is stale now.
	if out, _ := c.Step(epoch.Add(2*time.Minute), TimerFired{Token: tok}); len(out) != 0 {
		t.Errorf("stale tick produced %v", out)
	}
}

func TestTimers_StaleAfterAdvance(t *testing.T) {
	c := start(t, timerWorkflow)
	tok := c.st.Reminder.Token
	drive(t, c, Ok())
	out, err := c.Step(epoch.Add(time.Minute), TimerFired{Token: tok})
	if err != nil || len(out) != 0 {
		t.Errorf("reminder for a block already left fired: %v %v", out, err)
	}
}

func TestTimers_TeardownCancelsEverything(t *testing.T) {
	c := start(t, sleepWorkflow)
	rtok := c.st.Reminder.Token
	drive(t, c, Ok())
	stok := c.st.Sleep.Token

	effects := c.Teardown()
	if countEffects[CancelCountdown](effects) != 1 {
		t.Errorf("teardown effects = %v", effects)
	}
	for _, ev := range []Event{TimerFired{Token: rtok}, CountdownExpired{Token: stok}} {
		out, err := c.Step(epoch.Add(time.Hour), ev)
		if err != nil || len(out) != 0 {
			t.Errorf("%T after teardown: %v %v", ev, out, err)
		}
	}
}

func TestTimers_PauseResumeAndAcknowledge(t *testing.T) {
	c := start(t, timerWorkflow)

	effects, _ := c.Step(epoch, Pause{})
	if countEffects[CancelReminder](effects) != 1 || countEffects[ArmReminder](effects) != 0 {
		t.Errorf("pause effects = %v", effects)
	}
	effects = drive(t, c, Ok())
	if countEffects[ArmReminder](effects) != 0 {
		t.Error("reminder armed while paused")
	}
	effects, _ = c.Step(epoch, Resume{})
	if arm, ok := lastArm(effects); !ok || arm.Interval != 20*time.Second {
		t.Errorf("resume effects = %v", effects)
	}

	before := c.st.Reminder.Token
	effects, _ = c.Step(epoch, ReminderAcknowledged{})
	arm, ok := lastArm(effects)
	if !ok || arm.Token == before || arm.Interval != 20*time.Second {
		t.Errorf("acknowledge effects = %v", effects)
	}
}
