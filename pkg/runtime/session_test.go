package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/goalrun/pkg/kernel/clock"
	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
)

var epoch = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

// recorder collects events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func mustCompile(t *testing.T, src string) *model.Workflow {
	t.Helper()
	wf, err := model.Load(strings.NewReader(src), model.Options{})
	require.NoError(t, err)
	return wf
}

func newSession(t *testing.T, src string, opts ...Option) (*Session, *clock.Fake, *recorder) {
	t.Helper()
	fc := clock.NewFake(epoch)
	rec := &recorder{}
	all := append([]Option{WithClock(fc), WithObserver(rec)}, opts...)
	return NewSession(mustCompile(t, src), all...), fc, rec
}

const tasks = `
apiVersion: goal/v1
goal:
  name: Morgen
  timer: {value: 10, unit: s}
  blocks:
    - {id: a, type: task, text: Aufstehen}
    - {id: b, type: task, text: Anziehen}
`

const sleepy = `
apiVersion: goal/v1
goal:
  name: Tee
  timer: {value: 10, unit: s}
  blocks:
    - {id: s, type: sleep, text: ziehen lassen, duration: {value: 1, unit: m}}
    - {id: t, type: task, text: Trinken}
`

func TestSession_EventSequence(t *testing.T) {
	var finished []string
	s, _, rec := newSession(t, tasks, WithOnFinished(func(_ context.Context, s *Session) {
		finished = append(finished, s.ID())
	}))
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))

	assert.Equal(t, []EventType{
		EventWorkflowStarted,
		EventBlockEntered,
		EventBlockCompleted, EventTaskCompleted, EventBlockEntered,
		EventBlockCompleted, EventTaskCompleted, EventWorkflowFinished,
	}, rec.types())

	assert.True(t, s.Finished())
	assert.Equal(t, []string{s.ID()}, finished, "finish hook runs exactly once")
	assert.Zero(t, s.ArmedTimers(), "no timer may outlive the workflow")

	for _, ev := range rec.events {
		assert.Equal(t, s.ID(), ev.SessionID)
		assert.Equal(t, "Morgen", ev.Workflow)
	}
	assert.Equal(t, "Aufstehen", rec.events[1].Text)
	assert.Equal(t, "Aufstehen", rec.events[2].Entry)

	err := s.Dispatch(ctx, engine.Ok())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_SecondStartEmitsNothing(t *testing.T) {
	s, _, rec := newSession(t, tasks)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	before := rec.types()

	assert.ErrorIs(t, s.Start(ctx), ErrStarted)
	assert.Equal(t, before, rec.types())
	assert.Equal(t, 1, rec.count(EventWorkflowStarted))
}

func TestSession_BeforeStart(t *testing.T) {
	s, _, _ := newSession(t, tasks)
	assert.ErrorIs(t, s.Dispatch(context.Background(), engine.Ok()), ErrNotStarted)
}

func TestSession_InvalidInstructionChangesNothing(t *testing.T) {
	s, _, rec := newSession(t, tasks)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	before := len(rec.types())

	err := s.Dispatch(ctx, engine.Yes())
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
	assert.Len(t, rec.types(), before)
	assert.Equal(t, "Aufstehen", s.Display().Current.Text)
}

func TestSession_ReminderFiresAndRepeats(t *testing.T) {
	s, fc, rec := newSession(t, tasks)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	fc.Advance(9 * time.Second)
	assert.Zero(t, rec.count(EventReminderFired))

	fc.Advance(time.Second)
	require.Equal(t, 1, rec.count(EventReminderFired))
	assert.Equal(t, "Aufstehen", rec.last().Text)

	fc.Advance(10 * time.Second)
	assert.Equal(t, 2, rec.count(EventReminderFired))
	assert.Equal(t, 1, s.ArmedTimers())
}

func TestSession_AdvanceResetsReminder(t *testing.T) {
	s, fc, rec := newSession(t, tasks)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	fc.Advance(6 * time.Second)
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))
	fc.Advance(6 * time.Second)
	assert.Zero(t, rec.count(EventReminderFired), "reminder must restart from its full interval")

	fc.Advance(4 * time.Second)
	require.Equal(t, 1, rec.count(EventReminderFired))
	assert.Equal(t, "Anziehen", rec.last().Text, "reminder names the block the user is on")
}

func TestSession_TeardownCancelsTimers(t *testing.T) {
	s, fc, rec := newSession(t, tasks)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	fc.Advance(time.Millisecond)
	s.Abort(ctx)
	fc.Advance(time.Hour)

	assert.Zero(t, rec.count(EventReminderFired))
	assert.Equal(t, EventWorkflowAborted, rec.last().Type)
	assert.Zero(t, fc.Pending())
	assert.True(t, s.Aborted())

	// Aborting twice is harmless.
	s.Abort(ctx)
	assert.Equal(t, 1, rec.count(EventWorkflowAborted))
}

func TestSession_CallbackAfterCloseIsDropped(t *testing.T) {
	s, _, rec := newSession(t, tasks)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	s.Close()

	// A callback that lost the race with Close still takes the mutex and
	// must find the session closed.
	s.fire(1, engine.TimerFired{Token: 1})
	assert.Zero(t, rec.count(EventReminderFired))
	assert.Zero(t, rec.count(EventWorkflowAborted), "Close is silent")
}

func TestSession_SleepCountdown(t *testing.T) {
	s, fc, rec := newSession(t, sleepy)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	v := s.Display()
	assert.Equal(t, engine.AtSleep, v.Phase)
	assert.Equal(t, time.Minute, v.Remaining)
	assert.Zero(t, v.Reminder, "no reminder while sleeping")

	fc.Advance(2 * time.Second)
	assert.True(t, IsInvalid(s.Dispatch(ctx, engine.Skip())), "skip before the dwell threshold")

	fc.Advance(58 * time.Second)
	assert.Zero(t, rec.count(EventReminderFired))
	v = s.Display()
	assert.Equal(t, "Trinken", v.Current.Text)
	assert.Equal(t, []string{"Warte: ziehen lassen (1 m)"}, v.Log)
	assert.Equal(t, 10*time.Second, v.Reminder)
}

func TestSession_SkipSleep(t *testing.T) {
	s, fc, _ := newSession(t, sleepy)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	fc.Advance(5 * time.Second)
	require.NoError(t, s.Dispatch(ctx, engine.Skip()))
	assert.Equal(t, "Trinken", s.Display().Current.Text)
	assert.Equal(t, 1, s.ArmedTimers(), "only the reminder is left")
}

func TestSession_PauseResumeAcknowledge(t *testing.T) {
	s, fc, rec := newSession(t, tasks)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Pause(ctx))
	assert.True(t, s.Display().Paused)
	fc.Advance(time.Hour)
	assert.Zero(t, rec.count(EventReminderFired))

	require.NoError(t, s.Resume(ctx))
	fc.Advance(8 * time.Second)
	require.NoError(t, s.Acknowledge(ctx))
	fc.Advance(8 * time.Second)
	assert.Zero(t, rec.count(EventReminderFired), "acknowledge restarts the interval")
	fc.Advance(2 * time.Second)
	assert.Equal(t, 1, rec.count(EventReminderFired))
}

func TestSession_Display(t *testing.T) {
	s, _, _ := newSession(t, `
apiVersion: goal/v1
goal:
  name: Tasche
  blocks:
    - type: parallel
      text: Packen
      choose: 1
      tasks:
        - {id: m1, text: Buch}
        - {id: m2, text: Stift}
    - {type: task, text: Los}
`, WithID("fixed"))
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	v := s.Display()
	assert.Equal(t, "fixed", v.SessionID)
	assert.Equal(t, engine.AtParallel, v.Phase)
	assert.Equal(t, "1 von 2", v.Title)
	assert.Equal(t, engine.PreviewStart, v.Prev.Text)
	assert.Equal(t, "Los", v.Next.Text)
	require.Len(t, v.Pending, 2)
	assert.Equal(t, "m2", v.Pending[1].BlockID)

	require.NoError(t, s.Dispatch(ctx, engine.Complete("m2")))
	v = s.Display()
	assert.Equal(t, "Tasche", v.Title)
	assert.Equal(t, []string{"Stift"}, v.Log)
}

func TestSession_EmptyWorkflowFinishesOnStart(t *testing.T) {
	done := 0
	s, _, rec := newSession(t, "apiVersion: goal/v1\ngoal: {name: Leer}\n",
		WithOnFinished(func(context.Context, *Session) { done++ }))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []EventType{EventWorkflowStarted, EventWorkflowFinished}, rec.types())
	assert.Equal(t, 1, done)
	assert.Equal(t, engine.PreviewEnd, s.Display().Current.Text)
}
