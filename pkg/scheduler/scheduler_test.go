package scheduler

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
	"github.com/ormasoftchile/goalrun/pkg/runtime"
)

var epoch = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []runtime.Event
}

func (r *recorder) OnEvent(_ context.Context, ev runtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []runtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runtime.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// filter keeps only the workflow and schedule lifecycle events.
func (r *recorder) lifecycle() []runtime.EventType {
	var out []runtime.EventType
	for _, t := range r.types() {
		if strings.HasPrefix(string(t), "workflow.") || strings.HasPrefix(string(t), "schedule.") {
			out = append(out, t)
		}
	}
	return out
}

func ref(t *testing.T, src string) Ref {
	t.Helper()
	wf, err := model.Load(strings.NewReader(src), model.Options{})
	require.NoError(t, err)
	return Ref{Workflow: wf}
}

const (
	w1 = `
apiVersion: goal/v1
goal:
  name: W1
  timer: {value: 10, unit: s}
  blocks:
    - {type: task, text: A}
`
	w2 = `
apiVersion: goal/v1
goal:
  name: W2
  blocks:
    - {type: if, condition: "Hunger?", then: [{type: task, text: Essen}]}
`
	empty = "apiVersion: goal/v1\ngoal: {name: Leer}\n"
)

func newScheduler(t *testing.T) (*Scheduler, *clock.Fake, *recorder) {
	t.Helper()
	fc := clock.NewFake(epoch)
	rec := &recorder{}
	return New(WithClock(fc), WithObserver(rec), WithID("sched")), fc, rec
}

func TestScheduler_ChainsWorkflows(t *testing.T) {
	s, _, rec := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ref(t, w1)))
	require.NoError(t, s.Enqueue(ref(t, w2)))
	assert.Equal(t, StateIdle, s.State())
	require.Len(t, s.Queue(), 2)

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, StateRunning, s.State())
	assert.Len(t, s.Queue(), 1)
	first := s.Active()
	require.NotNil(t, first)

	require.NoError(t, s.Dispatch(ctx, engine.Ok()))
	second := s.Active()
	require.NotNil(t, second)
	assert.NotSame(t, first, second, "a fresh session runs the next workflow")
	assert.Zero(t, first.ArmedTimers(), "the previous session is fully disposed")
	assert.Equal(t, []string{"A", "W1 beendet"}, s.LogTexts())

	v, ok := s.Display()
	require.True(t, ok)
	assert.Equal(t, "Hunger?", v.Current.Text)

	require.NoError(t, s.Dispatch(ctx, engine.Yes()))
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))

	assert.Equal(t, StateFinished, s.State())
	assert.Nil(t, s.Active())
	assert.Equal(t, []string{"A", "W1 beendet", "Ja: Hunger?", "Essen", "W2 beendet"}, s.LogTexts())
	assert.Equal(t, []runtime.EventType{
		runtime.EventScheduleStarted,
		runtime.EventWorkflowStarted, runtime.EventWorkflowFinished,
		runtime.EventWorkflowStarted, runtime.EventWorkflowFinished,
		runtime.EventScheduleFinished,
	}, rec.lifecycle())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after finish")
	}
	assert.ErrorIs(t, s.Dispatch(ctx, engine.Ok()), ErrNotRunning)
	assert.ErrorIs(t, s.Enqueue(ref(t, w1)), ErrNotRunning)

	for _, ev := range rec.events {
		assert.Equal(t, "sched", ev.ScheduleID)
	}
}

func TestScheduler_EmptyQueueFinishesImmediately(t *testing.T) {
	s, _, rec := newScheduler(t)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateFinished, s.State())
	assert.Equal(t, []runtime.EventType{runtime.EventScheduleStarted, runtime.EventScheduleFinished}, rec.types())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestScheduler_EmptyWorkflowsChainThrough(t *testing.T) {
	s, _, _ := newScheduler(t)
	require.NoError(t, s.Enqueue(ref(t, empty)))
	require.NoError(t, s.Enqueue(ref(t, empty)))
	require.NoError(t, s.Enqueue(ref(t, w1)))
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, []string{"Leer beendet", "Leer beendet"}, s.LogTexts())
	v, ok := s.Display()
	require.True(t, ok)
	assert.Equal(t, "W1", v.Workflow)
}

func TestScheduler_DuplicatesRunTwice(t *testing.T) {
	s, _, _ := newScheduler(t)
	r := ref(t, w1)
	require.NoError(t, s.Enqueue(r))
	require.NoError(t, s.Enqueue(r))
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))
	assert.Equal(t, []string{"A", "W1 beendet", "A", "W1 beendet"}, s.LogTexts())
}

func TestScheduler_AbortDiscardsQueue(t *testing.T) {
	s, fc, rec := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ref(t, w1)))
	require.NoError(t, s.Enqueue(ref(t, w2)))
	require.NoError(t, s.Start(ctx))

	sess := s.Active()
	fc.Advance(5 * time.Second)
	require.NoError(t, s.Abort(ctx))
	fc.Advance(time.Minute)

	assert.Equal(t, StateAborted, s.State())
	assert.Empty(t, s.Queue())
	assert.True(t, sess.Aborted())
	assert.Zero(t, fc.Pending(), "abort cancels every timer")
	assert.Equal(t, []runtime.EventType{
		runtime.EventScheduleStarted,
		runtime.EventWorkflowStarted,
		runtime.EventWorkflowAborted,
		runtime.EventScheduleAborted,
	}, rec.lifecycle())
	for _, typ := range rec.types() {
		assert.NotEqual(t, runtime.EventReminderFired, typ)
	}

	assert.ErrorIs(t, s.Dispatch(ctx, engine.Ok()), ErrNotRunning)
	assert.ErrorIs(t, s.Abort(ctx), ErrNotRunning)
	assert.Empty(t, s.LogTexts(), "no boundary marker for an aborted workflow")
}

func TestScheduler_MarkerUsesRefName(t *testing.T) {
	s, _, _ := newScheduler(t)
	ctx := context.Background()
	named := ref(t, w1)
	named.Name = "Morgen"
	require.NoError(t, s.Enqueue(named))
	require.NoError(t, s.Enqueue(ref(t, w2)))
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Dispatch(ctx, engine.Ok()))
	assert.Equal(t, []string{"A", "Morgen beendet"}, s.LogTexts())

	require.NoError(t, s.Dispatch(ctx, engine.No()))
	assert.Equal(t, []string{"A", "Morgen beendet", "Nein: Hunger?", "W2 beendet"}, s.LogTexts())
}

func TestScheduler_AbortBeforeLaunch(t *testing.T) {
	s, _, rec := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ref(t, w1)))

	// Abort lands after the session is promoted but before it starts.
	s.mu.Lock()
	s.state = StateRunning
	sess := s.promote(ctx)
	s.mu.Unlock()
	require.NoError(t, s.Abort(ctx))

	assert.NoError(t, s.launch(ctx, sess))
	assert.Equal(t, StateAborted, s.State())
	assert.NotContains(t, rec.types(), runtime.EventWorkflowStarted)
	assert.Zero(t, sess.ArmedTimers())
}

func TestScheduler_InvalidInstructionKeepsRunning(t *testing.T) {
	s, _, _ := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ref(t, w2)))
	require.NoError(t, s.Start(ctx))

	err := s.Dispatch(ctx, engine.Ok())
	assert.ErrorIs(t, err, engine.ErrInvalidInstruction)
	assert.Equal(t, StateRunning, s.State())
}

func TestScheduler_ReminderAcrossWorkflows(t *testing.T) {
	s, fc, rec := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ref(t, w1)))
	require.NoError(t, s.Enqueue(ref(t, w2)))
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Pause(ctx))
	require.NoError(t, s.Resume(ctx))
	require.NoError(t, s.Acknowledge(ctx))
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))

	// W2 has no timer; W1's reminder must not leak into it.
	fc.Advance(time.Hour)
	for _, typ := range rec.types() {
		assert.NotEqual(t, runtime.EventReminderFired, typ)
	}
}

func TestScheduler_BeforeStart(t *testing.T) {
	s, _, _ := newScheduler(t)
	assert.ErrorIs(t, s.Dispatch(context.Background(), engine.Ok()), ErrNotRunning)
	_, ok := s.Display()
	assert.False(t, ok)
}
