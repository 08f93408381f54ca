package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/goalrun/pkg/kernel/clock"
	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/runtime"
	"github.com/ormasoftchile/goalrun/pkg/scheduler"
)

var epoch = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

func newSQLite(t *testing.T) *SQLiteEventStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]EventStore {
	return map[string]EventStore{
		"memory": NewMemoryEventStore(),
		"sqlite": newSQLite(t),
	}
}

func workflow(t *testing.T, name string) *model.Workflow {
	t.Helper()
	wf, err := model.Load(strings.NewReader(`
apiVersion: goal/v1
goal:
  name: `+name+`
  blocks:
    - {id: a, type: task, text: Zähne putzen, image: brush.png}
`), model.Options{})
	require.NoError(t, err)
	return wf
}

// record runs two scheduled workflows: the first finishes, the second is
// aborted.
func record(t *testing.T, st EventStore) *scheduler.Scheduler {
	t.Helper()
	fc := clock.NewFake(epoch)
	s := scheduler.New(scheduler.WithClock(fc), scheduler.WithObserver(NewObserver(st, nil)), scheduler.WithID("sched-1"))
	require.NoError(t, s.Enqueue(scheduler.Ref{Workflow: workflow(t, "Abend")}))
	require.NoError(t, s.Enqueue(scheduler.Ref{Workflow: workflow(t, "Nacht")}))

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	fc.Advance(time.Second)
	require.NoError(t, s.Dispatch(ctx, engine.Ok()))
	fc.Advance(time.Second)
	require.NoError(t, s.Abort(ctx))
	return s
}

func TestEventStore_RecordsSessions(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record(t, st)

			sessions, err := st.ListSessions(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 2)

			first, second := sessions[0], sessions[1]
			assert.Equal(t, "Abend", first.Workflow)
			assert.Equal(t, "sched-1", first.ScheduleID)
			assert.Equal(t, StatusFinished, first.Status)
			assert.True(t, first.StartedAt.Equal(epoch))
			assert.True(t, first.LastAt.Equal(epoch.Add(time.Second)))
			assert.Equal(t, "Nacht", second.Workflow)
			assert.Equal(t, StatusAborted, second.Status)

			evs, err := st.ListEvents(ctx, first.SessionID)
			require.NoError(t, err)
			types := make([]runtime.EventType, len(evs))
			for i, ev := range evs {
				types[i] = ev.Type
			}
			assert.Equal(t, []runtime.EventType{
				runtime.EventWorkflowStarted,
				runtime.EventBlockEntered,
				runtime.EventBlockCompleted,
				runtime.EventTaskCompleted,
				runtime.EventWorkflowFinished,
			}, types)
			assert.Equal(t, "brush.png", evs[1].Image)
			assert.Equal(t, "task", evs[1].Kind)
			assert.Equal(t, "Zähne putzen", evs[2].Entry)
			assert.Equal(t, first.Events, len(evs))
		})
	}
}

func TestEventStore_ScheduleEvents(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			record(t, st)
			evs, err := st.ListEvents(context.Background(), "sched-1")
			require.NoError(t, err)
			require.Len(t, evs, 2)
			assert.Equal(t, runtime.EventScheduleStarted, evs[0].Type)
			assert.Equal(t, runtime.EventScheduleAborted, evs[1].Type)
		})
	}
}

func TestEvents_NotFound(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := Events(context.Background(), st, "nope")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestSQLiteEventStore_PersistsAcrossOpen(t *testing.T) {
	path := t.TempDir() + "/history.db"
	st, err := OpenSQLite(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.AppendEvent(ctx, runtime.Event{Type: runtime.EventWorkflowStarted, SessionID: "s1", Workflow: "W", At: epoch}))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(path)
	require.NoError(t, err)
	defer st.Close()
	evs, err := Events(ctx, st, "s1")
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].At.Equal(epoch))
}

type failingStore struct{ NoopEventStore }

func (failingStore) AppendEvent(context.Context, runtime.Event) error {
	return errors.New("disk full")
}

func TestObserver_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	obs := NewObserver(failingStore{}, slog.New(slog.NewTextHandler(&buf, nil)))
	obs.OnEvent(context.Background(), runtime.Event{Type: runtime.EventBlockEntered, SessionID: "s1"})
	assert.Contains(t, buf.String(), "history append failed")
	assert.Contains(t, buf.String(), "disk full")
}
