package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Observer receives lifecycle events from sessions and schedulers.
//
// Events are delivered synchronously while the emitter holds its lock, so
// implementations must be fast and must not call back into the session or
// scheduler that emitted them. Sessions run timer callbacks on their own
// goroutines, so an observer shared by several emitters must be safe for
// concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnEvent(context.Context, Event) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnEvent(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnEvent(ctx, ev)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs lifecycle events using
// the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, ev Event) {
	level := slog.LevelDebug
	switch ev.Type {
	case EventWorkflowStarted, EventWorkflowFinished, EventScheduleStarted, EventScheduleFinished, EventReminderFired:
		level = slog.LevelInfo
	case EventWorkflowAborted, EventScheduleAborted:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{slog.String("event", string(ev.Type))}
	if ev.ScheduleID != "" {
		attrs = append(attrs, slog.String("schedule_id", ev.ScheduleID))
	}
	if ev.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", ev.SessionID))
	}
	if ev.Workflow != "" {
		attrs = append(attrs, slog.String("workflow", ev.Workflow))
	}
	if ev.BlockID != "" {
		attrs = append(attrs, slog.String("block_id", ev.BlockID))
	}
	switch {
	case ev.Entry != "":
		attrs = append(attrs, slog.String("entry", ev.Entry))
	case ev.Text != "":
		attrs = append(attrs, slog.String("text", ev.Text))
	}
	o.Logger.LogAttrs(ctx, level, "lifecycle", attrs...)
}

// Metrics counts lifecycle events. Point values are left to the consumer;
// the counters only say how often each award hook fired.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type Metrics struct {
	workflowsStarted  atomic.Int64
	workflowsFinished atomic.Int64
	workflowsAborted  atomic.Int64
	blocksCompleted   atomic.Int64
	tasksCompleted    atomic.Int64
	parallelCompleted atomic.Int64
	remindersFired    atomic.Int64
}

// MetricsSnapshot is an immutable snapshot of Metrics.
type MetricsSnapshot struct {
	WorkflowsStarted  int64
	WorkflowsFinished int64
	WorkflowsAborted  int64
	ActiveWorkflows   int64

	BlocksCompleted   int64
	TasksCompleted    int64
	ParallelCompleted int64
	RemindersFired    int64
}

func (m *Metrics) OnEvent(_ context.Context, ev Event) {
	switch ev.Type {
	case EventWorkflowStarted:
		m.workflowsStarted.Add(1)
	case EventWorkflowFinished:
		m.workflowsFinished.Add(1)
	case EventWorkflowAborted:
		m.workflowsAborted.Add(1)
	case EventBlockCompleted:
		m.blocksCompleted.Add(1)
	case EventTaskCompleted:
		m.tasksCompleted.Add(1)
	case EventParallelCompleted:
		m.parallelCompleted.Add(1)
	case EventReminderFired:
		m.remindersFired.Add(1)
	}
}

// Snapshot returns a snapshot of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	started := m.workflowsStarted.Load()
	finished := m.workflowsFinished.Load()
	aborted := m.workflowsAborted.Load()
	return MetricsSnapshot{
		WorkflowsStarted:  started,
		WorkflowsFinished: finished,
		WorkflowsAborted:  aborted,
		ActiveWorkflows:   started - finished - aborted,
		BlocksCompleted:   m.blocksCompleted.Load(),
		TasksCompleted:    m.tasksCompleted.Load(),
		ParallelCompleted: m.parallelCompleted.Load(),
		RemindersFired:    m.remindersFired.Load(),
	}
}
