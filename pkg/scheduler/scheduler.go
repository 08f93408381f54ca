// Package scheduler runs queued workflows back to back as one logical
// session, keeping a cumulative execution log across them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ormasoftchile/goalrun/pkg/kernel/clock"
	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/trace"
	"github.com/ormasoftchile/goalrun/pkg/runtime"
)

var (
	// ErrNotRunning is returned for operations that need a running schedule.
	ErrNotRunning = errors.New("schedule not running")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("schedule already started")
)

// State is the lifecycle state of a schedule.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateAborted  State = "aborted"
)

// Ref is a queued workflow. Name is what the boundary marker shows; it
// defaults to the workflow name.
type Ref struct {
	Name     string
	Path     string
	Workflow *model.Workflow
}

func (r Ref) name() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Workflow.Name
}

// Scheduler owns at most one live session at a time.
//
// Lock order is scheduler before session. Sessions call back into the
// scheduler only through the finish hook, which runs after the session
// mutex is released.
type Scheduler struct {
	mu sync.Mutex

	id        string
	clock     clock.Clock
	obs       runtime.Observer
	logger    *slog.Logger
	cursorCfg engine.Config

	state  State
	queue  []Ref
	active *runtime.Session
	// activeRef is the queue entry the active session was built from.
	activeRef Ref
	// log holds the entries of every workflow that already left the stage,
	// with boundary markers.
	log  trace.Log
	done chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock handed to every session.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithObserver sets the observer for schedule and session events.
func WithObserver(o runtime.Observer) Option {
	return func(s *Scheduler) { s.obs = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithCursorConfig sets the engine configuration for every session.
func WithCursorConfig(cfg engine.Config) Option {
	return func(s *Scheduler) { s.cursorCfg = cfg }
}

// WithID sets the schedule id instead of generating one.
func WithID(id string) Option {
	return func(s *Scheduler) { s.id = id }
}

// New creates an idle scheduler with an empty queue.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		id:        uuid.NewString(),
		clock:     clock.Real(),
		obs:       runtime.NoopObserver{},
		logger:    slog.Default(),
		cursorCfg: engine.DefaultConfig(),
		state:     StateIdle,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.obs == nil {
		s.obs = runtime.NoopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ID returns the schedule id.
func (s *Scheduler) ID() string { return s.id }

// Enqueue appends ref to the queue. Duplicates are allowed. Workflows can
// be added while the schedule runs but not after it ended.
func (s *Scheduler) Enqueue(ref Ref) error {
	if ref.Workflow == nil {
		return errors.New("enqueue: nil workflow")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinished || s.state == StateAborted {
		return fmt.Errorf("enqueue %s: %w", ref.name(), ErrNotRunning)
	}
	s.queue = append(s.queue, ref)
	return nil
}

// Start begins the first queued workflow. With an empty queue the
// schedule finishes at once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	s.emit(ctx, runtime.EventScheduleStarted)
	s.logger.InfoContext(ctx, "schedule started",
		slog.String("schedule_id", s.id),
		slog.Int("workflows", len(s.queue)),
	)
	next := s.promote(ctx)
	s.mu.Unlock()

	return s.launch(ctx, next)
}

// promote pops the next queued workflow into a new session, or finishes
// the schedule when the queue is empty. Called with s.mu held; the caller
// starts the returned session after unlocking.
func (s *Scheduler) promote(ctx context.Context) *runtime.Session {
	if len(s.queue) == 0 {
		s.active = nil
		s.activeRef = Ref{}
		s.state = StateFinished
		s.emit(ctx, runtime.EventScheduleFinished)
		s.logger.InfoContext(ctx, "schedule finished", slog.String("schedule_id", s.id))
		close(s.done)
		return nil
	}
	ref := s.queue[0]
	s.queue = s.queue[1:]
	s.activeRef = ref
	s.active = runtime.NewSession(ref.Workflow,
		runtime.WithClock(s.clock),
		runtime.WithObserver(s.obs),
		runtime.WithLogger(s.logger),
		runtime.WithCursorConfig(s.cursorCfg),
		runtime.WithScheduleID(s.id),
		runtime.WithOnFinished(s.finished),
	)
	return s.active
}

func (s *Scheduler) launch(ctx context.Context, sess *runtime.Session) error {
	if sess == nil {
		return nil
	}
	if err := sess.Start(ctx); err != nil {
		// An Abort between promote and launch already tore the session down.
		if errors.Is(err, runtime.ErrClosed) && s.State() == StateAborted {
			return nil
		}
		return fmt.Errorf("start %s: %w", sess.Workflow().Name, err)
	}
	return nil
}

// finished is the session hook: retire the session, write the boundary
// marker and chain the next workflow.
func (s *Scheduler) finished(ctx context.Context, sess *runtime.Session) {
	s.mu.Lock()
	if s.active != sess || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	for _, e := range sess.Log() {
		s.log.Append(e)
	}
	s.log.Append(trace.Entry{Text: s.activeRef.name() + " beendet", At: s.clock.Now()})
	next := s.promote(ctx)
	s.mu.Unlock()

	if err := s.launch(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "chain next workflow", slog.Any("error", err))
	}
}

// Dispatch forwards an instruction to the active workflow.
func (s *Scheduler) Dispatch(ctx context.Context, in engine.Instruction) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	return sess.Dispatch(ctx, in)
}

// Acknowledge dismisses the active reminder.
func (s *Scheduler) Acknowledge(ctx context.Context) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	return sess.Acknowledge(ctx)
}

// Pause suspends reminders of the active workflow.
func (s *Scheduler) Pause(ctx context.Context) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	return sess.Pause(ctx)
}

// Resume re-arms reminders of the active workflow.
func (s *Scheduler) Resume(ctx context.Context) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	return sess.Resume(ctx)
}

func (s *Scheduler) current() (*runtime.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.active == nil {
		return nil, ErrNotRunning
	}
	return s.active, nil
}

// Abort tears down the active workflow and discards the rest of the
// queue without running it.
func (s *Scheduler) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning && s.state != StateIdle {
		return ErrNotRunning
	}

	if sess := s.active; sess != nil {
		for _, e := range sess.Log() {
			s.log.Append(e)
		}
		sess.Abort(ctx)
	}
	dropped := len(s.queue)
	s.active = nil
	s.activeRef = Ref{}
	s.queue = nil
	s.state = StateAborted
	s.emit(ctx, runtime.EventScheduleAborted)
	s.logger.WarnContext(ctx, "schedule aborted",
		slog.String("schedule_id", s.id),
		slog.Int("discarded", dropped),
	)
	close(s.done)
	return nil
}

// Log returns the cumulative execution log: every retired workflow with
// its boundary marker, followed by the live entries of the active one.
func (s *Scheduler) Log() []trace.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.log.Entries()
	if s.active != nil {
		out = append(out, s.active.Log()...)
	}
	return out
}

// LogTexts returns the cumulative log as plain strings.
func (s *Scheduler) LogTexts() []string {
	entries := s.Log()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

// Queue returns the workflows not started yet.
func (s *Scheduler) Queue() []Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Ref(nil), s.queue...)
}

// Active returns the live session, nil when none runs.
func (s *Scheduler) Active() *runtime.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Display returns the active session's view. ok is false when no
// workflow is running.
func (s *Scheduler) Display() (v runtime.View, ok bool) {
	sess, err := s.current()
	if err != nil {
		return runtime.View{}, false
	}
	return sess.Display(), true
}

// Done is closed when the schedule finishes or is aborted.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// emit publishes a schedule event. Called with s.mu held.
func (s *Scheduler) emit(ctx context.Context, t runtime.EventType) {
	s.obs.OnEvent(ctx, runtime.Event{Type: t, ScheduleID: s.id, At: s.clock.Now()})
}
