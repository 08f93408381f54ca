package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/goalrun/pkg/kernel/clock"
	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
	"github.com/ormasoftchile/goalrun/pkg/kernel/trace"
)

var (
	// ErrClosed is returned for instructions sent to a finished, aborted or
	// closed session.
	ErrClosed = engine.ErrClosed
	// ErrNotStarted is returned for instructions sent before Start.
	ErrNotStarted = engine.ErrNotStarted
	// ErrStarted is returned by a second Start.
	ErrStarted = engine.ErrStarted
)

// Session executes one workflow against a clock. All cursor access happens
// under the session mutex; timer callbacks take the same mutex, so the
// cursor sees exactly one mutator at a time.
type Session struct {
	mu sync.Mutex

	id         string
	scheduleID string
	wf         *model.Workflow
	cursor     *engine.Cursor
	clock      clock.Clock
	obs        Observer
	logger     *slog.Logger

	// timers maps engine tokens to armed clock timers.
	timers map[uint64]clock.Timer

	closed   bool
	aborted  bool
	finished bool
	// notify is set when the workflow finished during the current call;
	// onFinished runs after the mutex is released.
	notify     bool
	onFinished func(context.Context, *Session)
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for timers and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithObserver sets the lifecycle event observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.obs = o }
}

// WithLogger sets the logger for timer bookkeeping messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCursorConfig overrides the engine configuration.
func WithCursorConfig(cfg engine.Config) Option {
	return func(s *Session) { s.cursor = engine.NewCursor(s.wf, cfg) }
}

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithScheduleID tags every event with the owning schedule.
func WithScheduleID(id string) Option {
	return func(s *Session) { s.scheduleID = id }
}

// WithOnFinished registers a hook called once when the workflow reaches
// its end. The hook runs after the session mutex is released, on the
// goroutine that drove the final step.
func WithOnFinished(fn func(context.Context, *Session)) Option {
	return func(s *Session) { s.onFinished = fn }
}

// NewSession creates a session for wf. Nothing happens until Start.
func NewSession(wf *model.Workflow, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		wf:     wf,
		cursor: engine.NewCursor(wf, engine.DefaultConfig()),
		clock:  clock.Real(),
		obs:    NoopObserver{},
		logger: slog.Default(),
		timers: map[uint64]clock.Timer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.obs == nil {
		s.obs = NoopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Workflow returns the workflow being executed.
func (s *Session) Workflow() *model.Workflow { return s.wf }

// run executes fn under the mutex and fires the finish hook afterwards.
func (s *Session) run(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	err := fn()
	notify := s.notify
	s.notify = false
	s.mu.Unlock()

	if notify && s.onFinished != nil {
		s.onFinished(ctx, s)
	}
	return err
}

// Start emits workflow.started and enters the first block.
func (s *Session) Start(ctx context.Context) error {
	return s.run(ctx, func() error {
		if s.closed {
			return ErrClosed
		}
		if s.cursor.Phase() != engine.PhaseIdle {
			return ErrStarted
		}
		s.emit(ctx, Event{Type: EventWorkflowStarted})
		effects, err := s.cursor.Start(s.clock.Now())
		if err != nil {
			return err
		}
		s.apply(ctx, effects)
		return nil
	})
}

// Dispatch applies a user instruction. Instructions the current block
// does not accept fail with engine.ErrInvalidInstruction and change nothing.
func (s *Session) Dispatch(ctx context.Context, in engine.Instruction) error {
	return s.run(ctx, func() error {
		if s.closed {
			return fmt.Errorf("%s: %w", in, ErrClosed)
		}
		return s.step(ctx, in)
	})
}

// Acknowledge dismisses a reminder and restarts it from its full interval.
func (s *Session) Acknowledge(ctx context.Context) error {
	return s.stepOpen(ctx, engine.ReminderAcknowledged{})
}

// Pause suspends reminders, e.g. while the execution view is in the
// background.
func (s *Session) Pause(ctx context.Context) error {
	return s.stepOpen(ctx, engine.Pause{})
}

// Resume re-arms reminders after Pause.
func (s *Session) Resume(ctx context.Context) error {
	return s.stepOpen(ctx, engine.Resume{})
}

func (s *Session) stepOpen(ctx context.Context, ev engine.Event) error {
	return s.run(ctx, func() error {
		if s.closed {
			return ErrClosed
		}
		return s.step(ctx, ev)
	})
}

// Abort tears the session down and emits workflow.aborted. Aborting a
// session that is already closed does nothing.
func (s *Session) Abort(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.teardown()
	s.aborted = true
	s.emit(ctx, Event{Type: EventWorkflowAborted})
}

// Close tears the session down without emitting an event.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
}

// Finished reports whether the workflow ran to its end.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Aborted reports whether Abort ended the session.
func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Log returns a copy of the execution log.
func (s *Session) Log() []trace.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Log()
}

// ArmedTimers returns how many clock timers the session currently holds.
func (s *Session) ArmedTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Display returns a consistent snapshot for rendering.
func (s *Session) Display() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cursor
	v := View{
		SessionID: s.id,
		Workflow:  s.wf.Name,
		Phase:     c.Phase(),
		Title:     c.Title(),
		Prev:      c.Prev(),
		Current:   c.Current(),
		Next:      c.Next(),
		Pending:   c.Pending(),
		Remaining: c.Remaining(s.clock.Now()),
		Paused:    c.Paused(),
		Finished:  s.finished,
		Closed:    s.closed,
		Log:       c.LogTexts(),
	}
	if _, iv, ok := c.ActiveReminder(); ok {
		v.Reminder = iv
	}
	return v
}

// step feeds ev to the cursor and applies the effects. Called with s.mu held.
func (s *Session) step(ctx context.Context, ev engine.Event) error {
	effects, err := s.cursor.Step(s.clock.Now(), ev)
	if err != nil {
		return err
	}
	s.apply(ctx, effects)
	return nil
}

// fire is the clock callback for an armed token.
func (s *Session) fire(token uint64, ev engine.Event) {
	ctx := context.Background()
	_ = s.run(ctx, func() error {
		delete(s.timers, token)
		if s.closed {
			s.logger.Debug("timer fired after teardown", slog.String("session_id", s.id), slog.Uint64("token", token))
			return nil
		}
		if err := s.step(ctx, ev); err != nil {
			s.logger.Error("timer step failed", slog.String("session_id", s.id), slog.Any("error", err))
		}
		return nil
	})
}

// apply carries out timer commands and publishes notifications. Called
// with s.mu held.
func (s *Session) apply(ctx context.Context, effects []engine.Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case engine.ArmReminder:
			s.arm(e.Token, e.Interval, engine.TimerFired{Token: e.Token})
		case engine.ArmCountdown:
			s.arm(e.Token, e.Duration, engine.CountdownExpired{Token: e.Token})
		case engine.CancelReminder:
			s.cancel(e.Token)
		case engine.CancelCountdown:
			s.cancel(e.Token)
		case engine.BlockEntered:
			s.emit(ctx, Event{Type: EventBlockEntered, BlockID: e.BlockID, Kind: string(e.Kind), Text: e.Text, Image: e.Image})
		case engine.BlockCompleted:
			s.emit(ctx, Event{Type: EventBlockCompleted, BlockID: e.BlockID, Kind: string(e.Kind), Entry: e.Entry})
		case engine.ReminderFired:
			s.emit(ctx, Event{Type: EventReminderFired, BlockID: e.BlockID, Text: e.Text})
		case engine.TaskCompleted:
			s.emit(ctx, Event{Type: EventTaskCompleted, BlockID: e.BlockID})
		case engine.ParallelBlockCompleted:
			s.emit(ctx, Event{Type: EventParallelCompleted, BlockID: e.BlockID})
		case engine.WorkflowFinished:
			s.teardown()
			s.finished = true
			s.notify = true
			s.emit(ctx, Event{Type: EventWorkflowFinished})
		default:
			s.logger.Warn("unhandled effect", slog.String("type", fmt.Sprintf("%T", eff)))
		}
	}
}

// arm schedules ev for delivery after d. Called with s.mu held.
func (s *Session) arm(token uint64, d time.Duration, ev engine.Event) {
	s.timers[token] = s.clock.AfterFunc(d, func() { s.fire(token, ev) })
	s.logger.Debug("timer armed",
		slog.String("session_id", s.id),
		slog.Uint64("token", token),
		slog.Duration("after", d),
	)
}

// teardown cancels every timer and closes the cursor. Called with s.mu held.
func (s *Session) teardown() {
	if s.closed {
		return
	}
	for _, eff := range s.cursor.Teardown() {
		switch e := eff.(type) {
		case engine.CancelReminder:
			s.cancel(e.Token)
		case engine.CancelCountdown:
			s.cancel(e.Token)
		}
	}
	for token := range s.timers {
		s.cancel(token)
	}
	s.closed = true
}

func (s *Session) cancel(token uint64) {
	if t, ok := s.timers[token]; ok {
		t.Stop()
		delete(s.timers, token)
	}
}

func (s *Session) emit(ctx context.Context, ev Event) {
	ev.ScheduleID = s.scheduleID
	ev.SessionID = s.id
	ev.Workflow = s.wf.Name
	ev.At = s.clock.Now()
	s.obs.OnEvent(ctx, ev)
}

// IsInvalid reports whether err is an instruction the current block does
// not accept.
func IsInvalid(err error) bool {
	return errors.Is(err, engine.ErrInvalidInstruction)
}
