// Package store keeps the run history: every lifecycle event of every
// session, queryable per session afterwards.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ormasoftchile/goalrun/pkg/runtime"
)

// ErrSessionNotFound is returned when a session has no recorded events.
var ErrSessionNotFound = errors.New("session not found")

// Status is the outcome of a recorded session.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
)

// SessionSummary is one row of the run history.
type SessionSummary struct {
	SessionID  string
	ScheduleID string
	Workflow   string
	StartedAt  time.Time
	LastAt     time.Time
	Events     int
	Status     Status
}

// EventStore is an append-only history of lifecycle events.
//
// Schedule events carry no session id; ListEvents returns them for the
// schedule id instead.
type EventStore interface {
	AppendEvent(ctx context.Context, ev runtime.Event) error
	ListEvents(ctx context.Context, id string) ([]runtime.Event, error)
	ListSessions(ctx context.Context) ([]SessionSummary, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(context.Context, runtime.Event) error { return nil }
func (NoopEventStore) ListEvents(context.Context, string) ([]runtime.Event, error) {
	return nil, nil
}
func (NoopEventStore) ListSessions(context.Context) ([]SessionSummary, error) { return nil, nil }

func statusOf(t runtime.EventType) (Status, bool) {
	switch t {
	case runtime.EventWorkflowFinished:
		return StatusFinished, true
	case runtime.EventWorkflowAborted:
		return StatusAborted, true
	}
	return "", false
}

// Events returns the recorded events of id, or ErrSessionNotFound when
// nothing was recorded for it.
func Events(ctx context.Context, s EventStore, id string) ([]runtime.Event, error) {
	evs, err := s.ListEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, ErrSessionNotFound
	}
	return evs, nil
}
