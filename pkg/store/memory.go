package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ormasoftchile/goalrun/pkg/runtime"
)

// MemoryEventStore is a goroutine-safe EventStore backed by a slice.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []runtime.Event
}

var _ EventStore = (*MemoryEventStore)(nil)

// NewMemoryEventStore creates an empty store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (s *MemoryEventStore) AppendEvent(_ context.Context, ev runtime.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryEventStore) ListEvents(_ context.Context, id string) ([]runtime.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []runtime.Event
	for _, ev := range s.events {
		if ev.SessionID == id || (ev.SessionID == "" && ev.ScheduleID == id) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryEventStore) ListSessions(_ context.Context) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := map[string]int{}
	var out []SessionSummary
	for _, ev := range s.events {
		if ev.SessionID == "" {
			continue
		}
		i, ok := index[ev.SessionID]
		if !ok {
			i = len(out)
			index[ev.SessionID] = i
			out = append(out, SessionSummary{
				SessionID:  ev.SessionID,
				ScheduleID: ev.ScheduleID,
				Workflow:   ev.Workflow,
				StartedAt:  ev.At,
				Status:     StatusRunning,
			})
		}
		sum := &out[i]
		sum.Events++
		if ev.At.After(sum.LastAt) {
			sum.LastAt = ev.At
		}
		if st, ok := statusOf(ev.Type); ok {
			sum.Status = st
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartedAt.Before(out[b].StartedAt) })
	return out, nil
}
