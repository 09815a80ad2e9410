package store

import (
	"context"
	"sync"

	"concord/internal/eventlog"
)

// InMemoryStore keeps the log in a slice. Events are never mutated after
// append, so readers get copies of a consistent prefix.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []eventlog.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, e *eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Seq = int64(len(s.events)) + 1
	stored := *e
	stored.Data = copyData(e.Data)
	s.events = append(s.events, stored)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, f eventlog.Filter) ([]eventlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Seq equals index+1, so skip straight past the cursor.
	start := 0
	if f.AfterSeq > 0 {
		start = int(min(f.AfterSeq, int64(len(s.events))))
	}
	out := make([]eventlog.Event, 0)
	for _, e := range s.events[start:] {
		if !f.Matches(e) {
			continue
		}
		e.Data = copyData(e.Data)
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) Last(_ context.Context) (*eventlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return nil, nil
	}
	last := s.events[len(s.events)-1]
	return &last, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

func copyData(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
