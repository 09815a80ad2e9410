package store

import (
	"context"
	"sort"
	"sync"

	"concord/internal/faucet"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

// InMemoryStore keeps faucets in a map. Values are copied in and out so
// callers never share pointers with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	faucets map[id.FaucetID]*faucet.Faucet
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{faucets: make(map[id.FaucetID]*faucet.Faucet)}
}

func (s *InMemoryStore) Create(_ context.Context, f *faucet.Faucet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.faucets[f.ID]; ok {
		return sentinel.ErrConflict
	}
	c := *f
	s.faucets[f.ID] = &c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, faucetID id.FaucetID) (*faucet.Faucet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.faucets[faucetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *f
	return &c, nil
}

func (s *InMemoryStore) Update(_ context.Context, f *faucet.Faucet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.faucets[f.ID]; !ok {
		return sentinel.ErrNotFound
	}
	c := *f
	s.faucets[f.ID] = &c
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*faucet.Faucet, error) {
	return s.collect(func(*faucet.Faucet) bool { return true }), nil
}

func (s *InMemoryStore) ListOpen(_ context.Context) ([]*faucet.Faucet, error) {
	return s.collect(func(f *faucet.Faucet) bool { return f.Status != faucet.StatusClosed }), nil
}

func (s *InMemoryStore) collect(keep func(*faucet.Faucet) bool) []*faucet.Faucet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*faucet.Faucet, 0, len(s.faucets))
	for _, f := range s.faucets {
		if keep(f) {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}
