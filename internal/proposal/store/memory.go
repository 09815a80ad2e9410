package store

import (
	"context"
	"sort"
	"sync"

	"concord/internal/proposal"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

// InMemoryStore keeps proposals in a map with optimistic versioning: Update
// only succeeds against the version the caller loaded.
type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[id.ProposalID]*proposal.Proposal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{proposals: make(map[id.ProposalID]*proposal.Proposal)}
}

func (s *InMemoryStore) Create(_ context.Context, p *proposal.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; ok {
		return sentinel.ErrConflict
	}
	p.Version = 1
	s.proposals[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, proposalID id.ProposalID) (*proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[proposalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// Update stores p if its version matches and bumps p.Version.
func (s *InMemoryStore) Update(_ context.Context, p *proposal.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.proposals[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != p.Version {
		return sentinel.ErrConflict
	}
	p.Version++
	s.proposals[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter proposal.Filter) ([]*proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*proposal.Proposal, 0)
	for _, p := range s.proposals {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
