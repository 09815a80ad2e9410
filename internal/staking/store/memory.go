package store

import (
	"context"
	"sort"
	"sync"

	"concord/internal/staking"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

type key struct {
	wallet id.WalletID
	domain id.DomainID
}

// InMemoryStore keeps positions and tickets in maps.
type InMemoryStore struct {
	mu        sync.RWMutex
	positions map[key]staking.Position
	tickets   map[key]staking.Ticket
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		positions: make(map[key]staking.Position),
		tickets:   make(map[key]staking.Ticket),
	}
}

func (s *InMemoryStore) GetPosition(_ context.Context, wallet id.WalletID, domain id.DomainID) (*staking.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[key{wallet, domain}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) SavePosition(_ context.Context, p *staking.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[key{p.Wallet, p.Domain}] = *p
	return nil
}

func (s *InMemoryStore) ListPositions(_ context.Context, domain id.DomainID) ([]*staking.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*staking.Position, 0)
	for k, p := range s.positions {
		if domain != "" && k.domain != domain {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].Wallet < out[j].Wallet
	})
	return out, nil
}

func (s *InMemoryStore) GetTicket(_ context.Context, wallet id.WalletID, domain id.DomainID) (*staking.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[key{wallet, domain}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemoryStore) SaveTicket(_ context.Context, t *staking.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[key{t.Wallet, t.Domain}] = *t
	return nil
}
