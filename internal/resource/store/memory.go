package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"concord/internal/resource"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

type stockKey struct {
	domain       id.DomainID
	resourceType string
}

type reservation struct {
	key stockKey
	qty float64
	at  time.Time
}

// InMemoryStore keeps stock in a map guarded by one mutex, which makes
// compare-and-reserve trivially atomic.
type InMemoryStore struct {
	mu           sync.Mutex
	stock        map[stockKey]float64
	reservations []reservation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{stock: make(map[stockKey]float64)}
}

func (s *InMemoryStore) Seed(_ context.Context, domain id.DomainID, resourceType string, qty float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stockKey{domain, resourceType}
	if _, ok := s.stock[k]; !ok {
		s.stock[k] = qty
	}
	return nil
}

func (s *InMemoryStore) Deposit(_ context.Context, domain id.DomainID, resourceType string, qty float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stockKey{domain, resourceType}
	s.stock[k] += qty
	return s.stock[k], nil
}

func (s *InMemoryStore) Reserve(_ context.Context, domain id.DomainID, resourceType string, qty float64, at time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stockKey{domain, resourceType}
	available, ok := s.stock[k]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if available < qty {
		return available, sentinel.ErrInsufficient
	}
	s.stock[k] = available - qty
	s.reservations = append(s.reservations, reservation{key: k, qty: qty, at: at})
	return s.stock[k], nil
}

func (s *InMemoryStore) Available(_ context.Context, domain id.DomainID, resourceType string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.stock[stockKey{domain, resourceType}]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) ReservedSince(_ context.Context, domain id.DomainID, resourceType string, since time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stockKey{domain, resourceType}
	var total float64
	for _, r := range s.reservations {
		if r.key == k && !r.at.Before(since) {
			total += r.qty
		}
	}
	return total, nil
}

func (s *InMemoryStore) ListByDomain(_ context.Context, domain id.DomainID) ([]resource.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]resource.Stock, 0)
	for k, v := range s.stock {
		if k.domain == domain {
			out = append(out, resource.Stock{Domain: domain, ResourceType: k.resourceType, Available: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceType < out[j].ResourceType })
	return out, nil
}
