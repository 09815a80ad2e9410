// Package eventlog is the append-only record of every state transition. It
// is the only channel other components (and external consumers) use to
// observe the engine.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"concord/internal/eventlog/metrics"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/requestcontext"
)

// Store persists events. Append assigns Seq; List returns events ordered by
// Seq ascending.
type Store interface {
	Append(ctx context.Context, e *Event) error
	List(ctx context.Context, f Filter) ([]Event, error)
	Last(ctx context.Context) (*Event, error)
	Count(ctx context.Context) (int64, error)
}

// Publisher fans events out to external consumers. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

// Service serializes appends so sequence order and timestamp order agree and
// readers only ever observe a growing prefix.
type Service struct {
	mu        sync.Mutex
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	lastTimestamp time.Time
	loadedLast    bool

	subMu       sync.RWMutex
	subscribers map[int]chan Event
	nextSubID   int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the event log service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		subscribers: make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements audit.Recorder.
func (s *Service) Record(ctx context.Context, entry audit.Entry) error {
	_, err := s.Append(ctx, Event{
		Domain:  entry.Domain,
		Type:    entry.Type,
		Message: entry.Message,
		Data:    entry.Data,
	})
	return err
}

// Append stores e and returns it with Seq and Timestamp filled in. A
// timestamp earlier than the last appended one is clamped forward so the
// log stays in timestamp order.
func (s *Service) Append(ctx context.Context, e Event) (Event, error) {
	if e.Type == "" {
		return Event{}, dErrors.New(dErrors.CodeValidation, "event type is required")
	}
	if e.Domain == "" {
		return Event{}, dErrors.New(dErrors.CodeValidation, "event domain is required")
	}

	s.mu.Lock()
	if !s.loadedLast {
		last, err := s.store.Last(ctx)
		if err != nil {
			s.mu.Unlock()
			return Event{}, fmt.Errorf("load last event: %w", err)
		}
		if last != nil {
			s.lastTimestamp = last.Timestamp
		}
		s.loadedLast = true
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = requestcontext.Now(ctx)
	}
	ts = ts.UTC()
	if ts.Before(s.lastTimestamp) {
		ts = s.lastTimestamp
	}
	e.Timestamp = ts

	if err := s.store.Append(ctx, &e); err != nil {
		s.mu.Unlock()
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	s.lastTimestamp = ts

	// Fan-out stays under the lock so subscribers see Seq order.
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
	s.broadcast(e)
	s.mu.Unlock()

	s.metrics.IncrementAppended(string(e.Domain), string(e.Type))
	return e, nil
}

// List returns events matching f in append order.
func (s *Service) List(ctx context.Context, f Filter) ([]Event, error) {
	if f.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must not be negative")
	}
	events, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	return events, nil
}

// Count returns the total number of events.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count events")
	}
	return n, nil
}

// Subscribe returns a channel receiving every event appended after the call
// and a cancel func that closes it. Slow subscribers lose events rather than
// block writers; they can catch up with List using the last seen Seq.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	subID := s.nextSubID
	s.nextSubID++
	s.subscribers[subID] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, subID)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Service) broadcast(e Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			s.metrics.IncrementSubscriberDrops()
		}
	}
}
