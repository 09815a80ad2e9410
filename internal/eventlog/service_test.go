package eventlog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"concord/internal/eventlog"
	"concord/internal/eventlog/store"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	service *eventlog.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.service = eventlog.New(s.store)
}

func (s *ServiceSuite) TestAppend() {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	s.Run("fills sequence and request time", func() {
		e, err := s.service.Append(ctx, eventlog.Event{Domain: id.Energy, Type: audit.EventFaucetOpened, Message: "opened"})
		s.Require().NoError(err)
		s.Equal(int64(1), e.Seq)
		s.True(e.Timestamp.Equal(now))
	})

	s.Run("clamps timestamps that go backwards", func() {
		earlier := requestcontext.WithTime(context.Background(), now.Add(-time.Hour))
		e, err := s.service.Append(earlier, eventlog.Event{Domain: id.Food, Type: audit.EventStaked})
		s.Require().NoError(err)
		s.True(e.Timestamp.Equal(now), "timestamp order must follow append order")
	})

	s.Run("rejects incomplete events", func() {
		_, err := s.service.Append(ctx, eventlog.Event{Domain: id.Food})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Append(ctx, eventlog.Event{Type: audit.EventStaked})
		s.Require().Error(err)
	})
}

func (s *ServiceSuite) TestRecordImplementsRecorder() {
	var rec audit.Recorder = s.service
	err := rec.Record(context.Background(), audit.Entry{
		Domain:  id.System,
		Type:    audit.EventGuardrailEscalation,
		Message: "gini above ceiling",
		Data:    map[string]any{"gini": 0.5},
	})
	s.Require().NoError(err)

	events, err := s.service.List(context.Background(), eventlog.Filter{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(id.System, events[0].Domain)
	s.Equal(0.5, events[0].Data["gini"])

	n, err := s.service.Count(context.Background())
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *ServiceSuite) TestResumesTimestampFloorFromStore() {
	ctx := context.Background()
	later := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Append(ctx, &eventlog.Event{Timestamp: later, Domain: id.Food, Type: audit.EventStaked}))

	svc := eventlog.New(s.store)
	e, err := svc.Append(requestcontext.WithTime(ctx, later.Add(-time.Minute)), eventlog.Event{Domain: id.Food, Type: audit.EventUnstaked})
	s.Require().NoError(err)
	s.Equal(int64(2), e.Seq)
	s.True(e.Timestamp.Equal(later))
}

func (s *ServiceSuite) TestList_NegativeLimit() {
	_, err := s.service.List(context.Background(), eventlog.Filter{Limit: -1})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

type capturePublisher struct {
	mu     sync.Mutex
	events []eventlog.Event
}

func (p *capturePublisher) Publish(e eventlog.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func TestService_PublishesAndBroadcasts(t *testing.T) {
	pub := &capturePublisher{}
	svc := eventlog.New(store.NewInMemoryStore(), eventlog.WithPublisher(pub))

	ch, cancel := svc.Subscribe(8)
	defer cancel()

	_, err := svc.Append(context.Background(), eventlog.Event{Domain: id.Health, Type: audit.EventTicketIssued})
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, audit.EventTicketIssued, e.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
	assert.Len(t, pub.events, 1)

	cancel()
	_, open := <-ch
	assert.False(t, open, "cancel closes the channel")
	cancel()
}

func TestService_SlowSubscriberDoesNotBlock(t *testing.T) {
	svc := eventlog.New(store.NewInMemoryStore())
	_, cancel := svc.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_, _ = svc.Append(context.Background(), eventlog.Event{Domain: id.Food, Type: audit.EventStaked})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("append blocked on a full subscriber")
	}
}

// Concurrent writers must leave a gap-free, timestamp-ordered log.
func TestService_ConcurrentWritersConsistentPrefix(t *testing.T) {
	svc := eventlog.New(store.NewInMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := svc.Append(ctx, eventlog.Event{Domain: id.Energy, Type: audit.EventFaucetDrawn})
				assert.NoError(t, err)
			}
		}()
	}

	// A reader running alongside never sees a gap.
	stop := make(chan struct{})
	readerDone := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				readerDone <- nil
				return
			default:
			}
			events, err := svc.List(ctx, eventlog.Filter{})
			if err != nil {
				readerDone <- err
				return
			}
			for i, e := range events {
				if e.Seq != int64(i+1) {
					readerDone <- errors.New("gap in observed prefix")
					return
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	require.NoError(t, <-readerDone)

	events, err := svc.List(ctx, eventlog.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 200)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
	}
}
