package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/eventlog"
	id "concord/pkg/domain"
	"concord/pkg/platform/audit"
	"concord/pkg/platform/circuit"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]eventlog.Event
	err     error
}

func (s *fakeSink) Send(_ context.Context, events []eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, events)
	return nil
}

func (s *fakeSink) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func event(seq int64) eventlog.Event {
	return eventlog.Event{Seq: seq, Domain: id.Energy, Type: audit.EventFaucetDrawn}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRingBuffer(t *testing.T) {
	b := NewRingBuffer(3)
	for i := int64(1); i <= 3; i++ {
		assert.False(t, b.Enqueue(event(i)))
	}
	assert.True(t, b.Enqueue(event(4)), "full buffer drops oldest")
	assert.Equal(t, int64(1), b.Dropped())

	got := b.DrainUpTo(2)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)

	rest := b.DrainUpTo(10)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(4), rest[0].Seq)
	assert.Equal(t, 0, b.Len())
}

func TestForwarder_FlushBatches(t *testing.T) {
	sink := &fakeSink{}
	f := NewForwarder(sink, WithBatchSize(2), WithLogger(quietLogger()))
	for i := int64(1); i <= 5; i++ {
		f.Publish(event(i))
	}
	f.Flush(context.Background())

	assert.Equal(t, 5, sink.sent())
	assert.Len(t, sink.batches, 3)
	assert.Equal(t, int64(1), sink.batches[0][0].Seq)
}

func TestForwarder_BreakerStopsAfterFailures(t *testing.T) {
	sink := &fakeSink{err: errors.New("broker down")}
	breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	f := NewForwarder(sink, WithBatchSize(1), WithBreaker(breaker), WithLogger(quietLogger()))

	f.Publish(event(1))
	f.Publish(event(2))
	f.Flush(context.Background())
	assert.True(t, breaker.IsOpen())

	// Circuit open: the second event stays queued.
	f.Flush(context.Background())
	assert.Equal(t, 1, f.buffer.Len())
}

func TestForwarder_RunFlushesOnShutdown(t *testing.T) {
	sink := &fakeSink{}
	f := NewForwarder(sink, WithFlushInterval(time.Hour), WithLogger(quietLogger()))
	f.Publish(event(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}
	assert.Equal(t, 1, sink.sent())
}
