// Package publisher forwards appended contract events to an external broker.
//
// Publish never blocks the event log: events are queued in a ring buffer and
// a background worker ships them in batches. A circuit breaker stops retrying
// a broker that keeps failing.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"concord/internal/eventlog"
	"concord/internal/eventlog/metrics"
	"concord/pkg/platform/circuit"
)

// Sink delivers a batch of events to a broker.
type Sink interface {
	Send(ctx context.Context, events []eventlog.Event) error
}

// Forwarder implements eventlog.Publisher.
type Forwarder struct {
	sink      Sink
	buffer    *RingBuffer
	breaker   *circuit.Breaker
	logger    *slog.Logger
	metrics   *metrics.Metrics
	batchSize int
	interval  time.Duration
	wake      chan struct{}
}

type Option func(*Forwarder)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(f *Forwarder) {
		f.breaker = b
	}
}

func WithBatchSize(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.interval = d
		}
	}
}

func WithBufferCapacity(n int) Option {
	return func(f *Forwarder) {
		f.buffer = NewRingBuffer(n)
	}
}

// NewForwarder builds a forwarder around sink.
func NewForwarder(sink Sink, opts ...Option) *Forwarder {
	f := &Forwarder{
		sink:      sink,
		buffer:    NewRingBuffer(10000),
		breaker:   circuit.New("event-fanout", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		logger:    slog.Default(),
		batchSize: 100,
		interval:  time.Second,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish queues e for delivery.
func (f *Forwarder) Publish(e eventlog.Event) {
	if f.buffer.Enqueue(e) {
		f.metrics.IncrementPublished("dropped")
	}
	if f.buffer.Len() >= f.batchSize {
		select {
		case f.wake <- struct{}{}:
		default:
		}
	}
}

// Run ships queued events until ctx is cancelled, then makes a final
// best-effort flush with a short deadline.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			f.Flush(ctx)
		case <-f.wake:
			f.Flush(ctx)
		}
	}
}

// Flush sends everything currently queued, batch by batch.
func (f *Forwarder) Flush(ctx context.Context) {
	for f.buffer.Len() > 0 {
		if !f.breaker.Allow() {
			f.metrics.IncrementPublished("circuit_open")
			return
		}
		batch := f.buffer.DrainUpTo(f.batchSize)
		if err := f.sink.Send(ctx, batch); err != nil {
			_, change := f.breaker.RecordFailure()
			for range batch {
				f.metrics.IncrementPublished("error")
			}
			f.logger.WarnContext(ctx, "event fan-out failed",
				"batch_size", len(batch),
				"first_seq", batch[0].Seq,
				"error", err,
			)
			if change.Opened {
				f.logger.ErrorContext(ctx, "event fan-out circuit opened", "breaker", f.breaker.Name())
			}
			return
		}
		if _, change := f.breaker.RecordSuccess(); change.Closed {
			f.logger.InfoContext(ctx, "event fan-out circuit closed", "breaker", f.breaker.Name())
		}
		for range batch {
			f.metrics.IncrementPublished("ok")
		}
	}
}
