package publisher

import (
	"sync"

	"concord/internal/eventlog"
)

// RingBuffer is a bounded, thread-safe queue of events awaiting fan-out.
// When full, the oldest events are dropped; the log itself stays the source
// of truth so consumers can backfill with a seq cursor.
type RingBuffer struct {
	mu       sync.Mutex
	events   []eventlog.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int
	dropped  int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		events:   make([]eventlog.Event, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, dropping the oldest if necessary. It reports
// whether an event was dropped.
func (b *RingBuffer) Enqueue(e eventlog.Event) (dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}
	b.events[b.head] = e
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// DrainUpTo removes and returns at most n events in FIFO order.
func (b *RingBuffer) DrainUpTo(n int) []eventlog.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]eventlog.Event, n)
	for i := 0; i < n; i++ {
		out[i] = b.events[b.tail]
		b.events[b.tail] = eventlog.Event{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

// Len returns the number of queued events.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns how many events were evicted since creation.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
