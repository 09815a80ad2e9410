// Package entitylock serializes mutations per entity id.
//
// Locks are sharded: ids hash onto a fixed array of mutexes, so two ids can
// share a shard and contend, but the same id always maps to the same mutex.
// Callers must never hold two locks from the same Locker at once.
package entitylock

import (
	"context"
	"sync"
	"time"

	dErrors "concord/pkg/domain-errors"
)

const numShards = 128

// DefaultTimeout bounds a critical section when the caller set no deadline.
const DefaultTimeout = 5 * time.Second

// Locker provides per-entity mutual exclusion.
type Locker struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// New returns a Locker. A zero timeout means DefaultTimeout.
func New(timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locker{timeout: timeout}
}

// RunLocked runs fn while holding the lock for key. A context that is done
// before the call fails with CodeTimeout; one that expires while waiting
// for the lock fails with CodeConcurrentModification.
func (l *Locker) RunLocked(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	mu := &l.shards[hash(key)%numShards]
	mu.Lock()
	defer mu.Unlock()

	// The wait for the lock outlived the caller: another writer held the
	// entity for too long.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, "timed out waiting for a concurrent update")
	}
	return fn(ctx)
}

// hash is FNV-1a.
func hash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
