package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/eventlog"
	id "concord/pkg/domain"
	"concord/pkg/platform/audit"
)

func TestInMemoryStore_AppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := &eventlog.Event{Timestamp: base.Add(time.Duration(i) * time.Minute), Domain: id.Energy, Type: audit.EventStaked}
		require.NoError(t, s.Append(ctx, e))
		assert.Equal(t, int64(i+1), e.Seq)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last.Seq)
}

func TestInMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	domains := []id.DomainID{id.Energy, id.Food, id.Energy, id.System}
	for i, d := range domains {
		require.NoError(t, s.Append(ctx, &eventlog.Event{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Domain:    d,
			Type:      audit.EventProposalCreated,
		}))
	}

	all, err := s.List(ctx, eventlog.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	after, err := s.List(ctx, eventlog.Filter{AfterSeq: 2})
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, int64(3), after[0].Seq)

	since, err := s.List(ctx, eventlog.Filter{Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	energy, err := s.List(ctx, eventlog.Filter{Domain: id.Energy, Limit: 1})
	require.NoError(t, err)
	require.Len(t, energy, 1)
	assert.Equal(t, int64(1), energy[0].Seq)

	beyond, err := s.List(ctx, eventlog.Filter{AfterSeq: 99})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	data := map[string]any{"k": "v"}
	require.NoError(t, s.Append(ctx, &eventlog.Event{Domain: id.Food, Type: audit.EventStaked, Data: data}))
	data["k"] = "mutated"

	got, err := s.List(ctx, eventlog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "v", got[0].Data["k"])
	got[0].Data["k"] = "again"

	again, _ := s.List(ctx, eventlog.Filter{})
	assert.Equal(t, "v", again[0].Data["k"])
}

func TestInMemoryStore_ConcurrentAppendsKeepDenseSequence(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, &eventlog.Event{Domain: id.Health, Type: audit.EventStaked})
		}()
	}
	wg.Wait()

	events, err := s.List(ctx, eventlog.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 50)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}
