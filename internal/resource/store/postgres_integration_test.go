//go:build integration

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/platform/database"
	id "concord/pkg/domain"
	"concord/pkg/testutil/containers"
)

func TestSQLStore_PostgresConcurrentReserve(t *testing.T) {
	pg := containers.StartPostgres(t)
	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, pg.DB, database.DriverPostgres))
	t.Cleanup(func() {
		_, _ = pg.DB.ExecContext(context.Background(), `TRUNCATE resource_stock, resource_reservations`)
	})

	s := NewSQL(pg.DB, database.DriverPostgres)
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Seed(ctx, id.Resources, "water", 1000))

	var (
		wg  sync.WaitGroup
		won atomic.Int64
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Reserve(ctx, id.Resources, "water", 100, at); err == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), won.Load())
	left, err := s.Available(ctx, id.Resources, "water")
	require.NoError(t, err)
	assert.Zero(t, left)

	demand, err := s.ReservedSince(ctx, id.Resources, "water", at)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, demand)
}
