package resource_test

import (
	"context"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"concord/internal/registry"
	"concord/internal/resource"
	"concord/internal/resource/store"
	id "concord/pkg/domain"
)

// For any stock level and any set of concurrent requests, the granted total
// never exceeds the stock and granted + remaining equals the starting stock.
func TestReservationNeverOverAllocates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent reservations respect stock", prop.ForAll(
		func(stock int, requests []int) bool {
			ctx := context.Background()
			svc := resource.New(store.NewInMemoryStore(), registry.Default())
			if _, err := svc.Deposit(ctx, id.Food, "produce", float64(stock)); err != nil {
				return false
			}

			var (
				mu      sync.Mutex
				granted int
				wg      sync.WaitGroup
			)
			for _, r := range requests {
				wg.Add(1)
				go func(qty int) {
					defer wg.Done()
					if svc.Reserve(ctx, id.Food, "produce", float64(qty)) == nil {
						mu.Lock()
						granted += qty
						mu.Unlock()
					}
				}(r)
			}
			wg.Wait()

			left, err := svc.Available(ctx, id.Food, "produce")
			if err != nil {
				return false
			}
			return granted <= stock && float64(granted)+left == float64(stock)
		},
		gen.IntRange(1, 5000),
		gen.SliceOf(gen.IntRange(1, 800)),
	))

	properties.TestingRun(t)
}
