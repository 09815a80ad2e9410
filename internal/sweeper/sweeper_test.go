package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/pkg/testutil"
)

func TestRun_ContinuesAfterFailures(t *testing.T) {
	var failing, healthy atomic.Int32
	s := New([]Job{
		{Name: "failing", Interval: 5 * time.Millisecond, Run: func(context.Context) (int, error) {
			failing.Add(1)
			return 0, errors.New("store unavailable")
		}},
		{Name: "healthy", Interval: 5 * time.Millisecond, Run: func(context.Context) (int, error) {
			healthy.Add(1)
			return 1, nil
		}},
		{Name: "disabled", Interval: 0, Run: func(context.Context) (int, error) {
			t.Error("disabled job must not run")
			return 0, nil
		}},
	}, WithLogger(testutil.DiscardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return failing.Load() >= 2 && healthy.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestRunOnce(t *testing.T) {
	calls := 0
	s := New(nil, WithLogger(testutil.DiscardLogger()))
	s.RunOnce(context.Background(), Job{Name: "expire", Run: func(context.Context) (int, error) {
		calls++
		return 3, nil
	}})
	assert.Equal(t, 1, calls)
}
