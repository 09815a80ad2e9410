//go:build integration

// Package containers starts throwaway backing services for integration
// tests.
package containers

import (
	"context"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImage = "redis:7-alpine"

// Redis is a running Redis container with a connected client.
type Redis struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

var (
	sharedRedis    *Redis
	sharedRedisErr error
	redisOnce      sync.Once
)

// StartRedis returns the package-wide Redis container, starting it on first
// use. The keyspace is flushed before the test runs and again when it ends.
// Ryuk reaps the container after the test binary exits.
func StartRedis(t *testing.T) *Redis {
	t.Helper()
	redisOnce.Do(func() {
		sharedRedis, sharedRedisErr = startRedis(context.Background())
	})
	if sharedRedisErr != nil {
		t.Fatalf("start redis container: %v", sharedRedisErr)
	}
	ctx := context.Background()
	if err := sharedRedis.Flush(ctx); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	t.Cleanup(func() {
		_ = sharedRedis.Flush(context.Background())
	})
	return sharedRedis
}

func startRedis(ctx context.Context) (*Redis, error) {
	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		return nil, err
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &Redis{Container: container, URL: url, Client: client}, nil
}

// Flush drops every key in the current database.
func (r *Redis) Flush(ctx context.Context) error {
	return r.Client.FlushDB(ctx).Err()
}
