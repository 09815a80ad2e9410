//go:build integration

package containers

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	_ "github.com/lib/pq"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const postgresImage = "postgres:16-alpine"

// Postgres is a running Postgres container with an open pool.
type Postgres struct {
	Container *tcpostgres.PostgresContainer
	URL       string
	DB        *sql.DB
}

var (
	sharedPostgres    *Postgres
	sharedPostgresErr error
	postgresOnce      sync.Once
)

// StartPostgres returns the package-wide Postgres container, starting it on
// first use. Callers own schema setup and per-test cleanup.
func StartPostgres(t *testing.T) *Postgres {
	t.Helper()
	postgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = startPostgres(context.Background())
	})
	if sharedPostgresErr != nil {
		t.Fatalf("start postgres container: %v", sharedPostgresErr)
	}
	return sharedPostgres
}

func startPostgres(ctx context.Context) (*Postgres, error) {
	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("concord"),
		tcpostgres.WithUsername("concord"),
		tcpostgres.WithPassword("concord"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &Postgres{Container: container, URL: url, DB: db}, nil
}
