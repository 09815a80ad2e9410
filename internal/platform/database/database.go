// Package database opens the SQL backend shared by the event log, staking
// and resource stores. Postgres is the production target; SQLite serves
// single-node deployments and local runs.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"concord/internal/platform/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open returns nil when no URL is configured (all stores stay in memory).
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)
	if cfg.Driver == DriverSQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

var dollarParam = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites postgres-style $n placeholders into SQLite's ?n form so
// stores can keep a single query text per statement.
func Rebind(driver, query string) string {
	if driver != DriverSQLite {
		return query
	}
	return dollarParam.ReplaceAllString(query, "?$1")
}

// Migrate creates the tables used by the SQL stores if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts := postgresSchema
	if driver == DriverSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS contract_events (
		seq BIGSERIAL PRIMARY KEY,
		occurred_at TIMESTAMPTZ NOT NULL,
		domain TEXT NOT NULL,
		event_type TEXT NOT NULL,
		message TEXT NOT NULL,
		data JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS contract_events_occurred_at_idx ON contract_events (occurred_at)`,
	`CREATE TABLE IF NOT EXISTS stake_positions (
		wallet TEXT NOT NULL,
		domain TEXT NOT NULL,
		staked DOUBLE PRECISION NOT NULL,
		cumulative DOUBLE PRECISION NOT NULL,
		influence DOUBLE PRECISION NOT NULL,
		lock_until TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (wallet, domain)
	)`,
	`CREATE TABLE IF NOT EXISTS access_tickets (
		wallet TEXT NOT NULL,
		domain TEXT NOT NULL,
		issued DOUBLE PRECISION NOT NULL,
		remaining DOUBLE PRECISION NOT NULL,
		unlock_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (wallet, domain)
	)`,
	`CREATE TABLE IF NOT EXISTS resource_stock (
		domain TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		available DOUBLE PRECISION NOT NULL CHECK (available >= 0),
		PRIMARY KEY (domain, resource_type)
	)`,
	`CREATE TABLE IF NOT EXISTS resource_reservations (
		id BIGSERIAL PRIMARY KEY,
		domain TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		reserved_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS contract_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		occurred_at TIMESTAMP NOT NULL,
		domain TEXT NOT NULL,
		event_type TEXT NOT NULL,
		message TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS contract_events_occurred_at_idx ON contract_events (occurred_at)`,
	`CREATE TABLE IF NOT EXISTS stake_positions (
		wallet TEXT NOT NULL,
		domain TEXT NOT NULL,
		staked REAL NOT NULL,
		cumulative REAL NOT NULL,
		influence REAL NOT NULL,
		lock_until TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (wallet, domain)
	)`,
	`CREATE TABLE IF NOT EXISTS access_tickets (
		wallet TEXT NOT NULL,
		domain TEXT NOT NULL,
		issued REAL NOT NULL,
		remaining REAL NOT NULL,
		unlock_at TIMESTAMP NOT NULL,
		PRIMARY KEY (wallet, domain)
	)`,
	`CREATE TABLE IF NOT EXISTS resource_stock (
		domain TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		available REAL NOT NULL CHECK (available >= 0),
		PRIMARY KEY (domain, resource_type)
	)`,
	`CREATE TABLE IF NOT EXISTS resource_reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		quantity REAL NOT NULL,
		reserved_at TIMESTAMP NOT NULL
	)`,
}
