package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"concord/internal/platform/database"
	"concord/internal/resource"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
	txcontext "concord/pkg/platform/tx"
)

// SQLStore keeps stock in resource_stock and a demand trail in
// resource_reservations. Reserve is a single conditional UPDATE, so the
// database enforces compare-and-reserve.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQL(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *SQLStore) q(query string) string {
	return database.Rebind(s.driver, query)
}

func (s *SQLStore) Seed(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error {
	query := `
		INSERT INTO resource_stock (domain, resource_type, available)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain, resource_type) DO NOTHING
	`
	if _, err := s.execer(ctx).ExecContext(ctx, s.q(query), string(domain), resourceType, qty); err != nil {
		return fmt.Errorf("seed stock: %w", err)
	}
	return nil
}

func (s *SQLStore) Deposit(ctx context.Context, domain id.DomainID, resourceType string, qty float64) (float64, error) {
	query := `
		INSERT INTO resource_stock (domain, resource_type, available)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain, resource_type) DO UPDATE SET available = resource_stock.available + EXCLUDED.available
		RETURNING available
	`
	var available float64
	if err := s.execer(ctx).QueryRowContext(ctx, s.q(query), string(domain), resourceType, qty).Scan(&available); err != nil {
		return 0, fmt.Errorf("deposit stock: %w", err)
	}
	return available, nil
}

func (s *SQLStore) Reserve(ctx context.Context, domain id.DomainID, resourceType string, qty float64, at time.Time) (float64, error) {
	update := `
		UPDATE resource_stock
		SET available = available - $3
		WHERE domain = $1 AND resource_type = $2 AND available >= $3
		RETURNING available
	`
	insert := `
		INSERT INTO resource_reservations (domain, resource_type, quantity, reserved_at)
		VALUES ($1, $2, $3, $4)
	`
	var available float64
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.q(update), string(domain), resourceType, qty).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrInsufficient
		}
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(insert), string(domain), resourceType, qty, at.UTC()); err != nil {
			return fmt.Errorf("record reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return available, nil
}

func (s *SQLStore) Available(ctx context.Context, domain id.DomainID, resourceType string) (float64, error) {
	query := `SELECT available FROM resource_stock WHERE domain = $1 AND resource_type = $2`
	var available float64
	err := s.execer(ctx).QueryRowContext(ctx, s.q(query), string(domain), resourceType).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return available, nil
}

func (s *SQLStore) ReservedSince(ctx context.Context, domain id.DomainID, resourceType string, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0) FROM resource_reservations
		WHERE domain = $1 AND resource_type = $2 AND reserved_at >= $3
	`
	var total float64
	if err := s.execer(ctx).QueryRowContext(ctx, s.q(query), string(domain), resourceType, since.UTC()).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum reservations: %w", err)
	}
	return total, nil
}

func (s *SQLStore) ListByDomain(ctx context.Context, domain id.DomainID) ([]resource.Stock, error) {
	query := `SELECT resource_type, available FROM resource_stock WHERE domain = $1 ORDER BY resource_type`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), string(domain))
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]resource.Stock, 0)
	for rows.Next() {
		st := resource.Stock{Domain: domain}
		if err := rows.Scan(&st.ResourceType, &st.Available); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock: %w", err)
	}
	return out, nil
}
