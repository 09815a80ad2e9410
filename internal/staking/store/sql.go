package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"concord/internal/platform/database"
	"concord/internal/staking"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
	txcontext "concord/pkg/platform/tx"
)

// SQLStore persists positions in stake_positions and ticket balances in
// access_tickets.
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

func (s *SQLStore) GetPosition(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*staking.Position, error) {
	query := `
		SELECT wallet, domain, staked, cumulative, influence, lock_until, updated_at
		FROM stake_positions
		WHERE wallet = $1 AND domain = $2
	`
	row := s.execer(ctx).QueryRowContext(ctx, s.q(query), string(wallet), string(domain))
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stake position: %w", err)
	}
	return p, nil
}

func (s *SQLStore) SavePosition(ctx context.Context, p *staking.Position) error {
	query := `
		INSERT INTO stake_positions (wallet, domain, staked, cumulative, influence, lock_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (wallet, domain) DO UPDATE SET
			staked = EXCLUDED.staked,
			cumulative = EXCLUDED.cumulative,
			influence = EXCLUDED.influence,
			lock_until = EXCLUDED.lock_until,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, s.q(query),
		string(p.Wallet), string(p.Domain), p.Staked, p.Cumulative, p.Influence,
		p.LockUntil.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save stake position: %w", err)
	}
	return nil
}

func (s *SQLStore) ListPositions(ctx context.Context, domain id.DomainID) ([]*staking.Position, error) {
	query := `
		SELECT wallet, domain, staked, cumulative, influence, lock_until, updated_at
		FROM stake_positions
	`
	var args []any
	if domain != "" {
		query += ` WHERE domain = $1`
		args = append(args, string(domain))
	}
	query += ` ORDER BY domain, wallet`

	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list stake positions: %w", err)
	}
	defer rows.Close()

	var out []*staking.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stake position: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stake positions: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetTicket(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*staking.Ticket, error) {
	query := `
		SELECT wallet, domain, issued, remaining, unlock_at
		FROM access_tickets
		WHERE wallet = $1 AND domain = $2
	`
	var (
		t        staking.Ticket
		w, d     string
		unlockAt time.Time
	)
	err := s.execer(ctx).QueryRowContext(ctx, s.q(query), string(wallet), string(domain)).
		Scan(&w, &d, &t.Issued, &t.Remaining, &unlockAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get access ticket: %w", err)
	}
	t.Wallet = id.WalletID(w)
	t.Domain = id.DomainID(d)
	t.UnlockAt = unlockAt.UTC()
	return &t, nil
}

func (s *SQLStore) SaveTicket(ctx context.Context, t *staking.Ticket) error {
	query := `
		INSERT INTO access_tickets (wallet, domain, issued, remaining, unlock_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wallet, domain) DO UPDATE SET
			issued = EXCLUDED.issued,
			remaining = EXCLUDED.remaining,
			unlock_at = EXCLUDED.unlock_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, s.q(query),
		string(t.Wallet), string(t.Domain), t.Issued, t.Remaining, t.UnlockAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save access ticket: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (*staking.Position, error) {
	var (
		p         staking.Position
		w, d      string
		lockUntil time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&w, &d, &p.Staked, &p.Cumulative, &p.Influence, &lockUntil, &updatedAt); err != nil {
		return nil, err
	}
	p.Wallet = id.WalletID(w)
	p.Domain = id.DomainID(d)
	p.LockUntil = lockUntil.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return &p, nil
}
