package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"concord/internal/eventlog"
	"concord/internal/platform/database"
	id "concord/pkg/domain"
	"concord/pkg/platform/audit"
	txcontext "concord/pkg/platform/tx"
)

// SQLStore persists the log in the contract_events table. The table's
// serial key provides Seq.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQL creates a SQL-backed event store for the given driver name.
func NewSQL(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

type dbQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *SQLStore) q(query string) string {
	return database.Rebind(s.driver, query)
}

func (s *SQLStore) Append(ctx context.Context, e *eventlog.Event) error {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	query := `
		INSERT INTO contract_events (occurred_at, domain, event_type, message, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`
	err = s.querier(ctx).QueryRowContext(ctx, s.q(query),
		e.Timestamp, string(e.Domain), string(e.Type), e.Message, string(payload),
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, f eventlog.Filter) ([]eventlog.Event, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, fmt.Sprintf("seq > $%d", len(args)+1))
	args = append(args, f.AfterSeq)
	if !f.Since.IsZero() {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)+1))
		args = append(args, f.Since.UTC())
	}
	if f.Domain != "" {
		where = append(where, fmt.Sprintf("domain = $%d", len(args)+1))
		args = append(args, string(f.Domain))
	}

	query := `SELECT seq, occurred_at, domain, event_type, message, data FROM contract_events WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY seq ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, f.Limit)
	}

	rows, err := s.querier(ctx).QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]eventlog.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Last(ctx context.Context) (*eventlog.Event, error) {
	query := `SELECT seq, occurred_at, domain, event_type, message, data FROM contract_events ORDER BY seq DESC LIMIT 1`
	rows, err := s.querier(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load last event: %w", err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM contract_events`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (eventlog.Event, error) {
	var (
		e         eventlog.Event
		ts        time.Time
		domain    string
		eventType string
		payload   []byte
	)
	if err := row.Scan(&e.Seq, &ts, &domain, &eventType, &e.Message, &payload); err != nil {
		return eventlog.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Timestamp = ts.UTC()
	e.Domain = id.DomainID(domain)
	e.Type = audit.EventType(eventType)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Data); err != nil {
			return eventlog.Event{}, fmt.Errorf("decode event data: %w", err)
		}
		if len(e.Data) == 0 {
			e.Data = nil
		}
	}
	return e, nil
}
