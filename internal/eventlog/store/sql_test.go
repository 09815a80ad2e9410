package store

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/eventlog"
	"concord/internal/platform/config"
	"concord/internal/platform/database"
	id "concord/pkg/domain"
	"concord/pkg/platform/audit"
)

func TestSQLStore_AppendPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQL(db, database.DriverPostgres)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO contract_events (occurred_at, domain, event_type, message, data)`)).
		WithArgs(ts, "energy", "faucet_opened", "opened", `{"rate":10}`).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(42)))

	e := &eventlog.Event{Timestamp: ts, Domain: id.Energy, Type: audit.EventFaucetOpened, Message: "opened", Data: map[string]any{"rate": 10}}
	require.NoError(t, s.Append(context.Background(), e))
	assert.Equal(t, int64(42), e.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ListBuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQL(db, database.DriverPostgres)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ts := since.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE seq > $1 AND occurred_at >= $2 AND domain = $3 ORDER BY seq ASC LIMIT $4`)).
		WithArgs(int64(5), since, "food", 10).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "occurred_at", "domain", "event_type", "message", "data"}).
			AddRow(int64(6), ts, "food", "staked", "staked 10", []byte(`{"amount":10}`)))

	events, err := s.List(context.Background(), eventlog.Filter{AfterSeq: 5, Since: since, Domain: id.Food, Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(6), events[0].Seq)
	assert.Equal(t, audit.EventStaked, events[0].Type)
	assert.Equal(t, float64(10), events[0].Data["amount"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: database.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "events.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	s := NewSQL(db, database.DriverSQLite)
	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, d := range []id.DomainID{id.Energy, id.Ecology, id.Energy} {
		e := &eventlog.Event{Timestamp: base.Add(time.Duration(i) * time.Minute), Domain: d, Type: audit.EventProposalCreated, Message: "created"}
		require.NoError(t, s.Append(ctx, e))
		assert.Equal(t, int64(i+1), e.Seq)
	}

	energy, err := s.List(ctx, eventlog.Filter{Domain: id.Energy})
	require.NoError(t, err)
	require.Len(t, energy, 2)
	assert.True(t, energy[1].Timestamp.Equal(base.Add(2*time.Minute)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	last, err = s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last.Seq)
}
