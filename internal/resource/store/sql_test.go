package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/platform/config"
	"concord/internal/platform/database"
	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

func TestSQLStore_ReserveIsConditionalUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewSQL(db, database.DriverPostgres)
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("reserved", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE domain = $1 AND resource_type = $2 AND available >= $3`)).
			WithArgs("energy", "electricity", 100.0).
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(400.0))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO resource_reservations`)).
			WithArgs("energy", "electricity", 100.0, at).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		left, err := s.Reserve(context.Background(), id.Energy, "electricity", 100, at)
		require.NoError(t, err)
		assert.Equal(t, 400.0, left)
	})

	t.Run("insufficient", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE resource_stock`)).
			WithArgs("energy", "electricity", 1e6).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.Reserve(context.Background(), id.Energy, "electricity", 1e6, at)
		assert.ErrorIs(t, err, sentinel.ErrInsufficient)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_AvailableNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewSQL(db, database.DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT available FROM resource_stock`)).
		WithArgs("food", "grain").
		WillReturnError(sql.ErrNoRows)

	_, err = s.Available(context.Background(), id.Food, "grain")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Driver: database.DriverSQLite, URL: filepath.Join(t.TempDir(), "stock.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	s := NewSQL(db, database.DriverSQLite)
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Seed(ctx, id.Energy, "electricity", 500))
	require.NoError(t, s.Seed(ctx, id.Energy, "electricity", 9999), "seed does not overwrite")

	v, err := s.Available(ctx, id.Energy, "electricity")
	require.NoError(t, err)
	assert.Equal(t, 500.0, v)

	left, err := s.Reserve(ctx, id.Energy, "electricity", 200, at)
	require.NoError(t, err)
	assert.Equal(t, 300.0, left)

	_, err = s.Reserve(ctx, id.Energy, "electricity", 2400, at)
	assert.ErrorIs(t, err, sentinel.ErrInsufficient)

	v, err = s.Deposit(ctx, id.Energy, "electricity", 50)
	require.NoError(t, err)
	assert.Equal(t, 350.0, v)

	demand, err := s.ReservedSince(ctx, id.Energy, "electricity", at.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 200.0, demand)

	rows, err := s.ListByDomain(ctx, id.Energy)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "electricity", rows[0].ResourceType)
}
