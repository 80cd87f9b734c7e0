package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundingkeeper/internal/persistence"
)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Repo{db: sqlx.NewDb(db, "postgres"), timeout: time.Second}, mock
}

func TestInsert_BindsEventFieldsAndConsumesReturnedRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	ev := persistence.Event{
		Timestamp: now, Normalized: "BTC-USD", Venue: "hyperliquid", Side: "LONG",
		Kind: persistence.EventOrderFilled, OrderID: "o1", Size: 10, Price: 100,
	}

	mock.ExpectQuery(`INSERT INTO audit_events`).
		WithArgs(ev.Timestamp, ev.Normalized, ev.Venue, ev.Side, ev.Kind, ev.OrderID, ev.Size, ev.Price, ev.Reason).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	err := repo.Insert(context.Background(), ev)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBySymbol_MapsRowsToEvents(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "ts", "normalized", "venue", "side", "kind", "order_id", "size", "price", "reason", "created_at"}).
		AddRow(int64(1), now, "BTC-USD", "hyperliquid", "LONG", "order_filled", "o1", 10.0, 100.0, "", now)

	mock.ExpectQuery(`SELECT (.+) FROM audit_events WHERE normalized`).
		WithArgs("BTC-USD", now.Add(-time.Hour), now, 50).
		WillReturnRows(rows)

	events, err := repo.ListBySymbol(context.Background(), "BTC-USD", persistence.TimeRange{From: now.Add(-time.Hour), To: now}, 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, persistence.EventOrderFilled, events[0].Kind)
	assert.Equal(t, "o1", events[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatest_MapsRowsToEvents(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "ts", "normalized", "venue", "side", "kind", "order_id", "size", "price", "reason", "created_at"}).
		AddRow(int64(2), now, "ETH-USD", "lighter", "SHORT", "hedged_close", "o2", 5.0, 50.0, "", now)

	mock.ExpectQuery(`SELECT (.+) FROM audit_events\s+ORDER BY ts DESC`).
		WithArgs(10).
		WillReturnRows(rows)

	events, err := repo.GetLatest(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, persistence.EventHedgedClose, events[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBySymbol_PropagatesQueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM audit_events WHERE normalized`).
		WillReturnError(assertErr{})

	_, err := repo.ListBySymbol(context.Background(), "BTC-USD", persistence.TimeRange{}, 10)
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
