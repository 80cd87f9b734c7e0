// Package postgres implements the optional audit log Repo over PostgreSQL
// (sqlx + lib/pq), grounded on the teacher's trades_repo.go access pattern.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/fundingkeeper/internal/persistence"
)

// Repo implements persistence.Repo against a Postgres "audit_events" table.
type Repo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Connect opens dsn and verifies connectivity. Callers should only invoke
// this when Postgres is explicitly enabled in configuration.
func Connect(dsn string, timeout time.Duration) (*Repo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Repo{db: db, timeout: timeout}, nil
}

func (r *Repo) Close() error { return r.db.Close() }

// Ping verifies connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

// Insert appends one audit event.
func (r *Repo) Insert(ctx context.Context, ev persistence.Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO audit_events (ts, normalized, venue, side, kind, order_id, size, price, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, query,
		ev.Timestamp, ev.Normalized, ev.Venue, ev.Side, ev.Kind, ev.OrderID, ev.Size, ev.Price, ev.Reason,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// ListBySymbol retrieves audit events for one normalized symbol within tr,
// most recent first.
func (r *Repo) ListBySymbol(ctx context.Context, normalized string, tr persistence.TimeRange, limit int) ([]persistence.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, ts, normalized, venue, side, kind, order_id, size, price, reason, created_at
		FROM audit_events
		WHERE normalized = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts DESC
		LIMIT $4`
	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, normalized, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("list audit events by symbol: %w", err)
	}
	return toEvents(rows), nil
}

// GetLatest returns the most recent audit events across all symbols.
func (r *Repo) GetLatest(ctx context.Context, limit int) ([]persistence.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, ts, normalized, venue, side, kind, order_id, size, price, reason, created_at
		FROM audit_events
		ORDER BY ts DESC
		LIMIT $1`
	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list latest audit events: %w", err)
	}
	return toEvents(rows), nil
}

type auditRow struct {
	ID         int64     `db:"id"`
	Timestamp  time.Time `db:"ts"`
	Normalized string    `db:"normalized"`
	Venue      string    `db:"venue"`
	Side       string    `db:"side"`
	Kind       string    `db:"kind"`
	OrderID    string    `db:"order_id"`
	Size       float64   `db:"size"`
	Price      float64   `db:"price"`
	Reason     string    `db:"reason"`
	CreatedAt  time.Time `db:"created_at"`
}

func toEvents(rows []auditRow) []persistence.Event {
	out := make([]persistence.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, persistence.Event{
			ID: r.ID, Timestamp: r.Timestamp, Normalized: r.Normalized, Venue: r.Venue,
			Side: r.Side, Kind: persistence.EventKind(r.Kind), OrderID: r.OrderID,
			Size: r.Size, Price: r.Price, Reason: r.Reason, CreatedAt: r.CreatedAt,
		})
	}
	return out
}
