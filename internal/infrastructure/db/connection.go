// Package db manages the optional Postgres connection backing the audit
// log, disabled by default (spec.md §6 "Persisted State").
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/fundingkeeper/internal/persistence"
	"github.com/sawpanic/fundingkeeper/internal/persistence/postgres"
)

// Config holds database connection settings.
type Config struct {
	DSN          string
	QueryTimeout time.Duration
	Enabled      bool
}

func DefaultConfig() Config {
	return Config{QueryTimeout: 5 * time.Second, Enabled: false}
}

// Manager owns the optional audit Repo and its health check. When disabled
// it hands out persistence.NoopRepo so callers never need a nil check.
type Manager struct {
	db     *sqlx.DB
	config Config
	repo   persistence.Repo
}

func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config, repo: persistence.NoopRepo{}}, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("postgres dsn required when enabled")
	}

	repo, err := postgres.Connect(config.DSN, config.QueryTimeout)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("ping audit postgres: %w", err)
	}

	return &Manager{config: config, repo: repo}, nil
}

// Repo returns the audit log repository (NoopRepo when disabled).
func (m *Manager) Repo() persistence.Repo { return m.repo }

func (m *Manager) IsEnabled() bool { return m.config.Enabled }

func (m *Manager) Close() error {
	if closer, ok := m.repo.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
