// Package database opens the Postgres pool behind the case and audit stores
// and applies the embedded schema migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"casereview/internal/platform/config"
)

const (
	pingTimeout  = 5 * time.Second
	retryBackoff = 500 * time.Millisecond
)

// Pool is the shared *sql.DB plus its health and metrics hooks.
type Pool struct {
	db *sql.DB
}

// Open connects through the pgx stdlib driver. The first ping is retried
// ConnectRetries times with a doubling backoff, since Postgres often comes up
// after the service in local stacks.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL not configured")
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := pingWithRetry(ctx, db, cfg.ConnectRetries); err != nil {
		db.Close() //nolint:errcheck // the ping error is the one worth reporting
		return nil, err
	}
	return &Pool{db: db}, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, retries int) error {
	backoff := retryBackoff
	for attempt := 0; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt >= retries {
			return fmt.Errorf("ping database after %d attempts: %w", attempt+1, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// RegisterMetrics exposes connection pool statistics on reg.
func (p *Pool) RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(collectors.NewDBStatsCollector(p.db, "casereview")); err != nil {
		return fmt.Errorf("register db stats collector: %w", err)
	}
	return nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

func (p *Pool) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	return p.db.Close()
}
