//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"casereview/internal/platform/config"
	"casereview/internal/platform/database"
)

// appTables lists every table the migrations create, children first.
var appTables = []string{"outbox", "audit_facts", "cases"}

// Postgres is a migrated database reachable through DB.
type Postgres struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

func startPostgres(ctx context.Context) (*Postgres, error) {
	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("casereview_test"),
		postgres.WithUsername("casereview"),
		postgres.WithPassword("casereview_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("connection string: %w", err)
	}

	pool, err := database.Open(ctx, config.DatabaseConfig{URL: dsn, MaxOpenConns: 10, ConnectRetries: 3})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := database.Migrate(ctx, pool.DB()); err != nil {
		_ = pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Postgres{Container: container, DSN: dsn, DB: pool.DB()}, nil
}

// TruncateAll empties every application table in one statement.
func (p *Postgres) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx, appTables...)
}

// TruncateTables empties the named tables and resets their sequences.
func (p *Postgres) TruncateTables(ctx context.Context, tables ...string) error {
	stmt := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate %v: %w", tables, err)
	}
	return nil
}
