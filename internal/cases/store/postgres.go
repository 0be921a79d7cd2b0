package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"casereview/internal/cases/models"
	"casereview/internal/platform/database"
	id "casereview/pkg/domain"
	"casereview/pkg/platform/sentinel"
	txcontext "casereview/pkg/platform/tx"
)

// PostgresStore keeps the full case document in a JSONB payload and mirrors the
// columns that queries filter on.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Case) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO cases (id, kind, title, company, status, priority, submitted_by,
			submitted_at, due_date, last_updated_at, version, classification, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID.String(),
		string(c.Kind),
		c.Title,
		c.Company,
		string(c.Status),
		string(c.Priority),
		c.SubmittedBy,
		c.SubmittedAt,
		nullableTime(c.DueDate),
		c.LastUpdatedAt,
		c.Version,
		string(c.Classification()),
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", database.Translate(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	var payload []byte
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT payload FROM cases WHERE id = $1`, caseID.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find case: %w", database.Translate(err))
	}
	return decodeCase(payload)
}

// Update writes c only if the row is still at expectedVersion.
func (s *PostgresStore) Update(ctx context.Context, c *models.Case, expectedVersion int64) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE cases
		SET status = $2, priority = $3, due_date = $4, last_updated_at = $5,
			version = $6, classification = $7, payload = $8
		WHERE id = $1 AND version = $9`,
		c.ID.String(),
		string(c.Status),
		string(c.Priority),
		nullableTime(c.DueDate),
		c.LastUpdatedAt,
		c.Version,
		string(c.Classification()),
		payload,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", database.Translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1)`, c.ID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("check case exists: %w", database.Translate(err))
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("case %s moved past version %d: %w", c.ID, expectedVersion, sentinel.ErrConflict)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Case, error) {
	return s.query(ctx, `SELECT payload FROM cases ORDER BY submitted_at, id`)
}

func (s *PostgresStore) ListOverdue(ctx context.Context, now time.Time) ([]*models.Case, error) {
	return s.query(ctx, `
		SELECT payload FROM cases
		WHERE due_date IS NOT NULL AND due_date < $1
			AND status NOT IN ('Approved', 'Rejected', 'Resolved', 'Archived', 'Expired')
		ORDER BY submitted_at, id`, now)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Case, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", database.Translate(err))
	}
	defer rows.Close()

	var out []*models.Case
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		c, err := decodeCase(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", database.Translate(err))
	}
	return out, nil
}

func decodeCase(payload []byte) (*models.Case, error) {
	var c models.Case
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode case payload: %w", err)
	}
	if c.Comments == nil {
		c.Comments = []models.Comment{}
	}
	return &c, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
