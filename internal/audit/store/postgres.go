package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"casereview/internal/audit"
	"casereview/internal/platform/database"
	"casereview/pkg/platform/audit/outbox"
	txcontext "casereview/pkg/platform/tx"
)

const factColumns = `id, sequence, occurred_at, actor_id, actor_name, actor_role, action,
	entity_type, entity_id, entity_name, description, severity, outcome,
	before_state, after_state, detail, prev_hash, hash`

// PostgresStore persists facts in the audit_facts table. When an outbox store
// is attached, every fact is also queued for relay in the same transaction.
type PostgresStore struct {
	db     *sql.DB
	outbox outbox.Store
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithOutbox queues each appended fact for publication.
func WithOutbox(ob outbox.Store) PostgresOption {
	return func(s *PostgresStore) {
		s.outbox = ob
	}
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) Append(ctx context.Context, fact *audit.Fact) error {
	before, err := marshalNullable(fact.BeforeState)
	if err != nil {
		return err
	}
	after, err := marshalNullable(fact.AfterState)
	if err != nil {
		return err
	}
	detail, err := marshalNullable(fact.Detail)
	if err != nil {
		return err
	}

	exec := txcontext.ExecutorFrom(ctx, s.db)
	err = exec.QueryRowContext(ctx, `
		INSERT INTO audit_facts (id, occurred_at, actor_id, actor_name, actor_role, action,
			entity_type, entity_id, entity_name, description, severity, outcome,
			before_state, after_state, detail, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING sequence`,
		fact.ID.String(),
		fact.Timestamp,
		fact.ActorID,
		fact.ActorName,
		fact.ActorRole,
		fact.Action,
		string(fact.EntityType),
		fact.EntityID,
		fact.EntityName,
		fact.Description,
		string(fact.Severity),
		string(fact.Outcome),
		before,
		after,
		detail,
		fact.PrevHash,
		fact.Hash,
	).Scan(&fact.Sequence)
	if err != nil {
		return fmt.Errorf("insert audit fact: %w", database.Translate(err))
	}

	if s.outbox == nil {
		return nil
	}
	payload, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("marshal audit fact for outbox: %w", err)
	}
	entry := outbox.NewEntry(string(fact.EntityType), fact.EntityID, fact.Action, payload, fact.Timestamp)
	if err := s.outbox.Append(ctx, entry); err != nil {
		return fmt.Errorf("queue audit fact: %w", database.Translate(err))
	}
	return nil
}

func (s *PostgresStore) LastHash(ctx context.Context, entityType audit.EntityType, entityID string) (string, error) {
	var hash string
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT hash FROM audit_facts
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY sequence DESC
		LIMIT 1`, string(entityType), entityID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find last audit hash: %w", database.Translate(err))
	}
	return hash, nil
}

// Iterate streams matching rows newest first. Text matching uses ILIKE, which
// folds ASCII and most Latin letters the way the in-memory store does.
func (s *PostgresStore) Iterate(ctx context.Context, filter audit.Filter, yield func(audit.Fact) bool) error {
	where, args := buildWhere(filter)
	query := "SELECT " + factColumns + " FROM audit_facts" + where + " ORDER BY occurred_at DESC, sequence DESC"

	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query audit facts: %w", database.Translate(err))
	}
	defer rows.Close()

	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return err
		}
		if !yield(fact) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate audit facts: %w", database.Translate(err))
	}
	return nil
}

func buildWhere(f audit.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", string(f.EntityType))
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	if f.Outcome != "" {
		add("outcome = $%d", string(f.Outcome))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To.UTC())
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		args = append(args, "%"+escapeLike(text)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(actor_name ILIKE $%[1]d OR action ILIKE $%[1]d OR entity_name ILIKE $%[1]d OR description ILIKE $%[1]d)", n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(row rowScanner) (audit.Fact, error) {
	var (
		fact                  audit.Fact
		factID                string
		entityType            string
		severity, outcome     string
		before, after, detail []byte
	)
	if err := row.Scan(&factID, &fact.Sequence, &fact.Timestamp, &fact.ActorID, &fact.ActorName, &fact.ActorRole,
		&fact.Action, &entityType, &fact.EntityID, &fact.EntityName, &fact.Description, &severity, &outcome,
		&before, &after, &detail, &fact.PrevHash, &fact.Hash); err != nil {
		return audit.Fact{}, fmt.Errorf("scan audit fact: %w", err)
	}
	if err := fact.ID.UnmarshalText([]byte(factID)); err != nil {
		return audit.Fact{}, fmt.Errorf("parse audit fact id: %w", err)
	}
	fact.Timestamp = fact.Timestamp.UTC()
	fact.EntityType = audit.EntityType(entityType)
	fact.Severity = audit.Severity(severity)
	fact.Outcome = audit.Outcome(outcome)
	if err := unmarshalNullable(before, &fact.BeforeState); err != nil {
		return audit.Fact{}, err
	}
	if err := unmarshalNullable(after, &fact.AfterState); err != nil {
		return audit.Fact{}, err
	}
	if err := unmarshalNullable(detail, &fact.Detail); err != nil {
		return audit.Fact{}, err
	}
	return fact, nil
}

func marshalNullable[T any](v T) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit column: %w", err)
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

func unmarshalNullable[T any](raw []byte, dst *T) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal audit column: %w", err)
	}
	return nil
}
