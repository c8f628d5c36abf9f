package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/speechcare/analysis-service/internal/task"
)

// PostgresStore keeps task records in a single tasks table with results as
// JSONB. INSERT ... ON CONFLICT DO NOTHING provides the atomic
// create-if-absent guarantee; terminal updates are guarded on
// status = 'processing'.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and ensures the tasks table exists.
func NewPostgresStore(ctx context.Context, connString string, maxConns, minConns int) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}
	config.MaxConns = int32(maxConns)
	config.MinConns = int32(minConns)
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %v", task.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", task.ErrStoreUnavailable, err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			task_id    TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			results    JSONB,
			error      TEXT,
			owner_ref  TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: ensure schema: %v", task.ErrStoreUnavailable, err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_tasks_owner_ref ON tasks (owner_ref, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("%w: ensure index: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) UpsertCreate(ctx context.Context, taskID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (task_id, status, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (task_id) DO NOTHING
	`, taskID, task.StatusProcessing)
	if err != nil {
		return fmt.Errorf("%w: upsert create: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Complete(ctx context.Context, taskID string, results map[string]interface{}) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2, results = $3, error = NULL, updated_at = NOW()
		WHERE task_id = $1 AND status = $4
	`, taskID, task.StatusCompleted, payload, task.StatusProcessing)
	if err != nil {
		return fmt.Errorf("%w: complete: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Fail(ctx context.Context, taskID, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2, error = $3, results = NULL, updated_at = NOW()
		WHERE task_id = $1 AND status = $4
	`, taskID, task.StatusFailed, message, task.StatusProcessing)
	if err != nil {
		return fmt.Errorf("%w: fail: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) SetOwner(ctx context.Context, taskID, ownerRef string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET owner_ref = $2, updated_at = NOW()
		WHERE task_id = $1
	`, taskID, ownerRef)
	if err != nil {
		return fmt.Errorf("%w: set owner: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, taskID string) (*task.Task, error) {
	var (
		t        task.Task
		results  []byte
		errField *string
		owner    *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT task_id, status, results, error, owner_ref, created_at, updated_at
		FROM tasks
		WHERE task_id = $1
	`, taskID).Scan(&t.TaskID, &t.Status, &results, &errField, &owner, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get: %v", task.ErrStoreUnavailable, err)
	}

	if errField != nil {
		t.Error = *errField
	}
	if owner != nil {
		t.OwnerRef = *owner
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &t.Results); err != nil {
			return nil, fmt.Errorf("decode results for task %s: %w", taskID, err)
		}
	}
	return &t, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]task.Projection, error) {
	query := `
		SELECT task_id, status, COALESCE(owner_ref, ''), created_at
		FROM tasks
	`
	args := []interface{}{}
	if f.OwnerRef != "" {
		query += " WHERE owner_ref = $1"
		args = append(args, f.OwnerRef)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", task.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	tasks := []task.Projection{}
	for rows.Next() {
		var p task.Projection
		if err := rows.Scan(&p.TaskID, &p.Status, &p.OwnerRef, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", task.ErrStoreUnavailable, err)
		}
		tasks = append(tasks, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: iterate: %v", task.ErrStoreUnavailable, rows.Err())
	}
	return tasks, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
