// Package postgres implements lifecycle.TaskStore on PostgreSQL, for
// deployments without a document store. The conditional transition is a
// single UPDATE guarded by the expected status set; zero affected rows means
// the condition lost.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// TaskStore implements lifecycle.TaskStore using PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a TaskStore over the given connection or transaction.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// Create inserts a NEW record. A primary-key collision maps to
// store.ErrAlreadyExists.
func (s *TaskStore) Create(ctx context.Context, taskID string) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (task_id, status, result_location, created_at, updated_at)
		VALUES ($1, $2, '', $3, $3)
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, taskID, lifecycle.StatusNew, now)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: task %s", store.ErrAlreadyExists, taskID)
		}
		log.Error("failed to create task record", "task_id", taskID, "error", err)
		return fmt.Errorf("%w: creating task %s: %v", store.ErrUnavailable, taskID, err)
	}

	return nil
}

// Get returns the current record or store.ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, taskID string) (*lifecycle.Record, error) {
	query := `
		SELECT task_id, status, result_location, created_at, updated_at
		FROM tasks
		WHERE task_id = $1
	`

	var rec lifecycle.Record
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&rec.TaskID,
		&rec.Status,
		&rec.ResultLocation,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("%w: reading task %s: %v", store.ErrUnavailable, taskID, err)
	}

	return &rec, nil
}

// Transition applies a compare-and-swap status update guarded by the expected
// status set. Zero affected rows surfaces as store.ErrConflict.
func (s *TaskStore) Transition(ctx context.Context, taskID string, expected []lifecycle.Status, to lifecycle.Status, resultLocation string) error {
	if len(expected) == 0 {
		return fmt.Errorf("transition for task %s has empty expected set", taskID)
	}

	args := []any{to, resultLocation, time.Now().UTC(), taskID}
	placeholders := make([]string, len(expected))
	for i, st := range expected {
		args = append(args, string(st))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = $1,
		    result_location = CASE WHEN $2 <> '' THEN $2 ELSE result_location END,
		    updated_at = $3
		WHERE task_id = $4 AND status IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: transitioning task %s to %s: %v", store.ErrUnavailable, taskID, to, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: task %s not in expected status for %s", store.ErrConflict, taskID, to)
	}

	return nil
}
