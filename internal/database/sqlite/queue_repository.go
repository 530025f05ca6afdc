package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
)

// QueueRepository implements repositories.QueueRepository
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository creates a new QueueRepository
func NewQueueRepository(db *sqlx.DB) repositories.QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue inserts a pending task
func (r *QueueRepository) Enqueue(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.RunAfter.IsZero() {
		task.RunAfter = now
	}

	query := `
		INSERT INTO tasks (
			id, type, payload, status, retry_count, max_retries,
			run_after, last_error, created_at, updated_at
		) VALUES (
			:id, :type, :payload, :status, :retry_count, :max_retries,
			:run_after, :last_error, :created_at, :updated_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// ClaimPending atomically marks due pending tasks as running and returns
// them. The claim runs in a transaction so concurrent workers never pick up
// the same task; a crash before completion leaves the row running until the
// retry sweep, which satisfies at-least-once delivery.
func (r *QueueRepository) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.Task, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	tasks := []*models.Task{}
	query := `
		SELECT * FROM tasks
		WHERE status = ? AND run_after <= ?
		ORDER BY run_after ASC
		LIMIT ?
	`

	if err := tx.SelectContext(ctx, &tasks, query, models.TaskStatusPending, now, limit); err != nil {
		return nil, fmt.Errorf("failed to select pending tasks: %w", err)
	}

	for _, task := range tasks {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			models.TaskStatusRunning, now, task.ID); err != nil {
			return nil, fmt.Errorf("failed to claim task: %w", err)
		}
		task.Status = models.TaskStatusRunning
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return tasks, nil
}

// MarkCompleted moves a task to its terminal success state
func (r *QueueRepository) MarkCompleted(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		models.TaskStatusCompleted, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}
	return nil
}

// MarkFailed records a failure. Non-terminal failures go back to pending
// with a retry-at time; terminal ones stay failed.
func (r *QueueRepository) MarkFailed(ctx context.Context, id string, lastError string, retryAt time.Time, terminal bool) error {
	status := models.TaskStatusPending
	if terminal {
		status = models.TaskStatusFailed
	}

	query := `
		UPDATE tasks SET
			status = ?, retry_count = retry_count + 1,
			last_error = ?, run_after = ?, updated_at = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, status, lastError, retryAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}

	return nil
}
