package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
	"github.com/openpulse/pulse-backend-go/internal/database/sqlite"
	"github.com/openpulse/pulse-backend-go/pkg/logger"
)

const queueTestSchema = `
CREATE TABLE tasks (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 3,
    run_after DATETIME NOT NULL,
    last_error TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`

func setupQueue(t *testing.T, maxRetries int) (*Service, repositories.QueueRepository, *sqlx.DB) {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(queueTestSchema)
	require.NoError(t, err)

	tasks := sqlite.NewQueueRepository(db)
	return NewService(tasks, maxRetries, logger.New("error", "text")), tasks, db
}

func claimOne(t *testing.T, tasks repositories.QueueRepository) *models.Task {
	t.Helper()
	claimed, err := tasks.ClaimPending(context.Background(), 10, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	return claimed[0]
}

func TestEnqueueAndClaim(t *testing.T) {
	service, tasks, _ := setupQueue(t, 3)
	ctx := context.Background()

	require.NoError(t, service.Enqueue(ctx, "test_task", map[string]string{"key": "value"}))

	task := claimOne(t, tasks)
	assert.Equal(t, "test_task", task.Type)
	assert.JSONEq(t, `{"key":"value"}`, task.Payload)
	assert.Equal(t, models.TaskStatusRunning, task.Status)
	assert.Equal(t, 3, task.MaxRetries)

	// A claimed task is not handed out twice.
	again, err := tasks.ClaimPending(ctx, 10, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestClaimSkipsFutureTasks(t *testing.T) {
	_, tasks, _ := setupQueue(t, 3)
	ctx := context.Background()

	task := &models.Task{
		ID:         "t-future",
		Type:       "test_task",
		Payload:    "{}",
		MaxRetries: 3,
		RunAfter:   time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, tasks.Enqueue(ctx, task))

	claimed, err := tasks.ClaimPending(ctx, 10, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = tasks.ClaimPending(ctx, 10, time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestDispatchMarksCompleted(t *testing.T) {
	service, tasks, db := setupQueue(t, 3)
	ctx := context.Background()

	handled := 0
	service.Register("test_task", HandlerFunc(func(ctx context.Context, task *models.Task) error {
		handled++
		return nil
	}))

	require.NoError(t, service.Enqueue(ctx, "test_task", nil))
	service.dispatch(ctx, claimOne(t, tasks))

	assert.Equal(t, 1, handled)

	var status string
	require.NoError(t, db.Get(&status, `SELECT status FROM tasks`))
	assert.Equal(t, models.TaskStatusCompleted, status)
}

func TestDispatchRetriesWithBackoff(t *testing.T) {
	service, tasks, db := setupQueue(t, 3)
	ctx := context.Background()

	service.Register("test_task", HandlerFunc(func(ctx context.Context, task *models.Task) error {
		return errors.New("downstream unavailable")
	}))

	require.NoError(t, service.Enqueue(ctx, "test_task", nil))
	before := time.Now().UTC()
	service.dispatch(ctx, claimOne(t, tasks))

	var got models.Task
	require.NoError(t, db.Get(&got, `SELECT * FROM tasks`))
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "downstream unavailable", got.LastError.String)
	assert.True(t, got.RunAfter.After(before.Add(time.Second)), "retry is deferred")
}

func TestDispatchTerminalFailure(t *testing.T) {
	service, tasks, db := setupQueue(t, 2)
	ctx := context.Background()

	service.Register("test_task", HandlerFunc(func(ctx context.Context, task *models.Task) error {
		return errors.New("still broken")
	}))

	require.NoError(t, service.Enqueue(ctx, "test_task", nil))

	// First failure requeues, second exhausts max_retries.
	service.dispatch(ctx, claimOne(t, tasks))

	claimed, err := tasks.ClaimPending(ctx, 10, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	service.dispatch(ctx, claimed[0])

	var got models.Task
	require.NoError(t, db.Get(&got, `SELECT * FROM tasks`))
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Equal(t, 2, got.RetryCount)

	claimed, err = tasks.ClaimPending(ctx, 10, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, claimed, "failed tasks are never reclaimed")
}

func TestDispatchUnregisteredTypeFails(t *testing.T) {
	service, tasks, db := setupQueue(t, 1)
	ctx := context.Background()

	require.NoError(t, service.Enqueue(ctx, "nobody_home", nil))
	service.dispatch(ctx, claimOne(t, tasks))

	var got models.Task
	require.NoError(t, db.Get(&got, `SELECT * FROM tasks`))
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Contains(t, got.LastError.String, "no handler")
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(0))
	assert.Equal(t, 4*time.Second, backoff(1))
	assert.Equal(t, 8*time.Second, backoff(2))
	assert.Equal(t, 5*time.Minute, backoff(10))
}
