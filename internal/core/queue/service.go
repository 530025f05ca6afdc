// Package queue provides a persistent async task queue backed by the
// database. Tasks are claimed in batches by a worker pool and retried with
// exponential backoff. Delivery is at-least-once.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
)

// Handler processes one task type. Handlers must be idempotent because a
// task can be delivered more than once.
type Handler interface {
	Handle(ctx context.Context, task *models.Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *models.Task) error

// Handle calls f(ctx, task).
func (f HandlerFunc) Handle(ctx context.Context, task *models.Task) error {
	return f(ctx, task)
}

// Service enqueues tasks and dispatches claimed tasks to registered handlers.
type Service struct {
	tasks      repositories.QueueRepository
	maxRetries int
	logger     *logrus.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewService creates a queue service.
func NewService(tasks repositories.QueueRepository, maxRetries int, logger *logrus.Logger) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{
		tasks:      tasks,
		maxRetries: maxRetries,
		logger:     logger,
		handlers:   make(map[string]Handler),
	}
}

// Register binds a handler to a task type. Registering the same type twice
// replaces the previous handler.
func (s *Service) Register(taskType string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = handler
}

// Enqueue persists a new pending task. The payload is marshaled to JSON.
func (s *Service) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		Payload:    string(data),
		Status:     models.TaskStatusPending,
		MaxRetries: s.maxRetries,
		RunAfter:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.tasks.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": taskType,
	}).Debug("Task enqueued")

	return nil
}

// dispatch runs one claimed task and records the outcome.
func (s *Service) dispatch(ctx context.Context, task *models.Task) {
	s.mu.RLock()
	handler, ok := s.handlers[task.Type]
	s.mu.RUnlock()

	if !ok {
		s.logger.WithFields(logrus.Fields{
			"task_id":   task.ID,
			"task_type": task.Type,
		}).Error("No handler registered for task type")
		s.fail(ctx, task, fmt.Errorf("no handler for task type %q", task.Type))
		return
	}

	if err := handler.Handle(ctx, task); err != nil {
		s.fail(ctx, task, err)
		return
	}

	if err := s.tasks.MarkCompleted(ctx, task.ID); err != nil {
		s.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to mark task completed")
	}
}

func (s *Service) fail(ctx context.Context, task *models.Task, cause error) {
	terminal := task.RetryCount+1 >= task.MaxRetries
	retryAt := time.Now().UTC().Add(backoff(task.RetryCount))

	entry := s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"task_type":   task.Type,
		"retry_count": task.RetryCount,
		"terminal":    terminal,
	}).WithError(cause)

	if terminal {
		entry.Error("Task failed permanently")
	} else {
		entry.Warn("Task failed, will retry")
	}

	if err := s.tasks.MarkFailed(ctx, task.ID, cause.Error(), retryAt, terminal); err != nil {
		s.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to mark task failed")
	}
}

// backoff returns the delay before the next attempt: 2s, 4s, 8s, ... capped
// at five minutes.
func backoff(retryCount int) time.Duration {
	d := time.Duration(1<<uint(retryCount+1)) * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
