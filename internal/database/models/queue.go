package models

import (
	"database/sql"
	"time"
)

// Task statuses. Terminal states are completed and failed.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Task represents a unit of asynchronous work handed off by the tracking
// pipeline. Delivery is at-least-once: handlers must be idempotent.
type Task struct {
	ID         string         `json:"id" db:"id"`
	Type       string         `json:"type" db:"type"`
	Payload    string         `json:"payload" db:"payload"`
	Status     string         `json:"status" db:"status"`
	RetryCount int            `json:"retry_count" db:"retry_count"`
	MaxRetries int            `json:"max_retries" db:"max_retries"`
	RunAfter   time.Time      `json:"run_after" db:"run_after"`
	LastError  sql.NullString `json:"last_error" db:"last_error"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}
