package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
)

// GoalRepository implements repositories.GoalRepository
type GoalRepository struct {
	db *sqlx.DB
}

// NewGoalRepository creates a new GoalRepository
func NewGoalRepository(db *sqlx.DB) repositories.GoalRepository {
	return &GoalRepository{db: db}
}

// Create inserts a new goal
func (r *GoalRepository) Create(ctx context.Context, goal *models.Goal) error {
	now := time.Now().UTC()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	query := `
		INSERT INTO goals (
			id, site_id, name, type, event_name, event_category,
			conditions, path_rules, min_seconds, min_pages, min_value,
			value_mode, fixed_value, value_path, funnel_steps,
			allow_multiple, webhook_url, is_active, created_at, updated_at
		) VALUES (
			:id, :site_id, :name, :type, :event_name, :event_category,
			:conditions, :path_rules, :min_seconds, :min_pages, :min_value,
			:value_mode, :fixed_value, :value_path, :funnel_steps,
			:allow_multiple, :webhook_url, :is_active, :created_at, :updated_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, goal); err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}

	return nil
}

// GetByID retrieves a goal by ID, (nil, nil) when absent
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*models.Goal, error) {
	goal := &models.Goal{}
	err := r.db.GetContext(ctx, goal, `SELECT * FROM goals WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return goal, nil
}

// ListBySite returns all goals for a site
func (r *GoalRepository) ListBySite(ctx context.Context, siteID string) ([]*models.Goal, error) {
	goals := []*models.Goal{}
	query := `SELECT * FROM goals WHERE site_id = ? ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &goals, query, siteID); err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	return goals, nil
}

// ListActiveBySite returns the goals the matching engine evaluates per event
func (r *GoalRepository) ListActiveBySite(ctx context.Context, siteID string) ([]*models.Goal, error) {
	goals := []*models.Goal{}
	query := `SELECT * FROM goals WHERE site_id = ? AND is_active = 1 ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &goals, query, siteID); err != nil {
		return nil, fmt.Errorf("failed to list active goals: %w", err)
	}

	return goals, nil
}

// Update persists goal changes
func (r *GoalRepository) Update(ctx context.Context, goal *models.Goal) error {
	goal.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE goals SET
			name = :name, type = :type, event_name = :event_name,
			event_category = :event_category, conditions = :conditions,
			path_rules = :path_rules, min_seconds = :min_seconds,
			min_pages = :min_pages, min_value = :min_value,
			value_mode = :value_mode, fixed_value = :fixed_value,
			value_path = :value_path, funnel_steps = :funnel_steps,
			allow_multiple = :allow_multiple, webhook_url = :webhook_url,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, goal)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("goal not found with ID: %s", goal.ID)
	}

	return nil
}
