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

// ConversionRepository implements repositories.ConversionRepository
type ConversionRepository struct {
	db *sqlx.DB
}

// NewConversionRepository creates a new ConversionRepository
func NewConversionRepository(db *sqlx.DB) repositories.ConversionRepository {
	return &ConversionRepository{db: db}
}

const conversionColumns = `
	id, goal_id, site_id, session_id, visitor_id, trigger_type, trigger_id,
	value, metadata, deduped, created_at
`

// CreateDeduped inserts a conversion with INSERT OR IGNORE against the
// partial unique indexes on (goal_id, session_id) and (goal_id, visitor_id).
// Two concurrent triggers for the same key both reach this insert; exactly
// one row is created and the loser observes created == false. This closes
// the check-then-act window without in-process locks.
func (r *ConversionRepository) CreateDeduped(ctx context.Context, conversion *models.Conversion) (bool, error) {
	conversion.Deduped = true

	query := `
		INSERT OR IGNORE INTO conversions (` + conversionColumns + `)
		VALUES (
			:id, :goal_id, :site_id, :session_id, :visitor_id, :trigger_type,
			:trigger_id, :value, :metadata, :deduped, :created_at
		)
	`

	result, err := r.db.NamedExecContext(ctx, query, conversion)
	if err != nil {
		return false, fmt.Errorf("failed to create conversion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Create inserts a conversion without de-duplication, for goals that allow
// multiple conversions per session.
func (r *ConversionRepository) Create(ctx context.Context, conversion *models.Conversion) error {
	conversion.Deduped = false

	query := `
		INSERT INTO conversions (` + conversionColumns + `)
		VALUES (
			:id, :goal_id, :site_id, :session_id, :visitor_id, :trigger_type,
			:trigger_id, :value, :metadata, :deduped, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, conversion); err != nil {
		return fmt.Errorf("failed to create conversion: %w", err)
	}

	return nil
}

// GetByID retrieves a conversion by ID, (nil, nil) when absent
func (r *ConversionRepository) GetByID(ctx context.Context, id string) (*models.Conversion, error) {
	conversion := &models.Conversion{}
	err := r.db.GetContext(ctx, conversion, `SELECT * FROM conversions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}
	return conversion, nil
}

// CountByGoal counts conversions recorded for a goal
func (r *ConversionRepository) CountByGoal(ctx context.Context, goalID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM conversions WHERE goal_id = ?`, goalID)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return count, nil
}

// ListByGoalBetween returns conversions in [from, to) ordered by time
func (r *ConversionRepository) ListByGoalBetween(ctx context.Context, goalID string, from, to time.Time) ([]*models.Conversion, error) {
	conversions := []*models.Conversion{}
	query := `
		SELECT * FROM conversions
		WHERE goal_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &conversions, query, goalID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}

	return conversions, nil
}
