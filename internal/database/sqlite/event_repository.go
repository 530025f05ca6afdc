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

// EventRepository implements repositories.EventRepository
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *sqlx.DB) repositories.EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. Events are immutable after creation.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (
			id, site_id, session_id, visitor_id, name, category,
			properties, value, created_at
		) VALUES (
			:id, :site_id, :session_id, :visitor_id, :name, :category,
			:properties, :value, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// GetByID retrieves an event by ID, (nil, nil) when absent
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	event := &models.Event{}
	err := r.db.GetContext(ctx, event, `SELECT * FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListBySiteBetween returns events in [from, to) ordered by time
func (r *EventRepository) ListBySiteBetween(ctx context.Context, siteID string, from, to time.Time) ([]*models.Event, error) {
	events := []*models.Event{}
	query := `
		SELECT * FROM events
		WHERE site_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &events, query, siteID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}
