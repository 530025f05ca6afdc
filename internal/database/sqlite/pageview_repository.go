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

// PageViewRepository implements repositories.PageViewRepository
type PageViewRepository struct {
	db *sqlx.DB
}

// NewPageViewRepository creates a new PageViewRepository
func NewPageViewRepository(db *sqlx.DB) repositories.PageViewRepository {
	return &PageViewRepository{db: db}
}

// Create inserts a new page view
func (r *PageViewRepository) Create(ctx context.Context, view *models.PageView) error {
	query := `
		INSERT INTO page_views (
			id, site_id, session_id, visitor_id, path, title,
			time_on_page, scroll_depth, created_at
		) VALUES (
			:id, :site_id, :session_id, :visitor_id, :path, :title,
			:time_on_page, :scroll_depth, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, view); err != nil {
		return fmt.Errorf("failed to create page view: %w", err)
	}

	return nil
}

// GetByID retrieves a page view by ID, (nil, nil) when absent
func (r *PageViewRepository) GetByID(ctx context.Context, id string) (*models.PageView, error) {
	view := &models.PageView{}
	err := r.db.GetContext(ctx, view, `SELECT * FROM page_views WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page view: %w", err)
	}
	return view, nil
}

// CountBySession counts persisted page views for a session. Session
// finalization recomputes metrics from this count rather than trusting
// in-memory counters, tolerating dropped client signals.
func (r *PageViewRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM page_views WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to count page views: %w", err)
	}
	return count, nil
}

// UpdateEngagement applies in-session engagement updates. Only increases
// are persisted so late or duplicate beacons cannot regress the metrics.
func (r *PageViewRepository) UpdateEngagement(ctx context.Context, id string, timeOnPage, scrollDepth int) error {
	query := `
		UPDATE page_views SET
			time_on_page = MAX(time_on_page, ?),
			scroll_depth = MAX(scroll_depth, ?)
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, timeOnPage, scrollDepth, id); err != nil {
		return fmt.Errorf("failed to update engagement: %w", err)
	}

	return nil
}

// ListBySiteBetween returns page views in [from, to) ordered by time
func (r *PageViewRepository) ListBySiteBetween(ctx context.Context, siteID string, from, to time.Time) ([]*models.PageView, error) {
	views := []*models.PageView{}
	query := `
		SELECT * FROM page_views
		WHERE site_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &views, query, siteID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list page views: %w", err)
	}

	return views, nil
}
