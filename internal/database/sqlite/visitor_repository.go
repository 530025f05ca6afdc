package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
)

// VisitorRepository implements repositories.VisitorRepository
type VisitorRepository struct {
	db *sqlx.DB
}

// NewVisitorRepository creates a new VisitorRepository
func NewVisitorRepository(db *sqlx.DB) repositories.VisitorRepository {
	return &VisitorRepository{db: db}
}

// Create inserts a new visitor. A race on the (site_id, fingerprint) unique
// index surfaces as errors.ErrUniqueViolation; the resolver re-reads the
// winning row in that case.
func (r *VisitorRepository) Create(ctx context.Context, visitor *models.Visitor) error {
	query := `
		INSERT INTO visitors (
			id, site_id, fingerprint, anonymized_ip, user_agent,
			device_type, browser, browser_version, os, os_version,
			language, country, region, city,
			first_seen_at, last_seen_at, session_count, page_view_count, event_count
		) VALUES (
			:id, :site_id, :fingerprint, :anonymized_ip, :user_agent,
			:device_type, :browser, :browser_version, :os, :os_version,
			:language, :country, :region, :city,
			:first_seen_at, :last_seen_at, :session_count, :page_view_count, :event_count
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, visitor); err != nil {
		if uerr := translateUnique(err); uerr != err {
			return uerr
		}
		return fmt.Errorf("failed to create visitor: %w", err)
	}

	return nil
}

// GetByID retrieves a visitor by ID, (nil, nil) when absent
func (r *VisitorRepository) GetByID(ctx context.Context, id string) (*models.Visitor, error) {
	visitor := &models.Visitor{}
	err := r.db.GetContext(ctx, visitor, `SELECT * FROM visitors WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}
	return visitor, nil
}

// GetByFingerprint retrieves a visitor by site-scoped fingerprint, (nil, nil) when absent
func (r *VisitorRepository) GetByFingerprint(ctx context.Context, siteID, fingerprint string) (*models.Visitor, error) {
	visitor := &models.Visitor{}
	err := r.db.GetContext(ctx, visitor,
		`SELECT * FROM visitors WHERE site_id = ? AND fingerprint = ?`, siteID, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visitor by fingerprint: %w", err)
	}
	return visitor, nil
}

// Update persists visitor field changes from a revisit
func (r *VisitorRepository) Update(ctx context.Context, visitor *models.Visitor) error {
	query := `
		UPDATE visitors SET
			anonymized_ip = :anonymized_ip, user_agent = :user_agent,
			device_type = :device_type, browser = :browser, browser_version = :browser_version,
			os = :os, os_version = :os_version, language = :language,
			country = :country, region = :region, city = :city,
			last_seen_at = :last_seen_at
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, visitor)
	if err != nil {
		return fmt.Errorf("failed to update visitor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("visitor not found with ID: %s", visitor.ID)
	}

	return nil
}

// IncrementCounters bumps the per-type activity counters. The deltas are
// applied in-database so concurrent requests do not lose updates.
func (r *VisitorRepository) IncrementCounters(ctx context.Context, id string, sessions, pageViews, events int) error {
	query := `
		UPDATE visitors SET
			session_count = session_count + ?,
			page_view_count = page_view_count + ?,
			event_count = event_count + ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, sessions, pageViews, events, id); err != nil {
		return fmt.Errorf("failed to increment visitor counters: %w", err)
	}

	return nil
}
