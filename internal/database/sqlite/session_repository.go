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

// SessionRepository implements repositories.SessionRepository
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sqlx.DB) repositories.SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			id, site_id, visitor_id, started_at, last_activity_at, ended_at,
			duration, entry_page, entry_title, exit_page, page_count, is_bounce,
			referrer, referrer_type,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content
		) VALUES (
			:id, :site_id, :visitor_id, :started_at, :last_activity_at, :ended_at,
			:duration, :entry_page, :entry_title, :exit_page, :page_count, :is_bounce,
			:referrer, :referrer_type,
			:utm_source, :utm_medium, :utm_campaign, :utm_term, :utm_content
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID, (nil, nil) when absent
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	session := &models.Session{}
	err := r.db.GetContext(ctx, session, `SELECT * FROM sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// GetActiveByVisitor returns the visitor's active session: not ended and
// with activity since the given cutoff. (nil, nil) when none exists.
func (r *SessionRepository) GetActiveByVisitor(ctx context.Context, siteID, visitorID string, activeSince time.Time) (*models.Session, error) {
	session := &models.Session{}
	query := `
		SELECT * FROM sessions
		WHERE site_id = ? AND visitor_id = ?
		  AND ended_at IS NULL AND last_activity_at >= ?
		ORDER BY last_activity_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, session, query, siteID, visitorID, activeSince)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return session, nil
}

// Update persists session field changes
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions SET
			last_activity_at = :last_activity_at, ended_at = :ended_at,
			duration = :duration, entry_page = :entry_page, entry_title = :entry_title,
			exit_page = :exit_page, page_count = :page_count, is_bounce = :is_bounce
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found with ID: %s", session.ID)
	}

	return nil
}

// Touch updates the activity timestamp and derived duration of a live
// session. Heartbeats are last-writer-wins: duration always derives from
// started_at, so out-of-order writes cannot corrupt it. Reports false when
// the session is missing or already ended.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time, duration int) (bool, error) {
	query := `
		UPDATE sessions SET last_activity_at = ?, duration = ?
		WHERE id = ? AND ended_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, at, duration, id)
	if err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListExpired returns open sessions whose last activity predates the cutoff,
// for the background finalizer.
func (r *SessionRepository) ListExpired(ctx context.Context, olderThan time.Time, limit int) ([]*models.Session, error) {
	sessions := []*models.Session{}
	query := `
		SELECT * FROM sessions
		WHERE ended_at IS NULL AND last_activity_at < ?
		ORDER BY last_activity_at ASC
		LIMIT ?
	`

	if err := r.db.SelectContext(ctx, &sessions, query, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	return sessions, nil
}

// CountActive counts sessions with recent activity. Always computed fresh;
// realtime counts are never served from a cache.
func (r *SessionRepository) CountActive(ctx context.Context, siteID string, activeSince time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM sessions
		WHERE site_id = ? AND ended_at IS NULL AND last_activity_at >= ?
	`

	if err := r.db.GetContext(ctx, &count, query, siteID, activeSince); err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}

	return count, nil
}
