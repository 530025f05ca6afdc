package repositories

import (
	"context"
	"time"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
)

// Lookup methods return (nil, nil) when no row matches. During request-time
// tracking an unknown entity is a normal outcome, not an error: callers
// decide the fallback. Create methods surface uniqueness races as
// errors.ErrUniqueViolation so callers can re-read the winning row.

// SiteRepository defines site data access methods
type SiteRepository interface {
	Create(ctx context.Context, site *models.Site) error
	GetByID(ctx context.Context, id string) (*models.Site, error)
	GetByDomain(ctx context.Context, domain string) (*models.Site, error)
}

// VisitorRepository defines visitor data access methods
type VisitorRepository interface {
	Create(ctx context.Context, visitor *models.Visitor) error
	GetByID(ctx context.Context, id string) (*models.Visitor, error)
	GetByFingerprint(ctx context.Context, siteID, fingerprint string) (*models.Visitor, error)
	Update(ctx context.Context, visitor *models.Visitor) error
	IncrementCounters(ctx context.Context, id string, sessions, pageViews, events int) error
}

// SessionRepository defines session data access methods
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetActiveByVisitor(ctx context.Context, siteID, visitorID string, activeSince time.Time) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Touch(ctx context.Context, id string, at time.Time, duration int) (bool, error)
	ListExpired(ctx context.Context, olderThan time.Time, limit int) ([]*models.Session, error)
	CountActive(ctx context.Context, siteID string, activeSince time.Time) (int, error)
}

// PageViewRepository defines page view data access methods
type PageViewRepository interface {
	Create(ctx context.Context, view *models.PageView) error
	GetByID(ctx context.Context, id string) (*models.PageView, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	UpdateEngagement(ctx context.Context, id string, timeOnPage, scrollDepth int) error
	ListBySiteBetween(ctx context.Context, siteID string, from, to time.Time) ([]*models.PageView, error)
}

// EventRepository defines custom event data access methods
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	ListBySiteBetween(ctx context.Context, siteID string, from, to time.Time) ([]*models.Event, error)
}

// GoalRepository defines goal data access methods
type GoalRepository interface {
	Create(ctx context.Context, goal *models.Goal) error
	GetByID(ctx context.Context, id string) (*models.Goal, error)
	ListBySite(ctx context.Context, siteID string) ([]*models.Goal, error)
	ListActiveBySite(ctx context.Context, siteID string) ([]*models.Goal, error)
	Update(ctx context.Context, goal *models.Goal) error
}

// ConversionRepository defines conversion data access methods
type ConversionRepository interface {
	// CreateDeduped inserts with insert-or-ignore semantics against the
	// (goal, session) / (goal, visitor) unique indexes. It reports whether
	// a row was actually created, closing the check-then-act race between
	// concurrent triggers.
	CreateDeduped(ctx context.Context, conversion *models.Conversion) (bool, error)
	Create(ctx context.Context, conversion *models.Conversion) error
	GetByID(ctx context.Context, id string) (*models.Conversion, error)
	CountByGoal(ctx context.Context, goalID string) (int, error)
	ListByGoalBetween(ctx context.Context, goalID string, from, to time.Time) ([]*models.Conversion, error)
}

// QueueRepository defines async task data access methods
type QueueRepository interface {
	Enqueue(ctx context.Context, task *models.Task) error
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.Task, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastError string, retryAt time.Time, terminal bool) error
}
