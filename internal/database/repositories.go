package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
	"github.com/openpulse/pulse-backend-go/internal/database/sqlite"
)

// Repositories holds all repository instances
type Repositories struct {
	Site       repositories.SiteRepository
	Visitor    repositories.VisitorRepository
	Session    repositories.SessionRepository
	PageView   repositories.PageViewRepository
	Event      repositories.EventRepository
	Goal       repositories.GoalRepository
	Conversion repositories.ConversionRepository
	Queue      repositories.QueueRepository

	db *sqlx.DB
}

// NewRepositories creates all repository instances
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Site:       sqlite.NewSiteRepository(db),
		Visitor:    sqlite.NewVisitorRepository(db),
		Session:    sqlite.NewSessionRepository(db),
		PageView:   sqlite.NewPageViewRepository(db),
		Event:      sqlite.NewEventRepository(db),
		Goal:       sqlite.NewGoalRepository(db),
		Conversion: sqlite.NewConversionRepository(db),
		Queue:      sqlite.NewQueueRepository(db),
		db:         db,
	}
}

// Ping reports whether the database is reachable
func (r *Repositories) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
