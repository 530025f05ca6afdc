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

// SiteRepository implements repositories.SiteRepository
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository creates a new SiteRepository
func NewSiteRepository(db *sqlx.DB) repositories.SiteRepository {
	return &SiteRepository{db: db}
}

// Create inserts a new site
func (r *SiteRepository) Create(ctx context.Context, site *models.Site) error {
	now := time.Now().UTC()
	site.CreatedAt = now
	site.UpdatedAt = now

	query := `
		INSERT INTO sites (id, domain, name, is_active, created_at, updated_at)
		VALUES (:id, :domain, :name, :is_active, :created_at, :updated_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, site); err != nil {
		if uerr := translateUnique(err); uerr != err {
			return uerr
		}
		return fmt.Errorf("failed to create site: %w", err)
	}

	return nil
}

// GetByID retrieves a site by ID, (nil, nil) when absent
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*models.Site, error) {
	site := &models.Site{}
	err := r.db.GetContext(ctx, site, `SELECT * FROM sites WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// GetByDomain retrieves a site by domain, (nil, nil) when absent
func (r *SiteRepository) GetByDomain(ctx context.Context, domain string) (*models.Site, error) {
	site := &models.Site{}
	err := r.db.GetContext(ctx, site, `SELECT * FROM sites WHERE domain = ?`, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site by domain: %w", err)
	}
	return site, nil
}
