// Package visitors resolves tracking requests to visitor identities using
// explicit client IDs or device fingerprints. No stable device ID exists;
// recognition is heuristic and privacy preserving.
package visitors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/core/privacy"
	"github.com/openpulse/pulse-backend-go/internal/core/useragent"
	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
	apperr "github.com/openpulse/pulse-backend-go/pkg/errors"
)

// Resolver resolves returning visitors or creates new ones.
type Resolver struct {
	visitors   repositories.VisitorRepository
	classifier *useragent.Classifier
	anonymizer *privacy.Anonymizer
	logger     *logrus.Logger
}

// NewResolver creates a new Resolver
func NewResolver(visitors repositories.VisitorRepository, classifier *useragent.Classifier, anonymizer *privacy.Anonymizer, logger *logrus.Logger) *Resolver {
	return &Resolver{
		visitors:   visitors,
		classifier: classifier,
		anonymizer: anonymizer,
		logger:     logger,
	}
}

// Resolve returns the visitor for the given signals, creating one when no
// match exists. Lookup precedence: explicit client-supplied visitor ID,
// then site-scoped fingerprint. On a match the visitor row is updated in
// place, never replaced.
func (r *Resolver) Resolve(ctx context.Context, signals Signals, siteID string) (*models.Visitor, error) {
	if signals.VisitorID != "" {
		visitor, err := r.visitors.GetByID(ctx, signals.VisitorID)
		if err != nil {
			return nil, err
		}
		if visitor != nil && visitor.SiteID == siteID {
			return visitor, r.refresh(ctx, visitor, signals)
		}
	}

	fingerprint := GenerateFingerprint(signals)
	if fingerprint != "" {
		visitor, err := r.visitors.GetByFingerprint(ctx, siteID, fingerprint)
		if err != nil {
			return nil, err
		}
		if visitor != nil {
			return visitor, r.refresh(ctx, visitor, signals)
		}
	}

	return r.create(ctx, signals, siteID, fingerprint)
}

// create inserts a new visitor. Two simultaneous first-visits sharing a
// fingerprint can race here; a uniqueness violation means someone else won,
// so the winning row is re-read instead of surfacing an error.
func (r *Resolver) create(ctx context.Context, signals Signals, siteID, fingerprint string) (*models.Visitor, error) {
	now := time.Now().UTC()
	class := r.classifier.Classify(signals.UserAgent)

	visitor := &models.Visitor{
		ID:             uuid.New().String(),
		SiteID:         siteID,
		AnonymizedIP:   r.anonymizer.Anonymize(signals.IP),
		UserAgent:      signals.UserAgent,
		DeviceType:     class.DeviceType,
		Browser:        class.Browser,
		BrowserVersion: class.BrowserVersion,
		OS:             class.OS,
		OSVersion:      class.OSVersion,
		Language:       signals.Language,
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}
	if fingerprint != "" {
		visitor.Fingerprint = sql.NullString{String: fingerprint, Valid: true}
	}
	setIfPresent(&visitor.Country, signals.Country)
	setIfPresent(&visitor.Region, signals.Region)
	setIfPresent(&visitor.City, signals.City)

	err := r.visitors.Create(ctx, visitor)
	if err == nil {
		return visitor, nil
	}
	if !errors.Is(err, apperr.ErrUniqueViolation) {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"site_id":     siteID,
		"fingerprint": fingerprint,
	}).Debug("Visitor creation lost uniqueness race, re-reading winner")

	winner, rerr := r.visitors.GetByFingerprint(ctx, siteID, fingerprint)
	if rerr != nil {
		return nil, rerr
	}
	if winner == nil {
		return nil, fmt.Errorf("visitor vanished after uniqueness race on fingerprint %s", fingerprint)
	}

	return winner, r.refresh(ctx, winner, signals)
}

// refresh updates a matched visitor for a revisit: last-seen is touched,
// IP and device fields are refreshed, and geo fields are backfilled only
// when currently unset so known values are never overwritten with unknowns.
func (r *Resolver) refresh(ctx context.Context, visitor *models.Visitor, signals Signals) error {
	visitor.LastSeenAt = time.Now().UTC()

	if signals.IP != "" {
		visitor.AnonymizedIP = r.anonymizer.Anonymize(signals.IP)
	}
	if signals.UserAgent != "" {
		class := r.classifier.Classify(signals.UserAgent)
		visitor.UserAgent = signals.UserAgent
		visitor.DeviceType = class.DeviceType
		visitor.Browser = class.Browser
		visitor.BrowserVersion = class.BrowserVersion
		visitor.OS = class.OS
		visitor.OSVersion = class.OSVersion
	}
	if signals.Language != "" {
		visitor.Language = signals.Language
	}

	if !visitor.Country.Valid {
		setIfPresent(&visitor.Country, signals.Country)
	}
	if !visitor.Region.Valid {
		setIfPresent(&visitor.Region, signals.Region)
	}
	if !visitor.City.Valid {
		setIfPresent(&visitor.City, signals.City)
	}

	return r.visitors.Update(ctx, visitor)
}

func setIfPresent(dst *sql.NullString, value string) {
	if value != "" {
		*dst = sql.NullString{String: value, Valid: true}
	}
}
