// Package sessions manages the session lifecycle: creation, heartbeat
// extension and finalization, plus bounce, duration and referrer
// classification.
package sessions

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
)

// Attributes carries the session-scoped fields captured once at creation.
type Attributes struct {
	Referrer    string `json:"referrer"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
}

// EndData carries the optional final signals sent by the client when a
// session ends explicitly.
type EndData struct {
	ExitPage    string `json:"exit_page"`
	TimeOnPage  int    `json:"time_on_page"`
	ScrollDepth int    `json:"scroll_depth"`
}

// Manager implements the session lifecycle contract.
type Manager struct {
	sessions  repositories.SessionRepository
	pageViews repositories.PageViewRepository
	visitors  repositories.VisitorRepository
	refs      *ReferrerClassifier
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewManager creates a new session Manager
func NewManager(sessions repositories.SessionRepository, pageViews repositories.PageViewRepository, visitors repositories.VisitorRepository, refs *ReferrerClassifier, timeout time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		sessions:  sessions,
		pageViews: pageViews,
		visitors:  visitors,
		refs:      refs,
		timeout:   timeout,
		logger:    logger,
	}
}

// Timeout returns the configured session inactivity window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// IsExpired reports whether a session is no longer active: it ended
// explicitly, or its last activity is older than the timeout window.
func (m *Manager) IsExpired(session *models.Session) bool {
	if session.EndedAt.Valid {
		return true
	}
	return time.Since(session.LastActivityAt) > m.timeout
}

// GetOrCreate returns the visitor's active session after touching its
// activity timestamp, or creates a new one. Referrer classification is
// computed exactly once, at creation.
func (m *Manager) GetOrCreate(ctx context.Context, sessionToken string, visitor *models.Visitor, siteID string, attrs Attributes) (*models.Session, error) {
	now := time.Now().UTC()

	if sessionToken != "" {
		session, err := m.sessions.GetByID(ctx, sessionToken)
		if err != nil {
			return nil, err
		}
		if session != nil && session.SiteID == siteID && !m.IsExpired(session) {
			return session, m.touch(ctx, session, now)
		}
	}

	session, err := m.sessions.GetActiveByVisitor(ctx, siteID, visitor.ID, now.Add(-m.timeout))
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, m.touch(ctx, session, now)
	}

	session = &models.Session{
		ID:             uuid.New().String(),
		SiteID:         siteID,
		VisitorID:      visitor.ID,
		StartedAt:      now,
		LastActivityAt: now,
		PageCount:      0,
		IsBounce:       true,
		Referrer:       attrs.Referrer,
		ReferrerType:   m.refs.Classify(attrs.Referrer, attrs.UTMMedium),
		UTMSource:      nullable(attrs.UTMSource),
		UTMMedium:      nullable(attrs.UTMMedium),
		UTMCampaign:    nullable(attrs.UTMCampaign),
		UTMTerm:        nullable(attrs.UTMTerm),
		UTMContent:     nullable(attrs.UTMContent),
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := m.visitors.IncrementCounters(ctx, visitor.ID, 1, 0, 0); err != nil {
		m.logger.WithError(err).Warn("Failed to increment visitor session counter")
	}

	return session, nil
}

// RecordPageView persists a page view and folds it into the session:
// page_count is incremented, the bounce flag is derived from it, the exit
// page becomes the new path, entry page and title are set only on the
// transition to the first page, and duration is recomputed from started_at.
func (m *Manager) RecordPageView(ctx context.Context, session *models.Session, path, title string) (*models.PageView, error) {
	now := time.Now().UTC()

	view := &models.PageView{
		ID:        uuid.New().String(),
		SiteID:    session.SiteID,
		SessionID: session.ID,
		VisitorID: session.VisitorID,
		Path:      path,
		Title:     title,
		CreatedAt: now,
	}
	if err := m.pageViews.Create(ctx, view); err != nil {
		return nil, err
	}

	session.PageCount++
	session.IsBounce = session.PageCount <= 1
	session.ExitPage = path
	if session.PageCount == 1 {
		session.EntryPage = path
		session.EntryTitle = title
	}
	session.LastActivityAt = now
	session.Duration = int(now.Sub(session.StartedAt).Seconds())

	if err := m.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	if err := m.visitors.IncrementCounters(ctx, session.VisitorID, 0, 1, 0); err != nil {
		m.logger.WithError(err).Warn("Failed to increment visitor page view counter")
	}

	return view, nil
}

// Extend is the heartbeat: it updates the activity timestamp and derived
// duration. A missing or expired session is a no-op reported as false,
// never an error.
func (m *Manager) Extend(ctx context.Context, sessionToken string) (bool, error) {
	session, err := m.sessions.GetByID(ctx, sessionToken)
	if err != nil {
		return false, err
	}
	if session == nil || m.IsExpired(session) {
		return false, nil
	}

	now := time.Now().UTC()
	return m.sessions.Touch(ctx, session.ID, now, int(now.Sub(session.StartedAt).Seconds()))
}

// End finalizes a session on an explicit end signal. Final metrics are
// recomputed from the persisted page-view count rather than the in-memory
// counter, tolerating dropped client signals. Reports false when the
// session does not exist.
func (m *Manager) End(ctx context.Context, sessionToken string, final EndData) (bool, error) {
	session, err := m.sessions.GetByID(ctx, sessionToken)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	if session.EndedAt.Valid {
		return true, nil
	}

	return true, m.finalize(ctx, session, time.Now().UTC(), final.ExitPage)
}

// FinalizeExpired ends open sessions whose activity window lapsed. Called
// by the background finalizer; ended_at is the last observed activity, not
// the sweep time.
func (m *Manager) FinalizeExpired(ctx context.Context, limit int) (int, error) {
	expired, err := m.sessions.ListExpired(ctx, time.Now().UTC().Add(-m.timeout), limit)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, session := range expired {
		if err := m.finalize(ctx, session, session.LastActivityAt, ""); err != nil {
			m.logger.WithError(err).WithField("session_id", session.ID).
				Warn("Failed to finalize expired session")
			continue
		}
		finalized++
	}

	return finalized, nil
}

// touch advances a reused session's activity timestamp and derived
// duration, both on the row and on the in-memory copy handed back to the
// caller.
func (m *Manager) touch(ctx context.Context, session *models.Session, now time.Time) error {
	duration := int(now.Sub(session.StartedAt).Seconds())
	if _, err := m.sessions.Touch(ctx, session.ID, now, duration); err != nil {
		return err
	}
	session.LastActivityAt = now
	session.Duration = duration
	return nil
}

func (m *Manager) finalize(ctx context.Context, session *models.Session, endedAt time.Time, exitPage string) error {
	count, err := m.pageViews.CountBySession(ctx, session.ID)
	if err != nil {
		return err
	}

	session.PageCount = count
	session.IsBounce = count <= 1
	session.EndedAt = sql.NullTime{Time: endedAt, Valid: true}
	session.LastActivityAt = endedAt
	session.Duration = int(endedAt.Sub(session.StartedAt).Seconds())
	if exitPage != "" {
		session.ExitPage = exitPage
	}

	return m.sessions.Update(ctx, session)
}

func nullable(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
