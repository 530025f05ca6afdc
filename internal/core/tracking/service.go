// Package tracking orchestrates the ingest pipeline: visitor resolution,
// session lifecycle, event persistence and goal evaluation, in that order.
package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/core/goals"
	"github.com/openpulse/pulse-backend-go/internal/core/metrics"
	"github.com/openpulse/pulse-backend-go/internal/core/sessions"
	"github.com/openpulse/pulse-backend-go/internal/core/visitors"
	"github.com/openpulse/pulse-backend-go/internal/database"
	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/websocket"
	apperr "github.com/openpulse/pulse-backend-go/pkg/errors"
)

// PageViewInput is a page view tracking request after transport decoding.
type PageViewInput struct {
	SiteID       string
	SessionToken string
	Path         string
	Title        string
	Signals      visitors.Signals
	Attributes   sessions.Attributes
	DoNotTrack   bool
}

// EventInput is a custom event tracking request after transport decoding.
type EventInput struct {
	SiteID       string
	SessionToken string
	Name         string
	Category     string
	Properties   map[string]interface{}
	Value        *float64
	Signals      visitors.Signals
	Attributes   sessions.Attributes
	DoNotTrack   bool
}

// PageViewResult carries the identifiers the tracking script needs for
// follow-up heartbeats.
type PageViewResult struct {
	VisitorID  string `json:"visitor_id"`
	SessionID  string `json:"session_id"`
	PageViewID string `json:"page_view_id"`
	NewSession bool   `json:"new_session"`
}

// EventResult carries the identifiers produced by event ingestion.
type EventResult struct {
	VisitorID string `json:"visitor_id"`
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id"`
}

// Service is the ingest pipeline.
type Service struct {
	repos     *database.Repositories
	resolver  *visitors.Resolver
	sessions  *sessions.Manager
	engine    *goals.Engine
	hub       *websocket.Hub
	collector *metrics.Collector
	honorDNT  bool
	logger    *logrus.Logger
}

// NewService creates a tracking service.
func NewService(repos *database.Repositories, resolver *visitors.Resolver, manager *sessions.Manager, engine *goals.Engine, hub *websocket.Hub, collector *metrics.Collector, honorDNT bool, logger *logrus.Logger) *Service {
	return &Service{
		repos:     repos,
		resolver:  resolver,
		sessions:  manager,
		engine:    engine,
		hub:       hub,
		collector: collector,
		honorDNT:  honorDNT,
		logger:    logger,
	}
}

// TrackPageView runs a page view through the full pipeline. DNT requests
// are accepted but produce no tracking effect.
func (s *Service) TrackPageView(ctx context.Context, in PageViewInput) (*PageViewResult, error) {
	if s.honorDNT && in.DoNotTrack {
		s.collector.RecordDropped("dnt")
		return &PageViewResult{}, nil
	}

	site, err := s.site(ctx, in.SiteID)
	if err != nil {
		return nil, err
	}

	visitor, err := s.resolver.Resolve(ctx, in.Signals, site.ID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetOrCreate(ctx, in.SessionToken, visitor, site.ID, in.Attributes)
	if err != nil {
		return nil, err
	}
	newSession := in.SessionToken != session.ID

	view, err := s.sessions.RecordPageView(ctx, session, in.Path, in.Title)
	if err != nil {
		return nil, err
	}

	s.engine.Process(ctx, site.ID, goals.PageViewTrigger(view, session), session, visitor)
	s.engine.Process(ctx, site.ID, goals.SessionTrigger(session), session, visitor)

	s.collector.RecordPageView(site.ID)
	if newSession {
		s.collector.RecordSessionStarted(site.ID)
		s.hub.BroadcastToSite(site.ID, websocket.SessionStartedMessage(site.ID, session.ID, session.ReferrerType))
	}
	s.broadcastPageView(ctx, site.ID, in.Path)

	return &PageViewResult{
		VisitorID:  visitor.ID,
		SessionID:  session.ID,
		PageViewID: view.ID,
		NewSession: newSession,
	}, nil
}

// TrackEvent persists a custom event and evaluates event goals against it.
func (s *Service) TrackEvent(ctx context.Context, in EventInput) (*EventResult, error) {
	if s.honorDNT && in.DoNotTrack {
		s.collector.RecordDropped("dnt")
		return &EventResult{}, nil
	}
	if in.Name == "" {
		return nil, apperr.NewValidationError("event name is required", nil)
	}

	site, err := s.site(ctx, in.SiteID)
	if err != nil {
		return nil, err
	}

	visitor, err := s.resolver.Resolve(ctx, in.Signals, site.ID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetOrCreate(ctx, in.SessionToken, visitor, site.ID, in.Attributes)
	if err != nil {
		return nil, err
	}

	properties := "{}"
	if len(in.Properties) > 0 {
		data, err := json.Marshal(in.Properties)
		if err != nil {
			return nil, apperr.NewValidationError("event properties must be JSON-serializable", err)
		}
		properties = string(data)
	}

	event := &models.Event{
		ID:         uuid.New().String(),
		SiteID:     site.ID,
		SessionID:  sql.NullString{String: session.ID, Valid: true},
		VisitorID:  visitor.ID,
		Name:       in.Name,
		Category:   in.Category,
		Properties: properties,
		CreatedAt:  time.Now().UTC(),
	}
	if in.Value != nil {
		event.Value = sql.NullFloat64{Float64: *in.Value, Valid: true}
	}

	if err := s.repos.Event.Create(ctx, event); err != nil {
		return nil, err
	}

	if err := s.repos.Visitor.IncrementCounters(ctx, visitor.ID, 0, 0, 1); err != nil {
		s.logger.WithError(err).Warn("Failed to increment visitor event counter")
	}

	s.engine.Process(ctx, site.ID, goals.EventTrigger(event, session), session, visitor)

	s.collector.RecordEvent(site.ID)
	s.hub.BroadcastToSite(site.ID, websocket.EventTrackedMessage(site.ID, event.Name, event.Category))

	return &EventResult{
		VisitorID: visitor.ID,
		SessionID: session.ID,
		EventID:   event.ID,
	}, nil
}

// Heartbeat extends a session's activity window and optionally folds
// engagement updates into the current page view. Engagement values only
// ever grow.
func (s *Service) Heartbeat(ctx context.Context, sessionToken, pageViewID string, timeOnPage, scrollDepth int) (bool, error) {
	extended, err := s.sessions.Extend(ctx, sessionToken)
	if err != nil {
		return false, err
	}
	if !extended {
		return false, nil
	}

	if pageViewID != "" {
		if err := s.repos.PageView.UpdateEngagement(ctx, pageViewID, timeOnPage, scrollDepth); err != nil {
			s.logger.WithError(err).WithField("page_view_id", pageViewID).Warn("Failed to update page view engagement")
		}
	}

	return true, nil
}

// EndSession finalizes a session explicitly. Duration and session-level
// goals are evaluated against the final state.
func (s *Service) EndSession(ctx context.Context, sessionToken string, final sessions.EndData) (bool, error) {
	session, err := s.repos.Session.GetByID(ctx, sessionToken)
	if err != nil {
		return false, err
	}

	ended, err := s.sessions.End(ctx, sessionToken, final)
	if err != nil || !ended {
		return ended, err
	}

	if session != nil {
		ended, err := s.repos.Session.GetByID(ctx, session.ID)
		if err == nil && ended != nil {
			visitor, verr := s.repos.Visitor.GetByID(ctx, ended.VisitorID)
			if verr == nil && visitor != nil {
				s.engine.Process(ctx, ended.SiteID, goals.SessionTrigger(ended), ended, visitor)
			}
		}
	}

	return true, nil
}

// ActiveVisitors returns the number of sessions with activity inside the
// timeout window.
func (s *Service) ActiveVisitors(ctx context.Context, siteID string) (int, error) {
	return s.repos.Session.CountActive(ctx, siteID, time.Now().UTC().Add(-s.sessions.Timeout()))
}

func (s *Service) site(ctx context.Context, siteID string) (*models.Site, error) {
	if siteID == "" {
		return nil, apperr.NewValidationError("site_id is required", nil)
	}
	site, err := s.repos.Site.GetByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, apperr.NewNotFoundError(fmt.Sprintf("site %s not found", siteID), nil)
	}
	if !site.IsActive {
		return nil, apperr.NewValidationError("site is not accepting tracking data", nil)
	}
	return site, nil
}

func (s *Service) broadcastPageView(ctx context.Context, siteID, path string) {
	count, err := s.ActiveVisitors(ctx, siteID)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to count active visitors for broadcast")
		count = 0
	}
	s.hub.BroadcastToSite(siteID, websocket.PageViewTrackedMessage(siteID, path, count))
}
