// Package goals implements rule-based goal matching and de-duplicated
// conversion recording. Nothing in this package escapes to its caller
// during request-time tracking: evaluation failures are logged and treated
// as non-matches, and uniqueness races resolve inside the storage layer.
package goals

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
)

// Trigger kinds
const (
	TriggerEvent    = "event"
	TriggerPageView = "pageview"
	TriggerSession  = "session"
)

// Trigger is the subject a goal is evaluated against. Exactly one payload
// field matching Kind is set; Session additionally accompanies event and
// pageview triggers when one exists.
type Trigger struct {
	Kind     string
	Event    *models.Event
	PageView *models.PageView
	Session  *models.Session
}

// EventTrigger builds a trigger for a custom event.
func EventTrigger(event *models.Event, session *models.Session) Trigger {
	return Trigger{Kind: TriggerEvent, Event: event, Session: session}
}

// PageViewTrigger builds a trigger for a page view.
func PageViewTrigger(view *models.PageView, session *models.Session) Trigger {
	return Trigger{Kind: TriggerPageView, PageView: view, Session: session}
}

// SessionTrigger builds a trigger for session-derived goals (duration,
// pages per session).
func SessionTrigger(session *models.Session) Trigger {
	return Trigger{Kind: TriggerSession, Session: session}
}

// Subscriber receives goal-converted notifications. Subscribers run after
// the conversion row is durably created and must not call back into the
// engine.
type Subscriber interface {
	GoalConverted(ctx context.Context, goal *models.Goal, conversion *models.Conversion)
}

// Engine evaluates goals and records conversions.
type Engine struct {
	goals         repositories.GoalRepository
	conversions   repositories.ConversionRepository
	allowMultiple bool
	subscribers   []Subscriber
	logger        *logrus.Logger
}

// NewEngine creates a new matching engine. allowMultiple is the global
// de-duplication override; individual goals can also opt in.
func NewEngine(goals repositories.GoalRepository, conversions repositories.ConversionRepository, allowMultiple bool, logger *logrus.Logger) *Engine {
	return &Engine{
		goals:         goals,
		conversions:   conversions,
		allowMultiple: allowMultiple,
		logger:        logger,
	}
}

// Subscribe registers a goal-converted subscriber.
func (e *Engine) Subscribe(s Subscriber) {
	e.subscribers = append(e.subscribers, s)
}

// Matches reports whether a goal's predicate is satisfied by the trigger.
// The switch over GoalType is exhaustive; an unknown type or a malformed
// predicate configuration is logged and reported as a non-match.
func (e *Engine) Matches(goal *models.Goal, trigger Trigger) bool {
	matched, err := e.matches(goal, trigger)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"goal_id":   goal.ID,
			"goal_type": goal.Type,
		}).Warn("Goal evaluation failed, treating as non-match")
		return false
	}
	return matched
}

func (e *Engine) matches(goal *models.Goal, trigger Trigger) (bool, error) {
	switch goal.Type {
	case models.GoalTypeEvent:
		return e.matchesEvent(goal, trigger)
	case models.GoalTypePageView:
		return e.matchesPageView(goal, trigger)
	case models.GoalTypeDuration:
		if trigger.Session == nil || !goal.MinSeconds.Valid {
			return false, nil
		}
		return int64(trigger.Session.Duration) >= goal.MinSeconds.Int64, nil
	case models.GoalTypePagesPerSession:
		if trigger.Session == nil || !goal.MinPages.Valid {
			return false, nil
		}
		return int64(trigger.Session.PageCount) >= goal.MinPages.Int64, nil
	default:
		return false, fmt.Errorf("unknown goal type %q", goal.Type)
	}
}

func (e *Engine) matchesEvent(goal *models.Goal, trigger Trigger) (bool, error) {
	if trigger.Kind != TriggerEvent || trigger.Event == nil {
		return false, nil
	}
	event := trigger.Event

	if goal.EventName.Valid && event.Name != goal.EventName.String {
		return false, nil
	}
	if goal.EventCategory.Valid && event.Category != goal.EventCategory.String {
		return false, nil
	}

	if goal.Conditions.Valid {
		group, err := ParseConditions(goal.Conditions.String)
		if err != nil {
			return false, err
		}
		if group != nil {
			props, err := eventProperties(event)
			if err != nil {
				return false, err
			}
			ok, err := group.Evaluate(props)
			if err != nil || !ok {
				return false, err
			}
		}
	}

	if goal.MinValue.Valid {
		if !event.Value.Valid || event.Value.Float64 < goal.MinValue.Float64 {
			return false, nil
		}
	}

	return true, nil
}

func (e *Engine) matchesPageView(goal *models.Goal, trigger Trigger) (bool, error) {
	if trigger.Kind != TriggerPageView || trigger.PageView == nil {
		return false, nil
	}
	if !goal.PathRules.Valid {
		return false, nil
	}

	rules, err := ParsePathRules(goal.PathRules.String)
	if err != nil {
		return false, err
	}

	return MatchPath(rules, trigger.PageView.Path)
}

// CalculateValue computes a conversion's value under the goal's value
// policy. Dynamic extraction follows a property path into the triggering
// event; a non-numeric extraction yields no value.
func (e *Engine) CalculateValue(goal *models.Goal, trigger Trigger) sql.NullFloat64 {
	switch goal.ValueMode {
	case models.ValueModeFixed:
		if goal.FixedValue.Valid {
			return goal.FixedValue
		}
	case models.ValueModeDynamic:
		if trigger.Event == nil || !goal.ValuePath.Valid {
			return sql.NullFloat64{}
		}
		props, err := eventProperties(trigger.Event)
		if err != nil {
			e.logger.WithError(err).WithField("goal_id", goal.ID).
				Warn("Failed to parse event properties for dynamic value")
			return sql.NullFloat64{}
		}
		raw, present := lookupPath(props, goal.ValuePath.String)
		if !present {
			return sql.NullFloat64{}
		}
		if f, ok := toFloat(raw); ok {
			return sql.NullFloat64{Float64: f, Valid: true}
		}
	}

	return sql.NullFloat64{}
}

// RecordConversion records a conversion idempotently. Under the default
// policy the storage-level unique constraint admits at most one row per
// (goal, session), or per (goal, visitor) when no session exists; a losing
// concurrent trigger observes created == false and no notification fires.
func (e *Engine) RecordConversion(ctx context.Context, goal *models.Goal, trigger Trigger, session *models.Session, visitor *models.Visitor) (*models.Conversion, bool, error) {
	conversion := &models.Conversion{
		ID:        uuid.New().String(),
		GoalID:    goal.ID,
		SiteID:    goal.SiteID,
		VisitorID: visitor.ID,
		Value:     e.CalculateValue(goal, trigger),
		Metadata:  conversionMetadata(goal, trigger),
		CreatedAt: time.Now().UTC(),
	}
	if session != nil {
		conversion.SessionID = sql.NullString{String: session.ID, Valid: true}
	}

	switch trigger.Kind {
	case TriggerEvent:
		conversion.TriggerType = TriggerEvent
		if trigger.Event != nil {
			conversion.TriggerID = sql.NullString{String: trigger.Event.ID, Valid: true}
		}
	case TriggerPageView:
		conversion.TriggerType = TriggerPageView
		if trigger.PageView != nil {
			conversion.TriggerID = sql.NullString{String: trigger.PageView.ID, Valid: true}
		}
	default:
		conversion.TriggerType = TriggerSession
	}

	var created bool
	var err error
	if e.allowMultiple || goal.AllowMultiple {
		err = e.conversions.Create(ctx, conversion)
		created = err == nil
	} else {
		created, err = e.conversions.CreateDeduped(ctx, conversion)
	}
	if err != nil {
		return nil, false, err
	}
	if !created {
		return nil, false, nil
	}

	for _, sub := range e.subscribers {
		sub.GoalConverted(ctx, goal, conversion)
	}

	return conversion, true, nil
}

// Process evaluates every active goal for the site against the trigger and
// records conversions for the matches. Failures are logged per goal and
// never propagate: tracking success or failure must not be observable.
func (e *Engine) Process(ctx context.Context, siteID string, trigger Trigger, session *models.Session, visitor *models.Visitor) int {
	active, err := e.goals.ListActiveBySite(ctx, siteID)
	if err != nil {
		e.logger.WithError(err).WithField("site_id", siteID).
			Error("Failed to load active goals")
		return 0
	}

	recorded := 0
	for _, goal := range active {
		if !e.Matches(goal, trigger) {
			continue
		}
		if _, created, err := e.RecordConversion(ctx, goal, trigger, session, visitor); err != nil {
			e.logger.WithError(err).WithField("goal_id", goal.ID).
				Error("Failed to record conversion")
		} else if created {
			recorded++
		}
	}

	return recorded
}

func eventProperties(event *models.Event) (map[string]interface{}, error) {
	if event.Properties == "" || event.Properties == "{}" {
		return map[string]interface{}{}, nil
	}

	var props map[string]interface{}
	if err := json.Unmarshal([]byte(event.Properties), &props); err != nil {
		return nil, fmt.Errorf("malformed event properties: %w", err)
	}
	return props, nil
}

// conversionMetadata snapshots the trigger context so reporting does not
// need to re-join against mutable rows.
func conversionMetadata(goal *models.Goal, trigger Trigger) string {
	meta := map[string]interface{}{
		"goal_name": goal.Name,
		"goal_type": goal.Type,
	}
	if trigger.Event != nil {
		meta["event_name"] = trigger.Event.Name
		meta["event_category"] = trigger.Event.Category
	}
	if trigger.PageView != nil {
		meta["path"] = trigger.PageView.Path
	}
	if trigger.Session != nil {
		meta["referrer_type"] = trigger.Session.ReferrerType
		meta["entry_page"] = trigger.Session.EntryPage
	}

	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
