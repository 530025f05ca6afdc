package models

import (
	"database/sql"
	"time"
)

// GoalType enumerates the closed set of goal kinds. Matching switches over
// this type exhaustively; an unknown value is a configuration error and is
// treated as a non-match.
type GoalType string

const (
	GoalTypeEvent           GoalType = "event"
	GoalTypePageView        GoalType = "pageview"
	GoalTypeDuration        GoalType = "duration"
	GoalTypePagesPerSession GoalType = "pages_per_session"
)

// ValueMode enumerates how a conversion's monetary value is computed.
type ValueMode string

const (
	ValueModeNone    ValueMode = "none"
	ValueModeFixed   ValueMode = "fixed"
	ValueModeDynamic ValueMode = "dynamic"
)

// Goal represents a conversion goal. Type-specific predicate configuration
// is stored as JSON and parsed by the matching engine:
//   - event goals: Conditions holds a property condition tree
//   - pageview goals: PathRules holds an ordered first-match rule list
//   - funnel goals: FunnelSteps holds ordered step predicates
type Goal struct {
	ID            string          `json:"id" db:"id"`
	SiteID        string          `json:"site_id" db:"site_id"`
	Name          string          `json:"name" db:"name"`
	Type          GoalType        `json:"type" db:"type"`
	EventName     sql.NullString  `json:"event_name" db:"event_name"`
	EventCategory sql.NullString  `json:"event_category" db:"event_category"`
	Conditions    sql.NullString  `json:"conditions" db:"conditions"`
	PathRules     sql.NullString  `json:"path_rules" db:"path_rules"`
	MinSeconds    sql.NullInt64   `json:"min_seconds" db:"min_seconds"`
	MinPages      sql.NullInt64   `json:"min_pages" db:"min_pages"`
	MinValue      sql.NullFloat64 `json:"min_value" db:"min_value"`
	ValueMode     ValueMode       `json:"value_mode" db:"value_mode"`
	FixedValue    sql.NullFloat64 `json:"fixed_value" db:"fixed_value"`
	ValuePath     sql.NullString  `json:"value_path" db:"value_path"`
	FunnelSteps   sql.NullString  `json:"funnel_steps" db:"funnel_steps"`
	AllowMultiple bool            `json:"allow_multiple" db:"allow_multiple"`
	WebhookURL    sql.NullString  `json:"webhook_url" db:"webhook_url"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Conversion records a visitor or session satisfying a goal. Immutable.
// At most one row exists per (goal, session), or per (goal, visitor) when
// no session is attached, unless the goal allows multiples.
type Conversion struct {
	ID          string          `json:"id" db:"id"`
	GoalID      string          `json:"goal_id" db:"goal_id"`
	SiteID      string          `json:"site_id" db:"site_id"`
	SessionID   sql.NullString  `json:"session_id" db:"session_id"`
	VisitorID   string          `json:"visitor_id" db:"visitor_id"`
	TriggerType string          `json:"trigger_type" db:"trigger_type"`
	TriggerID   sql.NullString  `json:"trigger_id" db:"trigger_id"`
	Value       sql.NullFloat64 `json:"value" db:"value"`
	Metadata    string          `json:"metadata" db:"metadata"`
	Deduped     bool            `json:"deduped" db:"deduped"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
