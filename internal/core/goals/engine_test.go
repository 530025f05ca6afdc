package goals

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
	"github.com/openpulse/pulse-backend-go/internal/database/sqlite"
	"github.com/openpulse/pulse-backend-go/pkg/logger"
)

const engineTestSchema = `
CREATE TABLE goals (
    id TEXT PRIMARY KEY,
    site_id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    event_name TEXT,
    event_category TEXT,
    conditions TEXT,
    path_rules TEXT,
    min_seconds INTEGER,
    min_pages INTEGER,
    min_value REAL,
    value_mode TEXT NOT NULL DEFAULT 'none',
    fixed_value REAL,
    value_path TEXT,
    funnel_steps TEXT,
    allow_multiple BOOLEAN NOT NULL DEFAULT FALSE,
    webhook_url TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE conversions (
    id TEXT PRIMARY KEY,
    goal_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    session_id TEXT,
    visitor_id TEXT NOT NULL,
    trigger_type TEXT NOT NULL,
    trigger_id TEXT,
    value REAL,
    metadata TEXT NOT NULL DEFAULT '{}',
    deduped BOOLEAN NOT NULL DEFAULT TRUE,
    created_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX idx_conversions_goal_session
    ON conversions(goal_id, session_id) WHERE deduped = 1 AND session_id IS NOT NULL;
CREATE UNIQUE INDEX idx_conversions_goal_visitor
    ON conversions(goal_id, visitor_id) WHERE deduped = 1 AND session_id IS NULL;
`

func setupEngine(t *testing.T) (*Engine, repositories.GoalRepository, *sqlx.DB) {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(engineTestSchema)
	require.NoError(t, err)

	goals := sqlite.NewGoalRepository(db)
	conversions := sqlite.NewConversionRepository(db)
	engine := NewEngine(goals, conversions, false, logger.New("error", "text"))
	return engine, goals, db
}

func eventGoal(siteID string) *models.Goal {
	return &models.Goal{
		ID:        uuid.New().String(),
		SiteID:    siteID,
		Name:      "Signup",
		Type:      models.GoalTypeEvent,
		EventName: sql.NullString{String: "signup", Valid: true},
		ValueMode: models.ValueModeNone,
		IsActive:  true,
	}
}

func testEvent(siteID, name string) *models.Event {
	return &models.Event{
		ID:         uuid.New().String(),
		SiteID:     siteID,
		VisitorID:  "v-1",
		Name:       name,
		Category:   "conversion",
		Properties: "{}",
		CreatedAt:  time.Now().UTC(),
	}
}

func testSession(siteID string) *models.Session {
	return &models.Session{
		ID:        uuid.New().String(),
		SiteID:    siteID,
		VisitorID: "v-1",
	}
}

func testVisitor(siteID string) *models.Visitor {
	return &models.Visitor{ID: "v-1", SiteID: siteID}
}

func TestMatchesEventGoal(t *testing.T) {
	engine, _, _ := setupEngine(t)

	goal := eventGoal("site-1")
	goal.EventCategory = sql.NullString{String: "conversion", Valid: true}
	goal.Conditions = sql.NullString{String: `{"conditions":[{"property":"plan","operator":"eq","value":"premium"}]}`, Valid: true}

	event := testEvent("site-1", "signup")
	event.Properties = `{"plan":"premium"}`
	assert.True(t, engine.Matches(goal, EventTrigger(event, nil)))

	event.Properties = `{"plan":"free"}`
	assert.False(t, engine.Matches(goal, EventTrigger(event, nil)))

	other := testEvent("site-1", "purchase")
	other.Properties = `{"plan":"premium"}`
	assert.False(t, engine.Matches(goal, EventTrigger(other, nil)))

	wrongCategory := testEvent("site-1", "signup")
	wrongCategory.Category = "engagement"
	wrongCategory.Properties = `{"plan":"premium"}`
	assert.False(t, engine.Matches(goal, EventTrigger(wrongCategory, nil)))
}

func TestMatchesEventGoalMinValue(t *testing.T) {
	engine, _, _ := setupEngine(t)

	goal := eventGoal("site-1")
	goal.EventName = sql.NullString{String: "purchase", Valid: true}
	goal.MinValue = sql.NullFloat64{Float64: 50, Valid: true}

	event := testEvent("site-1", "purchase")
	assert.False(t, engine.Matches(goal, EventTrigger(event, nil)), "event without value")

	event.Value = sql.NullFloat64{Float64: 49.99, Valid: true}
	assert.False(t, engine.Matches(goal, EventTrigger(event, nil)))

	event.Value = sql.NullFloat64{Float64: 50, Valid: true}
	assert.True(t, engine.Matches(goal, EventTrigger(event, nil)))
}

func TestMatchesPageViewGoal(t *testing.T) {
	engine, _, _ := setupEngine(t)

	goal := &models.Goal{
		ID:        uuid.New().String(),
		SiteID:    "site-1",
		Name:      "Pricing visit",
		Type:      models.GoalTypePageView,
		PathRules: sql.NullString{String: `[{"kind":"exact","value":"/pricing"}]`, Valid: true},
		ValueMode: models.ValueModeNone,
		IsActive:  true,
	}

	view := &models.PageView{ID: uuid.New().String(), SiteID: "site-1", Path: "/pricing"}
	assert.True(t, engine.Matches(goal, PageViewTrigger(view, nil)))

	view.Path = "/pricing/"
	assert.False(t, engine.Matches(goal, PageViewTrigger(view, nil)))

	// Page view goals never match event triggers.
	assert.False(t, engine.Matches(goal, EventTrigger(testEvent("site-1", "signup"), nil)))
}

func TestMatchesSessionGoals(t *testing.T) {
	engine, _, _ := setupEngine(t)

	duration := &models.Goal{
		ID: uuid.New().String(), SiteID: "site-1", Name: "Engaged",
		Type:       models.GoalTypeDuration,
		MinSeconds: sql.NullInt64{Int64: 60, Valid: true},
		ValueMode:  models.ValueModeNone, IsActive: true,
	}
	pages := &models.Goal{
		ID: uuid.New().String(), SiteID: "site-1", Name: "Deep read",
		Type:      models.GoalTypePagesPerSession,
		MinPages:  sql.NullInt64{Int64: 3, Valid: true},
		ValueMode: models.ValueModeNone, IsActive: true,
	}

	session := testSession("site-1")
	session.Duration = 59
	session.PageCount = 2
	assert.False(t, engine.Matches(duration, SessionTrigger(session)))
	assert.False(t, engine.Matches(pages, SessionTrigger(session)))

	session.Duration = 60
	session.PageCount = 3
	assert.True(t, engine.Matches(duration, SessionTrigger(session)))
	assert.True(t, engine.Matches(pages, SessionTrigger(session)))

	assert.False(t, engine.Matches(duration, SessionTrigger(nil)))
}

func TestMatchesUnknownGoalType(t *testing.T) {
	engine, _, _ := setupEngine(t)

	goal := eventGoal("site-1")
	goal.Type = models.GoalType("funnel_stage")
	assert.False(t, engine.Matches(goal, EventTrigger(testEvent("site-1", "signup"), nil)))
}

func TestMatchesMalformedConditionsIsNonMatch(t *testing.T) {
	engine, _, _ := setupEngine(t)

	goal := eventGoal("site-1")
	goal.Conditions = sql.NullString{String: `{"conditions": [`, Valid: true}
	assert.False(t, engine.Matches(goal, EventTrigger(testEvent("site-1", "signup"), nil)))
}

func TestCalculateValue(t *testing.T) {
	engine, _, _ := setupEngine(t)

	fixed := eventGoal("site-1")
	fixed.ValueMode = models.ValueModeFixed
	fixed.FixedValue = sql.NullFloat64{Float64: 25, Valid: true}

	got := engine.CalculateValue(fixed, EventTrigger(testEvent("site-1", "signup"), nil))
	require.True(t, got.Valid)
	assert.Equal(t, float64(25), got.Float64)

	dynamic := eventGoal("site-1")
	dynamic.ValueMode = models.ValueModeDynamic
	dynamic.ValuePath = sql.NullString{String: "cart.total", Valid: true}

	event := testEvent("site-1", "purchase")
	event.Properties = `{"cart":{"total":129.5}}`
	got = engine.CalculateValue(dynamic, EventTrigger(event, nil))
	require.True(t, got.Valid)
	assert.Equal(t, 129.5, got.Float64)

	event.Properties = `{"cart":{"total":"not a number"}}`
	got = engine.CalculateValue(dynamic, EventTrigger(event, nil))
	assert.False(t, got.Valid)

	event.Properties = `{"cart":{}}`
	got = engine.CalculateValue(dynamic, EventTrigger(event, nil))
	assert.False(t, got.Valid)

	none := eventGoal("site-1")
	got = engine.CalculateValue(none, EventTrigger(event, nil))
	assert.False(t, got.Valid)
}

func TestRecordConversionDeduplicates(t *testing.T) {
	engine, goalRepo, db := setupEngine(t)
	ctx := context.Background()

	goal := eventGoal("site-1")
	require.NoError(t, goalRepo.Create(ctx, goal))

	session := testSession("site-1")
	visitor := testVisitor("site-1")
	trigger := EventTrigger(testEvent("site-1", "signup"), session)

	first, created, err := engine.RecordConversion(ctx, goal, trigger, session, visitor)
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, first)
	assert.Equal(t, session.ID, first.SessionID.String)
	assert.Equal(t, TriggerEvent, first.TriggerType)

	// A retry of the same trigger inside the same session loses to the
	// unique index and records nothing.
	second, created, err := engine.RecordConversion(ctx, goal, trigger, session, visitor)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, second)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM conversions WHERE goal_id = ?`, goal.ID))
	assert.Equal(t, 1, count)
}

func TestRecordConversionVisitorScopeWithoutSession(t *testing.T) {
	engine, goalRepo, db := setupEngine(t)
	ctx := context.Background()

	goal := eventGoal("site-1")
	require.NoError(t, goalRepo.Create(ctx, goal))

	visitor := testVisitor("site-1")
	trigger := EventTrigger(testEvent("site-1", "signup"), nil)

	_, created, err := engine.RecordConversion(ctx, goal, trigger, nil, visitor)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = engine.RecordConversion(ctx, goal, trigger, nil, visitor)
	require.NoError(t, err)
	assert.False(t, created)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM conversions WHERE goal_id = ?`, goal.ID))
	assert.Equal(t, 1, count)
}

func TestRecordConversionAllowMultiple(t *testing.T) {
	engine, goalRepo, db := setupEngine(t)
	ctx := context.Background()

	goal := eventGoal("site-1")
	goal.AllowMultiple = true
	require.NoError(t, goalRepo.Create(ctx, goal))

	session := testSession("site-1")
	visitor := testVisitor("site-1")

	for i := 0; i < 3; i++ {
		trigger := EventTrigger(testEvent("site-1", "signup"), session)
		_, created, err := engine.RecordConversion(ctx, goal, trigger, session, visitor)
		require.NoError(t, err)
		assert.True(t, created)
	}

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM conversions WHERE goal_id = ?`, goal.ID))
	assert.Equal(t, 3, count)
}

type recordingSubscriber struct {
	goals []string
}

func (s *recordingSubscriber) GoalConverted(_ context.Context, goal *models.Goal, _ *models.Conversion) {
	s.goals = append(s.goals, goal.ID)
}

func TestSubscribersFireOnlyForWinners(t *testing.T) {
	engine, goalRepo, _ := setupEngine(t)
	ctx := context.Background()

	sub := &recordingSubscriber{}
	engine.Subscribe(sub)

	goal := eventGoal("site-1")
	require.NoError(t, goalRepo.Create(ctx, goal))

	session := testSession("site-1")
	visitor := testVisitor("site-1")
	trigger := EventTrigger(testEvent("site-1", "signup"), session)

	_, _, err := engine.RecordConversion(ctx, goal, trigger, session, visitor)
	require.NoError(t, err)
	_, _, err = engine.RecordConversion(ctx, goal, trigger, session, visitor)
	require.NoError(t, err)

	assert.Equal(t, []string{goal.ID}, sub.goals)
}

func TestProcessEvaluatesActiveGoals(t *testing.T) {
	engine, goalRepo, _ := setupEngine(t)
	ctx := context.Background()

	matching := eventGoal("site-1")
	require.NoError(t, goalRepo.Create(ctx, matching))

	inactive := eventGoal("site-1")
	inactive.IsActive = false
	require.NoError(t, goalRepo.Create(ctx, inactive))

	otherSite := eventGoal("site-2")
	require.NoError(t, goalRepo.Create(ctx, otherSite))

	nonMatching := eventGoal("site-1")
	nonMatching.EventName = sql.NullString{String: "purchase", Valid: true}
	require.NoError(t, goalRepo.Create(ctx, nonMatching))

	session := testSession("site-1")
	visitor := testVisitor("site-1")
	recorded := engine.Process(ctx, "site-1", EventTrigger(testEvent("site-1", "signup"), session), session, visitor)
	assert.Equal(t, 1, recorded)

	// Replaying the same session records nothing new.
	recorded = engine.Process(ctx, "site-1", EventTrigger(testEvent("site-1", "signup"), session), session, visitor)
	assert.Equal(t, 0, recorded)
}
