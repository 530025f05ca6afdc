package funnels

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
	"github.com/openpulse/pulse-backend-go/internal/database/sqlite"
	"github.com/openpulse/pulse-backend-go/pkg/logger"
)

const analyzerTestSchema = `
CREATE TABLE events (
    id TEXT PRIMARY KEY,
    site_id TEXT NOT NULL,
    session_id TEXT,
    visitor_id TEXT NOT NULL,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    properties TEXT NOT NULL DEFAULT '{}',
    value REAL,
    created_at DATETIME NOT NULL
);

CREATE TABLE page_views (
    id TEXT PRIMARY KEY,
    site_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    visitor_id TEXT NOT NULL,
    path TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    time_on_page INTEGER NOT NULL DEFAULT 0,
    scroll_depth INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);
`

type analyzerFixture struct {
	analyzer *Analyzer
	events   *sqlx.DB
	base     time.Time
}

func setupAnalyzer(t *testing.T, ordered bool) *analyzerFixture {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(analyzerTestSchema)
	require.NoError(t, err)

	analyzer := NewAnalyzer(
		sqlite.NewEventRepository(db),
		sqlite.NewPageViewRepository(db),
		ordered,
		logger.New("error", "text"),
	)

	return &analyzerFixture{
		analyzer: analyzer,
		events:   db,
		base:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *analyzerFixture) seedEvent(t *testing.T, visitorID, name string, offset time.Duration) {
	t.Helper()
	_, err := f.events.Exec(
		`INSERT INTO events (id, site_id, visitor_id, name, category, properties, created_at)
		 VALUES (?, 'site-1', ?, ?, '', '{}', ?)`,
		uuid.New().String(), visitorID, name, f.base.Add(offset),
	)
	require.NoError(t, err)
}

func (f *analyzerFixture) seedView(t *testing.T, visitorID, path string, offset time.Duration) {
	t.Helper()
	_, err := f.events.Exec(
		`INSERT INTO page_views (id, site_id, session_id, visitor_id, path, created_at)
		 VALUES (?, 'site-1', 's-1', ?, ?, ?)`,
		uuid.New().String(), visitorID, path, f.base.Add(offset),
	)
	require.NoError(t, err)
}

func (f *analyzerFixture) dayRange() DateRange {
	return DateRange{From: f.base.Add(-time.Hour), To: f.base.Add(24 * time.Hour)}
}

func checkoutFunnelGoal() *models.Goal {
	steps := `[
		{"name": "View product", "type": "pageview", "path_rules": [{"kind": "starts_with", "value": "/products/"}]},
		{"name": "Add to cart", "type": "event", "event_name": "add_to_cart"},
		{"name": "Purchase", "type": "event", "event_name": "purchase"}
	]`
	return &models.Goal{
		ID:          uuid.New().String(),
		SiteID:      "site-1",
		Name:        "Checkout",
		Type:        models.GoalTypeEvent,
		FunnelSteps: sql.NullString{String: steps, Valid: true},
		ValueMode:   models.ValueModeNone,
		IsActive:    true,
	}
}

// Three visitors reach step 1, two reach step 2, one completes. Expected
// per-step rates are 100, 66.67 and 50, with a 33.33 overall rate.
func seedCheckoutFunnel(t *testing.T, f *analyzerFixture) {
	for _, visitor := range []string{"v-a", "v-b", "v-c"} {
		f.seedView(t, visitor, "/products/widget", 0)
	}
	f.seedEvent(t, "v-a", "add_to_cart", 10*time.Minute)
	f.seedEvent(t, "v-b", "add_to_cart", 12*time.Minute)
	f.seedEvent(t, "v-a", "purchase", 20*time.Minute)
}

func TestAnalyze(t *testing.T) {
	f := setupAnalyzer(t, false)
	seedCheckoutFunnel(t, f)

	result, err := f.analyzer.Analyze(context.Background(), checkoutFunnelGoal(), f.dayRange())
	require.NoError(t, err)
	require.Len(t, result.Steps, 3)

	assert.Equal(t, 3, result.Steps[0].VisitorCount)
	assert.Equal(t, float64(100), result.Steps[0].ConversionRate)

	assert.Equal(t, 2, result.Steps[1].VisitorCount)
	assert.Equal(t, 66.67, result.Steps[1].ConversionRate)
	assert.Equal(t, 1, result.Steps[1].DropOffCount)
	assert.Equal(t, 33.33, result.Steps[1].DropOffRate)

	assert.Equal(t, 1, result.Steps[2].VisitorCount)
	assert.Equal(t, float64(50), result.Steps[2].ConversionRate)
	assert.Equal(t, 1, result.Steps[2].DropOffCount)

	assert.Equal(t, 33.33, result.OverallRate)
}

func TestAnalyzeCountsVisitorsOnce(t *testing.T) {
	f := setupAnalyzer(t, false)
	f.seedView(t, "v-a", "/products/widget", 0)
	f.seedView(t, "v-a", "/products/gadget", 5*time.Minute)
	f.seedEvent(t, "v-a", "add_to_cart", 10*time.Minute)
	f.seedEvent(t, "v-a", "purchase", 15*time.Minute)

	result, err := f.analyzer.Analyze(context.Background(), checkoutFunnelGoal(), f.dayRange())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Steps[0].VisitorCount)
	assert.Equal(t, float64(100), result.OverallRate)
}

func TestAnalyzeHonorsDateRange(t *testing.T) {
	f := setupAnalyzer(t, false)
	f.seedView(t, "v-old", "/products/widget", -48*time.Hour)
	f.seedView(t, "v-a", "/products/widget", 0)

	result, err := f.analyzer.Analyze(context.Background(), checkoutFunnelGoal(), f.dayRange())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Steps[0].VisitorCount)
}

func TestAnalyzeRejectsGoalWithoutSteps(t *testing.T) {
	f := setupAnalyzer(t, false)

	goal := checkoutFunnelGoal()
	goal.FunnelSteps = sql.NullString{}
	_, err := f.analyzer.Analyze(context.Background(), goal, f.dayRange())
	assert.Error(t, err)

	goal.FunnelSteps = sql.NullString{String: "[]", Valid: true}
	_, err = f.analyzer.Analyze(context.Background(), goal, f.dayRange())
	assert.Error(t, err)
}

// Unordered steps are independent: a purchase without an earlier add_to_cart
// still counts toward the purchase step.
func TestAnalyzeUnorderedStepsAreIndependent(t *testing.T) {
	f := setupAnalyzer(t, false)
	f.seedView(t, "v-a", "/products/widget", 0)
	f.seedEvent(t, "v-b", "purchase", 5*time.Minute)

	result, err := f.analyzer.Analyze(context.Background(), checkoutFunnelGoal(), f.dayRange())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Steps[0].VisitorCount)
	assert.Equal(t, 0, result.Steps[1].VisitorCount)
	assert.Equal(t, 1, result.Steps[2].VisitorCount)
}

func TestAnalyzeOrderedFiltersOutOfSequence(t *testing.T) {
	f := setupAnalyzer(t, true)

	// v-a follows the sequence; v-b purchases before ever adding to cart.
	f.seedView(t, "v-a", "/products/widget", 0)
	f.seedEvent(t, "v-a", "add_to_cart", 10*time.Minute)
	f.seedEvent(t, "v-a", "purchase", 20*time.Minute)

	f.seedView(t, "v-b", "/products/widget", 0)
	f.seedEvent(t, "v-b", "purchase", 5*time.Minute)
	f.seedEvent(t, "v-b", "add_to_cart", 10*time.Minute)

	result, err := f.analyzer.Analyze(context.Background(), checkoutFunnelGoal(), f.dayRange())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Steps[0].VisitorCount)
	assert.Equal(t, 2, result.Steps[1].VisitorCount)
	assert.Equal(t, 1, result.Steps[2].VisitorCount)
	assert.Equal(t, float64(50), result.OverallRate)
}

func TestCompare(t *testing.T) {
	f := setupAnalyzer(t, false)
	seedCheckoutFunnel(t, f)

	// Previous period: two visitors viewed, neither converted.
	f.seedView(t, "v-x", "/products/widget", -30*time.Hour)
	f.seedView(t, "v-y", "/products/widget", -29*time.Hour)

	current := f.dayRange()
	previous := DateRange{From: f.base.Add(-48 * time.Hour), To: current.From}

	comparison, err := f.analyzer.Compare(context.Background(), checkoutFunnelGoal(), current, previous)
	require.NoError(t, err)

	assert.Equal(t, 33.33, comparison.Current.OverallRate)
	assert.Equal(t, float64(0), comparison.Previous.OverallRate)
	assert.Equal(t, 33.33, comparison.OverallDelta)

	require.Len(t, comparison.StepDeltas, 3)
	assert.Equal(t, float64(0), comparison.StepDeltas[0])
	assert.Equal(t, 66.67, comparison.StepDeltas[1])
}

func TestBottlenecks(t *testing.T) {
	f := setupAnalyzer(t, false)
	seedCheckoutFunnel(t, f)

	bottlenecks, err := f.analyzer.Bottlenecks(context.Background(), checkoutFunnelGoal(), f.dayRange(), 3)
	require.NoError(t, err)
	require.Len(t, bottlenecks, 2)

	// Step 3 loses 50% of its entrants, step 2 only 33.33%.
	assert.Equal(t, 3, bottlenecks[0].StepIndex)
	assert.Equal(t, float64(50), bottlenecks[0].DropOffRate)
	assert.Equal(t, 2, bottlenecks[1].StepIndex)
	assert.Equal(t, 33.33, bottlenecks[1].DropOffRate)

	limited, err := f.analyzer.Bottlenecks(context.Background(), checkoutFunnelGoal(), f.dayRange(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 3, limited[0].StepIndex)
}
