// Package funnels computes per-step visitor counts and conversion rates
// for multi-step goals. Analysis runs over stored data, independently of
// the tracking pipeline.
package funnels

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/core/goals"
	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/internal/database/repositories"
)

// DateRange is a half-open interval [From, To).
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// StepResult reports one funnel step.
type StepResult struct {
	Index          int     `json:"index"`
	Name           string  `json:"name"`
	VisitorCount   int     `json:"visitor_count"`
	ConversionRate float64 `json:"conversion_rate"`
	DropOffRate    float64 `json:"dropoff_rate"`
	DropOffCount   int     `json:"dropoff_count"`
}

// Result reports a full funnel analysis.
type Result struct {
	GoalID      string       `json:"goal_id"`
	Range       DateRange    `json:"range"`
	Steps       []StepResult `json:"steps"`
	OverallRate float64      `json:"overall_rate"`
}

// Comparison reports the delta between two analysis ranges.
type Comparison struct {
	Current      Result    `json:"current"`
	Previous     Result    `json:"previous"`
	OverallDelta float64   `json:"overall_delta"`
	StepDeltas   []float64 `json:"step_deltas"`
}

// Bottleneck is a step ranked by drop-off.
type Bottleneck struct {
	StepIndex    int     `json:"step_index"`
	Name         string  `json:"name"`
	DropOffRate  float64 `json:"dropoff_rate"`
	DropOffCount int     `json:"dropoff_count"`
}

// Analyzer computes funnel reports.
type Analyzer struct {
	events    repositories.EventRepository
	pageViews repositories.PageViewRepository
	// ordered enables the strict sequence variant: a visitor counts toward
	// step N only if their earliest step-N match is not before their
	// earliest step-(N-1) match. The default, matching the reference
	// behavior, evaluates steps independently.
	ordered bool
	logger  *logrus.Logger
}

// NewAnalyzer creates a funnel analyzer.
func NewAnalyzer(events repositories.EventRepository, pageViews repositories.PageViewRepository, ordered bool, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		events:    events,
		pageViews: pageViews,
		ordered:   ordered,
		logger:    logger,
	}
}

// Analyze computes per-step distinct visitor counts and conversion rates
// for a funnel goal within the range. Step 1's conversion rate is defined
// as 100%; the overall rate is last-step count over first-step count.
func (a *Analyzer) Analyze(ctx context.Context, goal *models.Goal, dateRange DateRange) (*Result, error) {
	if !goal.FunnelSteps.Valid {
		return nil, fmt.Errorf("goal %s has no funnel steps", goal.ID)
	}
	steps, err := goals.ParseFunnelSteps(goal.FunnelSteps.String)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("goal %s has no funnel steps", goal.ID)
	}

	matches, err := a.stepMatches(ctx, goal.SiteID, steps, dateRange)
	if err != nil {
		return nil, err
	}
	if a.ordered {
		applyOrdering(matches)
	}

	result := &Result{GoalID: goal.ID, Range: dateRange, Steps: make([]StepResult, len(steps))}
	for i, step := range steps {
		count := len(matches[i])
		sr := StepResult{Index: i + 1, Name: step.Name, VisitorCount: count}

		if i == 0 {
			sr.ConversionRate = 100
		} else {
			prev := len(matches[i-1])
			if prev > 0 {
				sr.ConversionRate = round2(float64(count) / float64(prev) * 100)
				sr.DropOffCount = prev - count
				if sr.DropOffCount < 0 {
					// Unordered steps are independent, so a later step can
					// legitimately exceed the one before it.
					sr.DropOffCount = 0
				}
				sr.DropOffRate = round2(100 - sr.ConversionRate)
				if sr.DropOffRate < 0 {
					sr.DropOffRate = 0
				}
			}
		}

		result.Steps[i] = sr
	}

	first := len(matches[0])
	last := len(matches[len(matches)-1])
	if first > 0 {
		result.OverallRate = round2(float64(last) / float64(first) * 100)
	}

	return result, nil
}

// Compare re-runs Analyze over both ranges and reports rate deltas.
func (a *Analyzer) Compare(ctx context.Context, goal *models.Goal, current, previous DateRange) (*Comparison, error) {
	cur, err := a.Analyze(ctx, goal, current)
	if err != nil {
		return nil, err
	}
	prev, err := a.Analyze(ctx, goal, previous)
	if err != nil {
		return nil, err
	}

	comparison := &Comparison{
		Current:      *cur,
		Previous:     *prev,
		OverallDelta: round2(cur.OverallRate - prev.OverallRate),
		StepDeltas:   make([]float64, len(cur.Steps)),
	}
	for i := range cur.Steps {
		if i < len(prev.Steps) {
			comparison.StepDeltas[i] = round2(cur.Steps[i].ConversionRate - prev.Steps[i].ConversionRate)
		} else {
			comparison.StepDeltas[i] = cur.Steps[i].ConversionRate
		}
	}

	return comparison, nil
}

// Bottlenecks returns the steps after step 1 with the highest drop-off
// rates, top N.
func (a *Analyzer) Bottlenecks(ctx context.Context, goal *models.Goal, dateRange DateRange, limit int) ([]Bottleneck, error) {
	result, err := a.Analyze(ctx, goal, dateRange)
	if err != nil {
		return nil, err
	}

	bottlenecks := make([]Bottleneck, 0, len(result.Steps))
	for _, step := range result.Steps[1:] {
		bottlenecks = append(bottlenecks, Bottleneck{
			StepIndex:    step.Index,
			Name:         step.Name,
			DropOffRate:  step.DropOffRate,
			DropOffCount: step.DropOffCount,
		})
	}

	sort.SliceStable(bottlenecks, func(i, j int) bool {
		return bottlenecks[i].DropOffRate > bottlenecks[j].DropOffRate
	})

	if limit > 0 && len(bottlenecks) > limit {
		bottlenecks = bottlenecks[:limit]
	}

	return bottlenecks, nil
}

// stepMatches computes, per step, each matching visitor's earliest match
// time within the range. Steps are evaluated independently over the same
// stored data.
func (a *Analyzer) stepMatches(ctx context.Context, siteID string, steps []goals.FunnelStep, dateRange DateRange) ([]map[string]time.Time, error) {
	matches := make([]map[string]time.Time, len(steps))
	for i := range matches {
		matches[i] = make(map[string]time.Time)
	}

	needsEvents := false
	needsViews := false
	for _, step := range steps {
		switch step.Type {
		case models.GoalTypeEvent:
			needsEvents = true
		case models.GoalTypePageView:
			needsViews = true
		}
	}

	record := func(i int, visitorID string, at time.Time) {
		if existing, ok := matches[i][visitorID]; !ok || at.Before(existing) {
			matches[i][visitorID] = at
		}
	}

	if needsEvents {
		events, err := a.events.ListBySiteBetween(ctx, siteID, dateRange.From, dateRange.To)
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			for i, step := range steps {
				ok, err := step.MatchesEvent(event)
				if err != nil {
					a.logger.WithError(err).WithField("step", i+1).
						Warn("Funnel step evaluation failed, treating as non-match")
					continue
				}
				if ok {
					record(i, event.VisitorID, event.CreatedAt)
				}
			}
		}
	}

	if needsViews {
		views, err := a.pageViews.ListBySiteBetween(ctx, siteID, dateRange.From, dateRange.To)
		if err != nil {
			return nil, err
		}
		for _, view := range views {
			for i, step := range steps {
				ok, err := step.MatchesPageView(view)
				if err != nil {
					a.logger.WithError(err).WithField("step", i+1).
						Warn("Funnel step evaluation failed, treating as non-match")
					continue
				}
				if ok {
					record(i, view.VisitorID, view.CreatedAt)
				}
			}
		}
	}

	return matches, nil
}

// applyOrdering filters each step down to visitors who completed every
// earlier step no later than this one.
func applyOrdering(matches []map[string]time.Time) {
	for i := 1; i < len(matches); i++ {
		for visitorID, at := range matches[i] {
			prev, ok := matches[i-1][visitorID]
			if !ok || at.Before(prev) {
				delete(matches[i], visitorID)
			}
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
