package goals

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
)

// FunnelStep is one ordered stage of a multi-step goal. A step predicate is
// either event-typed or pageview-typed, mirroring the corresponding goal
// predicates.
type FunnelStep struct {
	Name          string          `json:"name"`
	Type          models.GoalType `json:"type"`
	EventName     string          `json:"event_name,omitempty"`
	EventCategory string          `json:"event_category,omitempty"`
	Conditions    *ConditionGroup `json:"conditions,omitempty"`
	PathRules     []PathRule      `json:"path_rules,omitempty"`
}

// ParseFunnelSteps decodes a goal's ordered funnel step list.
func ParseFunnelSteps(raw string) ([]FunnelStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}

	var steps []FunnelStep
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, fmt.Errorf("malformed funnel steps: %w", err)
	}
	return steps, nil
}

// MatchesEvent reports whether an event satisfies an event-typed step.
func (s FunnelStep) MatchesEvent(event *models.Event) (bool, error) {
	if s.Type != models.GoalTypeEvent {
		return false, nil
	}
	if s.EventName != "" && event.Name != s.EventName {
		return false, nil
	}
	if s.EventCategory != "" && event.Category != s.EventCategory {
		return false, nil
	}
	if s.Conditions != nil {
		props, err := eventProperties(event)
		if err != nil {
			return false, err
		}
		return s.Conditions.Evaluate(props)
	}
	return true, nil
}

// MatchesPageView reports whether a page view satisfies a pageview-typed step.
func (s FunnelStep) MatchesPageView(view *models.PageView) (bool, error) {
	if s.Type != models.GoalTypePageView {
		return false, nil
	}
	return MatchPath(s.PathRules, view.Path)
}
