package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openpulse/pulse-backend-go/internal/core/goals"
	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/pkg/utils"
)

// goalRequest is the admin wire format for creating and updating goals.
type goalRequest struct {
	SiteID        string           `json:"site_id" binding:"required"`
	Name          string           `json:"name" binding:"required"`
	Type          models.GoalType  `json:"type" binding:"required"`
	EventName     string           `json:"event_name"`
	EventCategory string           `json:"event_category"`
	Conditions    json.RawMessage  `json:"conditions"`
	PathRules     json.RawMessage  `json:"path_rules"`
	MinSeconds    *int64           `json:"min_seconds"`
	MinPages      *int64           `json:"min_pages"`
	MinValue      *float64         `json:"min_value"`
	ValueMode     models.ValueMode `json:"value_mode"`
	FixedValue    *float64         `json:"fixed_value"`
	ValuePath     string           `json:"value_path"`
	FunnelSteps   json.RawMessage  `json:"funnel_steps"`
	AllowMultiple bool             `json:"allow_multiple"`
	WebhookURL    string           `json:"webhook_url"`
	IsActive      *bool            `json:"is_active"`
}

// CreateGoal creates a conversion goal
func (h *Handlers) CreateGoal(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid goal payload")
		return
	}

	goal := &models.Goal{
		ID:       uuid.New().String(),
		IsActive: true,
	}
	if err := applyGoalRequest(goal, req); err != "" {
		utils.SendError(c, http.StatusBadRequest, err)
		return
	}

	if err := h.repos.Goal.Create(c.Request.Context(), goal); err != nil {
		h.log.WithError(err).Error("Failed to create goal")
		utils.SendError(c, http.StatusInternalServerError, "Failed to create goal")
		return
	}

	utils.SendCreated(c, goal)
}

// GetGoal returns one goal
func (h *Handlers) GetGoal(c *gin.Context) {
	goal, err := h.repos.Goal.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.WithError(err).Error("Failed to get goal")
		utils.SendError(c, http.StatusInternalServerError, "Failed to get goal")
		return
	}
	if goal == nil {
		utils.SendError(c, http.StatusNotFound, "Goal not found")
		return
	}
	utils.SendSuccess(c, goal)
}

// ListGoals returns all goals for a site
func (h *Handlers) ListGoals(c *gin.Context) {
	siteID := c.Query("site_id")
	if siteID == "" {
		utils.SendError(c, http.StatusBadRequest, "site_id query parameter is required")
		return
	}

	list, err := h.repos.Goal.ListBySite(c.Request.Context(), siteID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list goals")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list goals")
		return
	}

	utils.SendSuccessWithMeta(c, list, gin.H{"count": len(list)})
}

// UpdateGoal updates a goal's configuration
func (h *Handlers) UpdateGoal(c *gin.Context) {
	goal, err := h.repos.Goal.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.WithError(err).Error("Failed to get goal")
		utils.SendError(c, http.StatusInternalServerError, "Failed to update goal")
		return
	}
	if goal == nil {
		utils.SendError(c, http.StatusNotFound, "Goal not found")
		return
	}

	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid goal payload")
		return
	}
	if msg := applyGoalRequest(goal, req); msg != "" {
		utils.SendError(c, http.StatusBadRequest, msg)
		return
	}

	if err := h.repos.Goal.Update(c.Request.Context(), goal); err != nil {
		h.log.WithError(err).Error("Failed to update goal")
		utils.SendError(c, http.StatusInternalServerError, "Failed to update goal")
		return
	}

	utils.SendSuccess(c, goal)
}

// GoalStats returns the conversion totals for a goal
func (h *Handlers) GoalStats(c *gin.Context) {
	goalID := c.Param("id")

	goal, err := h.repos.Goal.GetByID(c.Request.Context(), goalID)
	if err != nil {
		h.log.WithError(err).Error("Failed to get goal")
		utils.SendError(c, http.StatusInternalServerError, "Failed to get goal stats")
		return
	}
	if goal == nil {
		utils.SendError(c, http.StatusNotFound, "Goal not found")
		return
	}

	count, err := h.repos.Conversion.CountByGoal(c.Request.Context(), goalID)
	if err != nil {
		h.log.WithError(err).Error("Failed to count conversions")
		utils.SendError(c, http.StatusInternalServerError, "Failed to get goal stats")
		return
	}

	utils.SendSuccess(c, gin.H{
		"goal_id":     goalID,
		"goal_name":   goal.Name,
		"conversions": count,
	})
}

// ListConversions returns a goal's conversions inside a date range
func (h *Handlers) ListConversions(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	list, err := h.repos.Conversion.ListByGoalBetween(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.log.WithError(err).Error("Failed to list conversions")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list conversions")
		return
	}

	utils.SendSuccessWithMeta(c, list, gin.H{"count": len(list)})
}

// applyGoalRequest copies the request onto a goal, validating the
// type-specific configuration. It returns an error message, or "" on
// success.
func applyGoalRequest(goal *models.Goal, req goalRequest) string {
	switch req.Type {
	case models.GoalTypeEvent:
		if req.EventName == "" && req.EventCategory == "" && len(req.Conditions) == 0 {
			return "event goals need an event name, category or conditions"
		}
		if len(req.Conditions) > 0 {
			if _, err := goals.ParseConditions(string(req.Conditions)); err != nil {
				return "invalid conditions: " + err.Error()
			}
		}
	case models.GoalTypePageView:
		if len(req.PathRules) == 0 {
			return "pageview goals need path rules"
		}
		if _, err := goals.ParsePathRules(string(req.PathRules)); err != nil {
			return "invalid path rules: " + err.Error()
		}
	case models.GoalTypeDuration:
		if req.MinSeconds == nil || *req.MinSeconds <= 0 {
			return "duration goals need a positive min_seconds"
		}
	case models.GoalTypePagesPerSession:
		if req.MinPages == nil || *req.MinPages <= 0 {
			return "pages_per_session goals need a positive min_pages"
		}
	default:
		return "unknown goal type"
	}

	if len(req.FunnelSteps) > 0 {
		if _, err := goals.ParseFunnelSteps(string(req.FunnelSteps)); err != nil {
			return "invalid funnel steps: " + err.Error()
		}
	}

	goal.SiteID = req.SiteID
	goal.Name = req.Name
	goal.Type = req.Type
	goal.EventName = nullString(req.EventName)
	goal.EventCategory = nullString(req.EventCategory)
	goal.Conditions = nullString(string(req.Conditions))
	goal.PathRules = nullString(string(req.PathRules))
	goal.MinSeconds = nullInt64(req.MinSeconds)
	goal.MinPages = nullInt64(req.MinPages)
	goal.MinValue = nullFloat64(req.MinValue)
	goal.ValueMode = req.ValueMode
	if goal.ValueMode == "" {
		goal.ValueMode = models.ValueModeNone
	}
	goal.FixedValue = nullFloat64(req.FixedValue)
	goal.ValuePath = nullString(req.ValuePath)
	goal.FunnelSteps = nullString(string(req.FunnelSteps))
	goal.AllowMultiple = req.AllowMultiple
	goal.WebhookURL = nullString(req.WebhookURL)
	if req.IsActive != nil {
		goal.IsActive = *req.IsActive
	}

	return ""
}

func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	const layout = "2006-01-02"

	fromStr := c.DefaultQuery("from", time.Now().UTC().AddDate(0, 0, -30).Format(layout))
	toStr := c.DefaultQuery("to", time.Now().UTC().Format(layout))

	from, err := time.Parse(layout, fromStr)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(layout, toStr)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return time.Time{}, time.Time{}, false
	}

	// Make the range inclusive of the end day
	to = to.Add(24*time.Hour - time.Nanosecond)

	if to.Before(from) {
		utils.SendError(c, http.StatusBadRequest, "to must not be before from")
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
