package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openpulse/pulse-backend-go/internal/core/funnels"
	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/pkg/utils"
)

// AnalyzeFunnel computes step-by-step funnel results for a goal
func (h *Handlers) AnalyzeFunnel(c *gin.Context) {
	goal, ok := h.funnelGoal(c)
	if !ok {
		return
	}

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	result, err := h.funnels.Analyze(c.Request.Context(), goal, funnels.DateRange{From: from, To: to})
	if err != nil {
		h.log.WithError(err).Error("Failed to analyze funnel")
		utils.SendError(c, http.StatusInternalServerError, "Failed to analyze funnel")
		return
	}

	utils.SendSuccess(c, result)
}

// CompareFunnel compares the funnel against the immediately preceding
// period of the same length.
func (h *Handlers) CompareFunnel(c *gin.Context) {
	goal, ok := h.funnelGoal(c)
	if !ok {
		return
	}

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	length := to.Sub(from)
	current := funnels.DateRange{From: from, To: to}
	previous := funnels.DateRange{From: from.Add(-length), To: from}

	comparison, err := h.funnels.Compare(c.Request.Context(), goal, current, previous)
	if err != nil {
		h.log.WithError(err).Error("Failed to compare funnel")
		utils.SendError(c, http.StatusInternalServerError, "Failed to compare funnel")
		return
	}

	utils.SendSuccess(c, comparison)
}

// FunnelBottlenecks returns the steps with the worst drop-off
func (h *Handlers) FunnelBottlenecks(c *gin.Context) {
	goal, ok := h.funnelGoal(c)
	if !ok {
		return
	}

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "3"))
	if err != nil || limit <= 0 {
		utils.SendError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	bottlenecks, err := h.funnels.Bottlenecks(c.Request.Context(), goal, funnels.DateRange{From: from, To: to}, limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to compute funnel bottlenecks")
		utils.SendError(c, http.StatusInternalServerError, "Failed to compute funnel bottlenecks")
		return
	}

	utils.SendSuccess(c, bottlenecks)
}

func (h *Handlers) funnelGoal(c *gin.Context) (*models.Goal, bool) {
	g, err := h.repos.Goal.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.WithError(err).Error("Failed to get goal")
		utils.SendError(c, http.StatusInternalServerError, "Failed to get goal")
		return nil, false
	}
	if g == nil {
		utils.SendError(c, http.StatusNotFound, "Goal not found")
		return nil, false
	}
	if !g.FunnelSteps.Valid || g.FunnelSteps.String == "" {
		utils.SendError(c, http.StatusBadRequest, "Goal has no funnel steps configured")
		return nil, false
	}
	return g, true
}
