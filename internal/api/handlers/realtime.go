package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openpulse/pulse-backend-go/pkg/utils"
)

// ActiveVisitors returns the number of visitors with session activity
// inside the timeout window.
func (h *Handlers) ActiveVisitors(c *gin.Context) {
	siteID := c.Param("site_id")

	count, err := h.tracking.ActiveVisitors(c.Request.Context(), siteID)
	if err != nil {
		h.log.WithError(err).Error("Failed to count active visitors")
		utils.SendError(c, http.StatusInternalServerError, "Failed to count active visitors")
		return
	}

	utils.SendSuccess(c, gin.H{
		"site_id": siteID,
		"active":  count,
	})
}
