package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/openpulse/pulse-backend-go/pkg/utils"
)

// ValidateToken reflects the claims extracted by the auth middleware. It
// lets dashboards check a stored token without hitting a data endpoint.
func (h *Handlers) ValidateToken(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"valid":    true,
		"user_id":  c.GetString("user_id"),
		"username": c.GetString("username"),
	})
}
