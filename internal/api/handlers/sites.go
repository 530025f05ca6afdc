package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
	"github.com/openpulse/pulse-backend-go/pkg/utils"
)

type siteRequest struct {
	Domain string `json:"domain" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

// CreateSite registers a site for tracking
func (h *Handlers) CreateSite(c *gin.Context) {
	var req siteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid site payload")
		return
	}

	existing, err := h.repos.Site.GetByDomain(c.Request.Context(), req.Domain)
	if err != nil {
		h.log.WithError(err).Error("Failed to check site domain")
		utils.SendError(c, http.StatusInternalServerError, "Failed to create site")
		return
	}
	if existing != nil {
		utils.SendError(c, http.StatusConflict, "A site with this domain already exists")
		return
	}

	site := &models.Site{
		ID:       uuid.New().String(),
		Domain:   req.Domain,
		Name:     req.Name,
		IsActive: true,
	}

	if err := h.repos.Site.Create(c.Request.Context(), site); err != nil {
		h.log.WithError(err).Error("Failed to create site")
		utils.SendError(c, http.StatusInternalServerError, "Failed to create site")
		return
	}

	utils.SendCreated(c, site)
}

// GetSite returns one site
func (h *Handlers) GetSite(c *gin.Context) {
	site, err := h.repos.Site.GetByID(c.Request.Context(), c.Param("site_id"))
	if err != nil {
		h.log.WithError(err).Error("Failed to get site")
		utils.SendError(c, http.StatusInternalServerError, "Failed to get site")
		return
	}
	if site == nil {
		utils.SendError(c, http.StatusNotFound, "Site not found")
		return
	}
	utils.SendSuccess(c, site)
}
