package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openpulse/pulse-backend-go/internal/core/sessions"
	"github.com/openpulse/pulse-backend-go/internal/core/tracking"
	"github.com/openpulse/pulse-backend-go/internal/core/visitors"
	"github.com/openpulse/pulse-backend-go/pkg/errors"
	"github.com/openpulse/pulse-backend-go/pkg/utils"
)

// pageViewRequest is the wire format of the tracking script's page view call.
type pageViewRequest struct {
	SiteID           string `json:"site_id" binding:"required"`
	SessionToken     string `json:"session_token"`
	VisitorID        string `json:"visitor_id"`
	Path             string `json:"path" binding:"required"`
	Title            string `json:"title"`
	Referrer         string `json:"referrer"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	UTMSource        string `json:"utm_source"`
	UTMMedium        string `json:"utm_medium"`
	UTMCampaign      string `json:"utm_campaign"`
	UTMTerm          string `json:"utm_term"`
	UTMContent       string `json:"utm_content"`
}

type eventRequest struct {
	SiteID           string                 `json:"site_id" binding:"required"`
	SessionToken     string                 `json:"session_token"`
	VisitorID        string                 `json:"visitor_id"`
	Name             string                 `json:"name" binding:"required"`
	Category         string                 `json:"category"`
	Properties       map[string]interface{} `json:"properties"`
	Value            *float64               `json:"value"`
	ScreenResolution string                 `json:"screen_resolution"`
	Timezone         string                 `json:"timezone"`
	Language         string                 `json:"language"`
	Referrer         string                 `json:"referrer"`
	UTMSource        string                 `json:"utm_source"`
	UTMMedium        string                 `json:"utm_medium"`
}

type heartbeatRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
	PageViewID   string `json:"page_view_id"`
	TimeOnPage   int    `json:"time_on_page"`
	ScrollDepth  int    `json:"scroll_depth"`
}

type endSessionRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
	ExitPage     string `json:"exit_page"`
	TimeOnPage   int    `json:"time_on_page"`
	ScrollDepth  int    `json:"scroll_depth"`
}

// TrackPageView ingests a page view
func (h *Handlers) TrackPageView(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid page view payload")
		return
	}

	result, err := h.tracking.TrackPageView(c.Request.Context(), tracking.PageViewInput{
		SiteID:       req.SiteID,
		SessionToken: req.SessionToken,
		Path:         req.Path,
		Title:        req.Title,
		Signals: visitors.Signals{
			VisitorID:        req.VisitorID,
			UserAgent:        c.Request.UserAgent(),
			ScreenResolution: req.ScreenResolution,
			Timezone:         req.Timezone,
			Language:         req.Language,
			IP:               c.ClientIP(),
		},
		Attributes: sessions.Attributes{
			Referrer:    req.Referrer,
			UTMSource:   req.UTMSource,
			UTMMedium:   req.UTMMedium,
			UTMCampaign: req.UTMCampaign,
			UTMTerm:     req.UTMTerm,
			UTMContent:  req.UTMContent,
		},
		DoNotTrack: doNotTrack(c),
	})
	if err != nil {
		h.trackError(c, err, "Failed to track page view")
		return
	}

	utils.SendAccepted(c, result)
}

// TrackEvent ingests a custom event
func (h *Handlers) TrackEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid event payload")
		return
	}

	result, err := h.tracking.TrackEvent(c.Request.Context(), tracking.EventInput{
		SiteID:       req.SiteID,
		SessionToken: req.SessionToken,
		Name:         req.Name,
		Category:     req.Category,
		Properties:   req.Properties,
		Value:        req.Value,
		Signals: visitors.Signals{
			VisitorID:        req.VisitorID,
			UserAgent:        c.Request.UserAgent(),
			ScreenResolution: req.ScreenResolution,
			Timezone:         req.Timezone,
			Language:         req.Language,
			IP:               c.ClientIP(),
		},
		Attributes: sessions.Attributes{
			Referrer:  req.Referrer,
			UTMSource: req.UTMSource,
			UTMMedium: req.UTMMedium,
		},
		DoNotTrack: doNotTrack(c),
	})
	if err != nil {
		h.trackError(c, err, "Failed to track event")
		return
	}

	utils.SendAccepted(c, result)
}

// Heartbeat extends a session and folds in engagement updates. A missing or
// expired session is not an error: the client simply starts a new session
// on its next page view.
func (h *Handlers) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid heartbeat payload")
		return
	}

	extended, err := h.tracking.Heartbeat(c.Request.Context(), req.SessionToken, req.PageViewID, req.TimeOnPage, req.ScrollDepth)
	if err != nil {
		h.trackError(c, err, "Failed to process heartbeat")
		return
	}

	utils.SendAccepted(c, gin.H{"extended": extended})
}

// EndSession finalizes a session explicitly, usually from a pagehide beacon
func (h *Handlers) EndSession(c *gin.Context) {
	var req endSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid end session payload")
		return
	}

	ended, err := h.tracking.EndSession(c.Request.Context(), req.SessionToken, sessions.EndData{
		ExitPage:    req.ExitPage,
		TimeOnPage:  req.TimeOnPage,
		ScrollDepth: req.ScrollDepth,
	})
	if err != nil {
		h.trackError(c, err, "Failed to end session")
		return
	}

	utils.SendAccepted(c, gin.H{"ended": ended})
}

func (h *Handlers) trackError(c *gin.Context, err error, message string) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		utils.SendError(c, appErr.Code, appErr.Message)
		return
	}
	h.log.WithError(err).Error(message)
	utils.SendError(c, http.StatusInternalServerError, message)
}

func doNotTrack(c *gin.Context) bool {
	return c.GetHeader("DNT") == "1" || c.GetHeader("Sec-GPC") == "1"
}
