// Package handlers contains the HTTP handlers for the tracking and
// reporting API.
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/config"
	"github.com/openpulse/pulse-backend-go/internal/core/funnels"
	"github.com/openpulse/pulse-backend-go/internal/core/tracking"
	"github.com/openpulse/pulse-backend-go/internal/database"
	"github.com/openpulse/pulse-backend-go/internal/websocket"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	cfg      *config.Config
	repos    *database.Repositories
	log      *logrus.Logger
	wsHub    *websocket.Hub
	tracking *tracking.Service
	funnels  *funnels.Analyzer
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, repos *database.Repositories, logger *logrus.Logger, wsHub *websocket.Hub, trackingService *tracking.Service, funnelAnalyzer *funnels.Analyzer) *Handlers {
	return &Handlers{
		cfg:      cfg,
		repos:    repos,
		log:      logger,
		wsHub:    wsHub,
		tracking: trackingService,
		funnels:  funnelAnalyzer,
	}
}
