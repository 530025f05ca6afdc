package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/openpulse/pulse-backend-go/pkg/utils"
)

// Health returns the health status of the service
func (h *Handlers) Health(c *gin.Context) {
	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "pulse-backend-go",
		"version":   "1.0.0",
	}

	if err := h.repos.Ping(c.Request.Context()); err != nil {
		health["status"] = "degraded"
		health["database"] = "unreachable"
	} else {
		health["database"] = "ok"
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		health["memory_used_percent"] = memInfo.UsedPercent
	}
	if hostInfo, err := host.Info(); err == nil {
		health["uptime_seconds"] = hostInfo.Uptime
	}

	health["websocket_clients"] = h.wsHub.GetClientCount()

	utils.SendSuccess(c, health)
}
