package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoggingMiddleware logs each request with the fields the dashboards key
// on. Tracking endpoints are beacon traffic and log at debug so a busy site
// does not drown the server log; everything else logs at info.
func LoggingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if siteID := c.Param("site_id"); siteID != "" {
			fields["site_id"] = siteID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		if strings.HasPrefix(c.Request.URL.Path, "/api/v1/track/") {
			entry.Debug("HTTP request")
			return
		}
		entry.Info("HTTP request")
	}
}
