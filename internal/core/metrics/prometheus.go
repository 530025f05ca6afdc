// Package metrics exposes Prometheus instrumentation for the tracking
// pipeline and HTTP surface.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
)

// Collector holds the Prometheus metric vectors.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	pageViewsTracked    *prometheus.CounterVec
	eventsTracked       *prometheus.CounterVec
	sessionsStarted     *prometheus.CounterVec
	sessionsFinalized   prometheus.Counter
	conversionsRecorded *prometheus.CounterVec
	trackingDropped     *prometheus.CounterVec

	tasksProcessed *prometheus.CounterVec
}

// NewCollector creates and registers the collectors under the given prefix.
func NewCollector(prefix string) *Collector {
	if prefix == "" {
		prefix = "pulse"
	}

	return &Collector{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		pageViewsTracked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_page_views_tracked_total",
				Help: "Total number of tracked page views",
			},
			[]string{"site"},
		),
		eventsTracked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_events_tracked_total",
				Help: "Total number of tracked custom events",
			},
			[]string{"site"},
		),
		sessionsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_sessions_started_total",
				Help: "Total number of sessions created",
			},
			[]string{"site"},
		),
		sessionsFinalized: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_sessions_finalized_total",
				Help: "Total number of sessions finalized by the background sweep",
			},
		),
		conversionsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_conversions_recorded_total",
				Help: "Total number of goal conversions recorded",
			},
			[]string{"site", "goal"},
		),
		trackingDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_tracking_dropped_total",
				Help: "Tracking requests that produced no tracking effect",
			},
			[]string{"reason"},
		),
		tasksProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_queue_tasks_processed_total",
				Help: "Total number of async tasks processed",
			},
			[]string{"type", "status"},
		),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPageView records one tracked page view.
func (c *Collector) RecordPageView(siteID string) {
	c.pageViewsTracked.WithLabelValues(siteID).Inc()
}

// RecordEvent records one tracked custom event.
func (c *Collector) RecordEvent(siteID string) {
	c.eventsTracked.WithLabelValues(siteID).Inc()
}

// RecordSessionStarted records one created session.
func (c *Collector) RecordSessionStarted(siteID string) {
	c.sessionsStarted.WithLabelValues(siteID).Inc()
}

// RecordSessionsFinalized records sessions ended by the background sweep.
func (c *Collector) RecordSessionsFinalized(count int) {
	c.sessionsFinalized.Add(float64(count))
}

// RecordDropped records a tracking request that was silently discarded.
func (c *Collector) RecordDropped(reason string) {
	c.trackingDropped.WithLabelValues(reason).Inc()
}

// RecordTask records one processed queue task.
func (c *Collector) RecordTask(taskType, status string) {
	c.tasksProcessed.WithLabelValues(taskType, status).Inc()
}

// GoalConverted implements goals.Subscriber.
func (c *Collector) GoalConverted(_ context.Context, goal *models.Goal, conversion *models.Conversion) {
	c.conversionsRecorded.WithLabelValues(conversion.SiteID, goal.Name).Inc()
}
