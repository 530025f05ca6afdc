package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openpulse/pulse-backend-go/internal/database/models"
)

// TaskTypeWebhook identifies conversion webhook dispatch tasks.
const TaskTypeWebhook = "conversion_webhook"

// WebhookPayload is the JSON body posted to a goal's webhook URL.
type WebhookPayload struct {
	URL          string    `json:"-"`
	GoalID       string    `json:"goal_id"`
	GoalName     string    `json:"goal_name"`
	SiteID       string    `json:"site_id"`
	ConversionID string    `json:"conversion_id"`
	SessionID    string    `json:"session_id,omitempty"`
	VisitorID    string    `json:"visitor_id"`
	Value        *float64  `json:"value,omitempty"`
	ConvertedAt  time.Time `json:"converted_at"`
}

// webhookTask is the persisted task payload, carrying the target URL
// alongside the body to post.
type webhookTask struct {
	URL     string         `json:"url"`
	Payload WebhookPayload `json:"payload"`
}

// WebhookEnqueuer subscribes to goal conversions and enqueues a webhook
// dispatch task for goals that configure a webhook URL.
type WebhookEnqueuer struct {
	service *Service
	logger  *logrus.Logger
}

// NewWebhookEnqueuer creates a conversion webhook subscriber.
func NewWebhookEnqueuer(service *Service, logger *logrus.Logger) *WebhookEnqueuer {
	return &WebhookEnqueuer{service: service, logger: logger}
}

// GoalConverted implements goals.Subscriber.
func (w *WebhookEnqueuer) GoalConverted(ctx context.Context, goal *models.Goal, conversion *models.Conversion) {
	if !goal.WebhookURL.Valid || goal.WebhookURL.String == "" {
		return
	}

	payload := WebhookPayload{
		GoalID:       goal.ID,
		GoalName:     goal.Name,
		SiteID:       conversion.SiteID,
		ConversionID: conversion.ID,
		VisitorID:    conversion.VisitorID,
		ConvertedAt:  conversion.CreatedAt,
	}
	if conversion.SessionID.Valid {
		payload.SessionID = conversion.SessionID.String
	}
	if conversion.Value.Valid {
		v := conversion.Value.Float64
		payload.Value = &v
	}

	task := webhookTask{URL: goal.WebhookURL.String, Payload: payload}
	if err := w.service.Enqueue(ctx, TaskTypeWebhook, task); err != nil {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"goal_id":       goal.ID,
			"conversion_id": conversion.ID,
		}).Error("Failed to enqueue conversion webhook")
	}
}

// WebhookHandler posts conversion payloads to external webhook URLs with a
// bounded timeout.
type WebhookHandler struct {
	client *http.Client
	logger *logrus.Logger
}

// NewWebhookHandler creates a webhook dispatch handler.
func NewWebhookHandler(timeout time.Duration, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Handle implements Handler.
func (h *WebhookHandler) Handle(ctx context.Context, task *models.Task) error {
	var wt webhookTask
	if err := json.Unmarshal([]byte(task.Payload), &wt); err != nil {
		return fmt.Errorf("failed to unmarshal webhook task: %w", err)
	}

	body, err := json.Marshal(wt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wt.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pulse-webhook/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	h.logger.WithFields(logrus.Fields{
		"conversion_id": wt.Payload.ConversionID,
		"status":        resp.StatusCode,
	}).Debug("Conversion webhook delivered")

	return nil
}
