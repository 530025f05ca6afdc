package websocket

import (
	"encoding/json"
	"time"
)

// Message types for WebSocket communication
const (
	MessageTypePageViewTracked    = "pageview_tracked"
	MessageTypeEventTracked       = "event_tracked"
	MessageTypeSessionStarted     = "session_started"
	MessageTypeConversionRecorded = "conversion_recorded"
	MessageTypeVisitorCount       = "visitor_count"

	MessageTypeConnection = "connection"
	MessageTypeHeartbeat  = "heartbeat"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	SiteID    string                 `json:"site_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	m.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(m)
	return data
}

// PageViewTrackedMessage creates a message for a tracked page view
func PageViewTrackedMessage(siteID, path string, visitorCount int) Message {
	return Message{
		Type:   MessageTypePageViewTracked,
		SiteID: siteID,
		Data: map[string]interface{}{
			"path":          path,
			"visitor_count": visitorCount,
		},
	}
}

// EventTrackedMessage creates a message for a tracked custom event
func EventTrackedMessage(siteID, name, category string) Message {
	return Message{
		Type:   MessageTypeEventTracked,
		SiteID: siteID,
		Data: map[string]interface{}{
			"name":     name,
			"category": category,
		},
	}
}

// SessionStartedMessage creates a message for a newly created session
func SessionStartedMessage(siteID, sessionID, referrerType string) Message {
	return Message{
		Type:   MessageTypeSessionStarted,
		SiteID: siteID,
		Data: map[string]interface{}{
			"session_id":    sessionID,
			"referrer_type": referrerType,
		},
	}
}

// ConversionRecordedMessage creates a message for a recorded goal conversion
func ConversionRecordedMessage(siteID, goalID, goalName string, value *float64) Message {
	data := map[string]interface{}{
		"goal_id":   goalID,
		"goal_name": goalName,
	}
	if value != nil {
		data["value"] = *value
	}
	return Message{
		Type:   MessageTypeConversionRecorded,
		SiteID: siteID,
		Data:   data,
	}
}

// VisitorCountMessage creates a message with the current active visitor count
func VisitorCountMessage(siteID string, count int) Message {
	return Message{
		Type:   MessageTypeVisitorCount,
		SiteID: siteID,
		Data: map[string]interface{}{
			"count": count,
		},
	}
}
