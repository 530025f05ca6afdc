package models

import (
	"database/sql"
	"time"
)

// Site represents a tracked website (tenant). Settings CRUD lives in the
// dashboard layer; the engine only reads site rows for scoping.
type Site struct {
	ID        string    `json:"id" db:"id"`
	Domain    string    `json:"domain" db:"domain"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Visitor represents an anonymous visitor recognized across requests by an
// explicit client ID or a device fingerprint. Unique per (site, fingerprint)
// when a fingerprint is present.
type Visitor struct {
	ID             string         `json:"id" db:"id"`
	SiteID         string         `json:"site_id" db:"site_id"`
	Fingerprint    sql.NullString `json:"fingerprint" db:"fingerprint"`
	AnonymizedIP   string         `json:"anonymized_ip" db:"anonymized_ip"`
	UserAgent      string         `json:"user_agent" db:"user_agent"`
	DeviceType     string         `json:"device_type" db:"device_type"`
	Browser        string         `json:"browser" db:"browser"`
	BrowserVersion string         `json:"browser_version" db:"browser_version"`
	OS             string         `json:"os" db:"os"`
	OSVersion      string         `json:"os_version" db:"os_version"`
	Language       string         `json:"language" db:"language"`
	Country        sql.NullString `json:"country" db:"country"`
	Region         sql.NullString `json:"region" db:"region"`
	City           sql.NullString `json:"city" db:"city"`
	FirstSeenAt    time.Time      `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt     time.Time      `json:"last_seen_at" db:"last_seen_at"`
	SessionCount   int            `json:"session_count" db:"session_count"`
	PageViewCount  int            `json:"page_view_count" db:"page_view_count"`
	EventCount     int            `json:"event_count" db:"event_count"`
}

// Session represents one visit. At most one active session exists per
// (visitor, site): active means not ended and last activity within the
// configured timeout window.
type Session struct {
	ID             string         `json:"id" db:"id"`
	SiteID         string         `json:"site_id" db:"site_id"`
	VisitorID      string         `json:"visitor_id" db:"visitor_id"`
	StartedAt      time.Time      `json:"started_at" db:"started_at"`
	LastActivityAt time.Time      `json:"last_activity_at" db:"last_activity_at"`
	EndedAt        sql.NullTime   `json:"ended_at" db:"ended_at"`
	Duration       int            `json:"duration" db:"duration"`
	EntryPage      string         `json:"entry_page" db:"entry_page"`
	EntryTitle     string         `json:"entry_title" db:"entry_title"`
	ExitPage       string         `json:"exit_page" db:"exit_page"`
	PageCount      int            `json:"page_count" db:"page_count"`
	IsBounce       bool           `json:"is_bounce" db:"is_bounce"`
	Referrer       string         `json:"referrer" db:"referrer"`
	ReferrerType   string         `json:"referrer_type" db:"referrer_type"`
	UTMSource      sql.NullString `json:"utm_source" db:"utm_source"`
	UTMMedium      sql.NullString `json:"utm_medium" db:"utm_medium"`
	UTMCampaign    sql.NullString `json:"utm_campaign" db:"utm_campaign"`
	UTMTerm        sql.NullString `json:"utm_term" db:"utm_term"`
	UTMContent     sql.NullString `json:"utm_content" db:"utm_content"`
}

// PageView represents a single page load within a session. Immutable once
// the session ends, except for in-session engagement updates.
type PageView struct {
	ID          string    `json:"id" db:"id"`
	SiteID      string    `json:"site_id" db:"site_id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	VisitorID   string    `json:"visitor_id" db:"visitor_id"`
	Path        string    `json:"path" db:"path"`
	Title       string    `json:"title" db:"title"`
	TimeOnPage  int       `json:"time_on_page" db:"time_on_page"`
	ScrollDepth int       `json:"scroll_depth" db:"scroll_depth"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Event represents a custom tracked event. Immutable after creation.
// Properties is a JSON object serialized as text.
type Event struct {
	ID         string          `json:"id" db:"id"`
	SiteID     string          `json:"site_id" db:"site_id"`
	SessionID  sql.NullString  `json:"session_id" db:"session_id"`
	VisitorID  string          `json:"visitor_id" db:"visitor_id"`
	Name       string          `json:"name" db:"name"`
	Category   string          `json:"category" db:"category"`
	Properties string          `json:"properties" db:"properties"`
	Value      sql.NullFloat64 `json:"value" db:"value"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
