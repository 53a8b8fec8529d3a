package api

import "github.com/SlightlyLoony/Monitor/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is derived from the most severe event of the last hour:
	// critical (level 9), degraded (6..8), healthy, or unknown when no
	// monitor has reported.
	State         string `json:"state"`
	TopicCount    int    `json:"topic_count"`
	EventCount    int    `json:"event_count"`
	RecentEvents  int    `json:"recent_events"`
	MaxRecentLvl  int    `json:"max_recent_level"`
	LastEventTime string `json:"last_event_time,omitempty"` // RFC3339
}

// StatusResponse is one topic in GET /api/v1/status or GET /api/v1/status/{topic}.
type StatusResponse struct {
	Topic     string         `json:"topic"`
	Fields    map[string]any `json:"fields"`
	Timestamp string         `json:"timestamp"` // RFC3339, as published
	LastSeen  string         `json:"last_seen"` // RFC3339, as received
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the WebSocket
// broadcast.
type SnapshotResponse struct {
	Status      []StatusResponse `json:"status"`
	Events      []types.Event    `json:"events"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
