// Package api implements the HTTP REST API of the event console.
//
// New(store) returns an http.Handler that serves:
//
//	GET /api/v1/health          - state from the last hour's most severe event, counts
//	GET /api/v1/events          - recent events, newest first; ?tag=, ?min_level=, ?limit=
//	GET /api/v1/status          - latest status of every live topic
//	GET /api/v1/status/{topic}  - single topic; 404 if unknown or stale
//	GET /api/v1/snapshot        - live status + the 50 most recent events + generated_at
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Exclude stale status entries
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
