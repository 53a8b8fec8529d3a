// Package ws streams the event console to WebSocket subscribers.
//
// A subscriber gets the console snapshot as soon as it connects and again on
// every broadcast tick. Events are pushed as the receiver hands them over
// (Hub is a receiver.Sink); the query parameters tag and min_level narrow
// which events a subscriber is sent. A min_level outside 0..9 is rejected
// with 400 before the upgrade.
//
// Frames:
//
//	{"event": "snapshot", "data": { /* GET /api/v1/snapshot body */ }}
//	{"event": "event",    "data": { /* one event */ }}
//
// A subscriber that falls queueDepth frames behind is disconnected. Every
// origin is accepted; restrict origins at the reverse proxy. The server mounts
// the hub at /ws/stream.
package ws
