// Package store keeps the console's in-memory view: the latest status per
// topic with TTL eviction and a bounded ring of recent events.
package store
