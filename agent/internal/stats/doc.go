// Package stats keeps long-running link statistics that survive restarts.
//
// record.go defines Record and its flat persisted form: twelve
// comma-separated positional fields, with the literal "null" marking an
// absent optional field:
//
//	onPrimaryMs,onSecondaryMs,onPrimaryPct,toSecondaryCount,
//	downPrimaryMs,downSecondaryMs,lastToSecondary|null,lastCapture|null,
//	lastRank,primaryUp,secondaryUp,identity|null
//
// store.go persists one record per file, replacing it atomically.
//
// accumulator.go applies one observation per cycle: the time since the last
// capture is charged to the active rank and to whichever link is down, the
// on-primary percentage is recomputed, edges are detected, and the record is
// flushed whether or not anything changed. After a cold start (no last
// capture) the first cycle charges nothing.
package stats
