// Package event formats and dispatches events and status snapshots to the bus.
//
// An Emitter belongs to one monitor. MaybeEmit gates each candidate through
// the monitor's rate limiter, keyed by tag and target, then publishes it with
// the monitor's source string ("monitor.<name>") and an epoch-millisecond
// timestamp. Status publishes the flat dotted snapshot for the cycle.
//
// Dispatch is fire-and-forget: a publish error is logged and counted in
// monitor_publish_errors_total, never returned into the monitor cycle.
package event
