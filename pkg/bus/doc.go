// Package bus is the event bus client shared by the agent and the console.
//
// The transport is NATS. Events are published as JSON on a single subject
// (default "events.post"); status snapshots on "<status_prefix>.<topic>"
// (default prefix "status"). Publishing is fire-and-forget: nats.Conn buffers
// the message and the call returns without waiting for any acknowledgement.
// A Client is safe for concurrent use by any number of monitors.
package bus
