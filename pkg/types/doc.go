// Package types defines the wire types shared by the agent and the event console.
// Both sides exchange them as JSON over the event bus: Event for raised alerts and
// diagnostics, Status for the per-cycle snapshot a monitor publishes.
package types
