// Package receiver takes events and status messages off the Event Bus and
// records them in the console store.
//
// Receiver.HandleEvent assigns a UUID to events that arrive without an ID,
// stores the event, then hands it to every registered Sink (webhook
// notifier, archive). Receiver.HandleStatus stores the latest status for its
// topic. Decoding and validation happen in pkg/bus before either is called.
//
// New(st, sinks...) wires the receiver to the given store.
package receiver
