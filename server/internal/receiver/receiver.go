package receiver

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/SlightlyLoony/Monitor/pkg/bus"
	"github.com/SlightlyLoony/Monitor/pkg/types"
	"github.com/SlightlyLoony/Monitor/server/internal/store"
)

// Sink consumes stored events. HandleEvent must not block.
type Sink interface {
	HandleEvent(ev types.Event)
}

// Receiver records bus traffic in the store and fans events out to sinks.
type Receiver struct {
	store *store.Store
	sinks []Sink
}

// New creates a Receiver that writes to st and forwards events to sinks.
func New(st *store.Store, sinks ...Sink) *Receiver {
	return &Receiver{store: st, sinks: sinks}
}

// Subscribe attaches the receiver to the bus. The returned subscriptions are
// released when the client is closed.
func (r *Receiver) Subscribe(c *bus.Client) ([]*nats.Subscription, error) {
	evSub, err := c.SubscribeEvents(r.HandleEvent)
	if err != nil {
		return nil, fmt.Errorf("receiver: subscribe events: %w", err)
	}
	stSub, err := c.SubscribeStatus(r.HandleStatus)
	if err != nil {
		evSub.Unsubscribe() //nolint:errcheck
		return nil, fmt.Errorf("receiver: subscribe status: %w", err)
	}
	return []*nats.Subscription{evSub, stSub}, nil
}

// HandleEvent stores ev and forwards it to every sink.
func (r *Receiver) HandleEvent(ev types.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Type == "" {
		ev.Type = ev.Tag
	}
	r.store.AddEvent(ev)

	slog.Debug("receiver: event stored",
		"id", ev.ID,
		"tag", ev.Tag,
		"source", ev.Source,
		"level", ev.Level,
	)

	for _, s := range r.sinks {
		s.HandleEvent(ev)
	}
}

// HandleStatus stores st as the latest status for its topic.
func (r *Receiver) HandleStatus(st types.Status) {
	if st.Topic == "" {
		slog.Warn("receiver: dropping status without topic")
		return
	}
	r.store.PutStatus(st)
	slog.Debug("receiver: status stored", "topic", st.Topic, "fields", len(st.Fields))
}
