package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/metrics"
	"github.com/SlightlyLoony/Monitor/agent/internal/ratelimit"
	"github.com/SlightlyLoony/Monitor/pkg/types"
)

// Publisher is the Event Bus as seen by a monitor. Implementations must be
// safe for concurrent use; *bus.Client is.
type Publisher interface {
	PublishEvent(ctx context.Context, ev types.Event) error
	PublishStatus(ctx context.Context, st types.Status) error
}

// Candidate is an event that may be emitted, before rate limiting.
type Candidate struct {
	Tag     string
	Type    string // defaults to Tag
	Subject string
	Message string
	Level   int
}

// Emitter gates candidates through a per-monitor rate limiter and publishes
// the survivors.
type Emitter struct {
	pub     Publisher
	limiter *ratelimit.Limiter
	monitor string
	source  string
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEmitter returns an Emitter for the named monitor. m may be nil.
func NewEmitter(pub Publisher, monitor string, m *metrics.Metrics) *Emitter {
	return &Emitter{
		pub:     pub,
		limiter: ratelimit.New(),
		monitor: monitor,
		source:  Source(monitor),
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces the clock used for event and status timestamps.
func (e *Emitter) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Source returns the event source string for a monitor name.
func Source(monitor string) string { return "monitor." + monitor }

// MaybeEmit publishes c unless key was emitted less than minInterval before
// scheduled. It reports whether the event was published.
func (e *Emitter) MaybeEmit(ctx context.Context, key string, minInterval time.Duration, scheduled time.Time, c Candidate) bool {
	if !e.limiter.Allow(key, minInterval, scheduled) {
		e.metrics.Suppressed(e.monitor, c.Tag)
		slog.Debug("event: suppressed", "monitor", e.monitor, "key", key, "tag", c.Tag)
		return false
	}

	typ := c.Type
	if typ == "" {
		typ = c.Tag
	}
	ev := types.Event{
		Tag:       c.Tag,
		Source:    e.source,
		Type:      typ,
		Subject:   c.Subject,
		Message:   c.Message,
		Level:     c.Level,
		Timestamp: e.now().UnixMilli(),
	}
	if err := e.pub.PublishEvent(ctx, ev); err != nil {
		slog.Error("event: publish failed", "monitor", e.monitor, "tag", c.Tag, "err", err)
		e.metrics.PublishFailed(e.monitor, metrics.KindEvent)
		return true
	}
	slog.Info("event: emitted", "monitor", e.monitor, "tag", c.Tag, "subject", c.Subject, "level", c.Level)
	e.metrics.Emitted(e.monitor, c.Tag)
	return true
}

// Status publishes a status snapshot on topic.
func (e *Emitter) Status(ctx context.Context, topic string, fields map[string]any) {
	st := types.Status{
		Topic:     topic,
		Fields:    fields,
		Timestamp: e.now().UnixMilli(),
	}
	if err := e.pub.PublishStatus(ctx, st); err != nil {
		slog.Error("event: status publish failed", "monitor", e.monitor, "topic", topic, "err", err)
		e.metrics.PublishFailed(e.monitor, metrics.KindStatus)
	}
}

// Prune drops expired rate-limit entries.
func (e *Emitter) Prune(now time.Time) int { return e.limiter.Prune(now) }

// Pending returns the number of live rate-limit entries.
func (e *Emitter) Pending() int { return e.limiter.Len() }
