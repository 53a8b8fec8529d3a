package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/SlightlyLoony/Monitor/pkg/types"
)

// Default values applied by Config.WithDefaults.
const (
	DefaultURL           = nats.DefaultURL
	DefaultEventsSubject = "events.post"
	DefaultStatusPrefix  = "status"
	reconnectWait        = 2 * time.Second
)

// Config describes how to reach the bus. It is embedded in both the agent and
// server configuration files under `bus:`.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string `yaml:"url"`

	// Name is the client connection name shown in NATS monitoring.
	Name string `yaml:"name"`

	// EventsSubject is the subject events are published to.
	EventsSubject string `yaml:"events_subject"`

	// StatusPrefix prefixes every status topic.
	StatusPrefix string `yaml:"status_prefix"`

	// TokenEnv names the environment variable holding the auth token, if any.
	TokenEnv string `yaml:"token_env"`
}

// Token returns the auth token resolved from the environment.
func (c Config) Token() string {
	if c.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.TokenEnv)
}

// WithDefaults returns c with empty fields filled in.
func (c Config) WithDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.EventsSubject == "" {
		c.EventsSubject = DefaultEventsSubject
	}
	if c.StatusPrefix == "" {
		c.StatusPrefix = DefaultStatusPrefix
	}
	return c
}

// StatusSubject returns the subject a status with the given topic is published on.
func StatusSubject(prefix, topic string) string {
	return strings.TrimSuffix(prefix, ".") + "." + topic
}

// Client publishes to and subscribes from the bus.
type Client struct {
	conn *nats.Conn
	cfg  Config
}

// Connect dials the NATS server described by cfg. The connection reconnects
// forever in the background; publishes made while disconnected are buffered
// by the NATS client.
func Connect(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("bus: disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("bus: reconnected", "url", c.ConnectedUrl())
		}),
	}
	if tok := cfg.Token(); tok != "" {
		opts = append(opts, nats.Token(tok))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: connect %q: %w", cfg.URL, err)
	}
	return &Client{conn: conn, cfg: cfg}, nil
}

// Close drains pending messages and closes the connection.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		slog.Warn("bus: drain failed", "err", err)
	}
	c.conn.Close()
}

// PublishEvent publishes ev on the events subject.
func (c *Client) PublishEvent(ctx context.Context, ev types.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(c.cfg.EventsSubject, ev)
}

// PublishStatus publishes st on its status subject.
func (c *Client) PublishStatus(ctx context.Context, st types.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st.Topic == "" {
		return fmt.Errorf("bus: status topic is required")
	}
	return c.publish(StatusSubject(c.cfg.StatusPrefix, st.Topic), st)
}

func (c *Client) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bus: encode %s: %w", subject, err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", subject, err)
	}
	return nil
}

// SubscribeEvents calls handler for every event received on the events subject.
// Messages that do not decode are logged and dropped.
func (c *Client) SubscribeEvents(handler func(types.Event)) (*nats.Subscription, error) {
	return c.conn.Subscribe(c.cfg.EventsSubject, func(msg *nats.Msg) {
		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			slog.Warn("bus: dropping undecodable event", "subject", msg.Subject, "err", err)
			return
		}
		handler(ev)
	})
}

// SubscribeStatus calls handler for every status received under the status prefix.
func (c *Client) SubscribeStatus(handler func(types.Status)) (*nats.Subscription, error) {
	prefix := strings.TrimSuffix(c.cfg.StatusPrefix, ".")
	return c.conn.Subscribe(prefix+".>", func(msg *nats.Msg) {
		st, err := DecodeStatus(msg.Data)
		if err != nil {
			slog.Warn("bus: dropping undecodable status", "subject", msg.Subject, "err", err)
			return
		}
		if st.Topic == "" {
			st.Topic = strings.TrimPrefix(msg.Subject, prefix+".")
		}
		handler(st)
	})
}

// DecodeEvent parses a JSON event and checks the fields every event must carry.
func DecodeEvent(data []byte) (types.Event, error) {
	var ev types.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return types.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Tag == "" {
		return types.Event{}, fmt.Errorf("decode event: tag is required")
	}
	if ev.Level < types.MinLevel || ev.Level > types.MaxLevel {
		return types.Event{}, fmt.Errorf("decode event: level %d out of range [%d, %d]",
			ev.Level, types.MinLevel, types.MaxLevel)
	}
	return ev, nil
}

// DecodeStatus parses a JSON status message.
func DecodeStatus(data []byte) (types.Status, error) {
	var st types.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return types.Status{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}
