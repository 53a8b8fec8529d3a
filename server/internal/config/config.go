package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SlightlyLoony/Monitor/pkg/bus"
	"github.com/SlightlyLoony/Monitor/pkg/types"
)

// NotifyConfig selects which events are forwarded to webhooks.
type NotifyConfig struct {
	// MinLevel is the lowest event level that is delivered (default 7).
	MinLevel int `yaml:"min_level"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultEventCapacity  = 1000
	DefaultEventTTL       = 24 * time.Hour
	DefaultStatusTTL      = 10 * time.Minute
	DefaultNotifyMinLevel = 7
	DefaultBroadcastEvery = 5 * time.Second
)

// Config holds the console configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all console settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Bus is the NATS connection events and status arrive on.
	Bus bus.Config `yaml:"bus"`

	// Auth configures how the console authenticates REST and WebSocket clients.
	Auth AuthConfig `yaml:"auth"`

	// Events controls in-memory event retention.
	Events EventsConfig `yaml:"events"`

	// Status controls in-memory status retention.
	Status StatusConfig `yaml:"status"`

	// Broadcast is the WebSocket snapshot period (default 5s).
	Broadcast time.Duration `yaml:"broadcast"`

	Notify NotifyConfig `yaml:"notify"`

	Archive ArchiveConfig `yaml:"archive"`
}

// AuthConfig controls client authentication on the console.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// EventsConfig bounds the recent-events ring.
type EventsConfig struct {
	// Capacity is the maximum number of events kept (default 1000).
	Capacity int `yaml:"capacity"`

	// TTL drops events older than this (default 24h).
	TTL time.Duration `yaml:"ttl"`
}

// StatusConfig controls status retention.
type StatusConfig struct {
	// TTL is how long a topic's last status survives without an update.
	// Default: 10m.
	TTL time.Duration `yaml:"ttl"`
}

// ArchiveConfig enables the Postgres event archive.
type ArchiveConfig struct {
	// DSNEnv names the environment variable holding the connection string.
	// Empty disables archiving.
	DSNEnv string `yaml:"dsn_env"`
}

// DSN returns the archive connection string resolved from the environment.
func (a ArchiveConfig) DSN() string {
	if a.DSNEnv == "" {
		return ""
	}
	return os.Getenv(a.DSNEnv)
}

// Load reads and parses the config file at path, returning the console configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	cfg.Server.Bus = cfg.Server.Bus.WithDefaults()
	if cfg.Server.Bus.Name == "" {
		cfg.Server.Bus.Name = "monitor-console"
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:  DefaultHTTPPort,
			LogLevel:  "info",
			Broadcast: DefaultBroadcastEvery,
			Events: EventsConfig{
				Capacity: DefaultEventCapacity,
				TTL:      DefaultEventTTL,
			},
			Status: StatusConfig{
				TTL: DefaultStatusTTL,
			},
			Notify: NotifyConfig{
				MinLevel: DefaultNotifyMinLevel,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Events.Capacity <= 0 {
		return fmt.Errorf("server.events.capacity must be positive")
	}
	if s.Events.TTL < 0 {
		return fmt.Errorf("server.events.ttl must not be negative")
	}
	if s.Status.TTL < 0 {
		return fmt.Errorf("server.status.ttl must not be negative")
	}
	if s.Broadcast <= 0 {
		return fmt.Errorf("server.broadcast must be positive")
	}
	if s.Notify.MinLevel < types.MinLevel || s.Notify.MinLevel > types.MaxLevel {
		return fmt.Errorf("server.notify.min_level %d is out of range [%d, %d]",
			s.Notify.MinLevel, types.MinLevel, types.MaxLevel)
	}
	for i, w := range s.Notify.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.notify.webhooks[%d].type %q unknown: want slack|teams|http", i, w.Type)
		}
		if w.URLEnv == "" {
			return fmt.Errorf("server.notify.webhooks[%d].url_env is required", i)
		}
	}
	return nil
}
