package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SlightlyLoony/Monitor/pkg/bus"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultCycleTimeout    = 30 * time.Second
	DefaultStateTTL        = 24 * time.Hour
	DefaultStatsDir        = "stats"
	DefaultMetricsAddr     = ":9464"
	DefaultFailureInterval = time.Hour
	DefaultFailureLevel    = 7
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = time.Minute
)

// Config is the agent configuration. Only the `agent:` section of the file is
// read; a `server:` section for the console may live in the same file.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// Host identifies this agent in event sources and status topics.
	// Defaults to os.Hostname().
	Host string `yaml:"host"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Bus configures the NATS connection events and status are published on.
	Bus bus.Config `yaml:"bus"`

	// StatsDir is where monitors that keep statistics persist their records.
	StatsDir string `yaml:"stats_dir"`

	// MetricsAddr is the listen address for the /metrics endpoint.
	// Set to "off" to disable.
	MetricsAddr string `yaml:"metrics_addr"`

	// CycleTimeout bounds every outbound sampling call of a cycle.
	CycleTimeout time.Duration `yaml:"cycle_timeout"`

	// StateTTL is how long condition state for a (tag, target) pair survives
	// without being observed.
	StateTTL time.Duration `yaml:"state_ttl"`

	// Monitors is the list of monitor instances to run.
	Monitors []Monitor `yaml:"monitors"`
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to Info.
func (a AgentConfig) SlogLevel() slog.Level {
	switch strings.ToLower(a.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Monitor describes one monitor instance.
type Monitor struct {
	// Name is unique across the agent; it prefixes diagnostic tags and status keys.
	Name string `yaml:"name"`

	// Type selects the factory: prometheus | json | tcp | grpc_health | tls_cert | link.
	Type string `yaml:"type"`

	// Interval is the period between cycles.
	Interval time.Duration `yaml:"interval"`

	// Params holds type-specific settings, decoded by the factory.
	Params yaml.Node `yaml:"params"`

	// Triggers are evaluated against every successful sample.
	Triggers []Trigger `yaml:"triggers"`

	// FailureInterval is the minimum spacing of sampling-failure diagnostics.
	FailureInterval time.Duration `yaml:"failure_interval"`

	// FailureLevel is the severity of sampling-failure diagnostics.
	FailureLevel *int `yaml:"failure_level"`

	// Breaker configures the circuit breaker around the monitor's source.
	Breaker BreakerConfig `yaml:"breaker"`

	// Auth configures how HTTP sources authenticate.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds TLS dial options for HTTP and gRPC sources.
	TLS TLSConfig `yaml:"tls"`
}

// DecodeParams decodes the monitor's params block into v. A missing block
// leaves v untouched.
func (m Monitor) DecodeParams(v any) error {
	if m.Params.Kind == 0 {
		return nil
	}
	if err := m.Params.Decode(v); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

// DiagnosticLevel returns FailureLevel or its default.
func (m Monitor) DiagnosticLevel() int {
	if m.FailureLevel == nil {
		return DefaultFailureLevel
	}
	return *m.FailureLevel
}

// Trigger is the configuration form of a trigger definition.
type Trigger struct {
	// Target is a single target name, a comma-separated list, or "?" for
	// every target in the current sample.
	Target string `yaml:"target"`

	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`

	// Bound, when set, is used for both Lower and Upper.
	Bound *float64 `yaml:"bound"`

	// Kind is one of: equal | unequal | in | out | below | above.
	Kind string `yaml:"kind"`

	// Field names the sampled quantity the trigger reads.
	Field string `yaml:"field"`

	// Class is value (fire while true) or transition (fire on false→true).
	Class string `yaml:"class"`

	// Tag is the event tag; Type overrides the event type (defaults to Tag).
	Tag  string `yaml:"tag"`
	Type string `yaml:"type"`

	// Subject and Message are printf templates receiving, in order: current
	// value, lower bound, upper bound, target name.
	Subject string `yaml:"subject"`
	Message string `yaml:"message"`

	// Level is the event severity, 0..9.
	Level int `yaml:"level"`

	// MinInterval suppresses repeats of the same (tag, target) event.
	MinInterval time.Duration `yaml:"min_interval"`
}

// BreakerConfig configures a source circuit breaker.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	// 0 disables the breaker.
	Failures *int `yaml:"failures"`

	// Timeout is how long the breaker stays open before a trial call.
	Timeout time.Duration `yaml:"timeout"`
}

// MaxFailures returns Failures or its default.
func (b BreakerConfig) MaxFailures() int {
	if b.Failures == nil {
		return DefaultBreakerFailures
	}
	return *b.Failures
}

// AuthConfig specifies the authentication mode for an HTTP source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header the API key is sent in (Mode == "apikey").
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv names the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-monitor TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
//
// Load validates only what is global to the agent. Per-monitor problems
// (unknown type, bad trigger) are reported when the monitor is built, so one
// broken monitor does not stop the others.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyMonitorDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	host, _ := os.Hostname()
	return &Config{
		Agent: AgentConfig{
			Host:         host,
			LogLevel:     "info",
			StatsDir:     DefaultStatsDir,
			MetricsAddr:  DefaultMetricsAddr,
			CycleTimeout: DefaultCycleTimeout,
			StateTTL:     DefaultStateTTL,
		},
	}
}

// applyMonitorDefaults fills per-monitor defaults that cannot be pre-populated
// before unmarshalling a list.
func applyMonitorDefaults(cfg *Config) {
	cfg.Agent.Bus = cfg.Agent.Bus.WithDefaults()
	if cfg.Agent.Bus.Name == "" {
		cfg.Agent.Bus.Name = "monitor-agent-" + cfg.Agent.Host
	}
	for i := range cfg.Agent.Monitors {
		m := &cfg.Agent.Monitors[i]
		if m.FailureInterval == 0 {
			m.FailureInterval = DefaultFailureInterval
		}
		if m.Breaker.Timeout == 0 {
			m.Breaker.Timeout = DefaultBreakerTimeout
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.Host == "" {
		return fmt.Errorf("agent.host is required")
	}
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent.log_level: unknown level %q", a.LogLevel)
	}
	if a.CycleTimeout <= 0 {
		return fmt.Errorf("agent.cycle_timeout must be positive")
	}
	if a.StateTTL <= 0 {
		return fmt.Errorf("agent.state_ttl must be positive")
	}
	seen := make(map[string]bool, len(a.Monitors))
	for i, m := range a.Monitors {
		if m.Name == "" {
			return fmt.Errorf("monitors[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("monitors[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}
