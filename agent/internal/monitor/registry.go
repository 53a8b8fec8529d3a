package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
	"github.com/SlightlyLoony/Monitor/agent/internal/source"
)

// Monitor is one independently scheduled monitor instance.
type Monitor interface {
	Name() string
	Interval() time.Duration

	// Run performs one cycle. scheduled is the cycle's boundary time.
	Run(ctx context.Context, scheduled time.Time)
}

// Factory builds a monitor of one type.
type Factory func(env *Env, cfg config.Monitor) (Monitor, error)

// Registry maps monitor type names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for typ.
func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build creates the monitor described by cfg. Every failure is a *ConfigError.
func (r *Registry) Build(env *Env, cfg config.Monitor) (Monitor, error) {
	fail := func(err error) (Monitor, error) {
		var ce *ConfigError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &ConfigError{Monitor: cfg.Name, Err: err}
	}

	if cfg.Name == "" {
		return fail(fmt.Errorf("name is required"))
	}
	if cfg.Interval <= 0 {
		return fail(fmt.Errorf("interval must be positive"))
	}
	f, ok := r.factories[cfg.Type]
	if !ok {
		return fail(fmt.Errorf("unknown type %q (known: %v)", cfg.Type, r.Types()))
	}
	m, err := f(env, cfg)
	if err != nil {
		return fail(err)
	}
	return m, nil
}

// DefaultRegistry returns a Registry with every built-in monitor type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("prometheus", sourceFactory(func(_ *Env, m config.Monitor) (source.Source, error) {
		s, err := source.NewPrometheus(m)
		if err != nil {
			return nil, err
		}
		return s, nil
	}))
	r.Register("json", sourceFactory(func(_ *Env, m config.Monitor) (source.Source, error) {
		s, err := source.NewJSON(m)
		if err != nil {
			return nil, err
		}
		return s, nil
	}))
	r.Register("tcp", sourceFactory(func(_ *Env, m config.Monitor) (source.Source, error) {
		s, err := source.NewTCP(m)
		if err != nil {
			return nil, err
		}
		return s, nil
	}))
	r.Register("grpc_health", sourceFactory(func(_ *Env, m config.Monitor) (source.Source, error) {
		s, err := source.NewGRPCHealth(m)
		if err != nil {
			return nil, err
		}
		return s, nil
	}))
	r.Register("tls_cert", sourceFactory(func(_ *Env, m config.Monitor) (source.Source, error) {
		s, err := source.NewTLSCert(m)
		if err != nil {
			return nil, err
		}
		return s, nil
	}))
	r.Register("link", newLinkMonitor)
	return r
}

// sourceFactory adapts a source constructor into a Factory for a plain
// trigger-only monitor.
func sourceFactory(build func(*Env, config.Monitor) (source.Source, error)) Factory {
	return func(env *Env, cfg config.Monitor) (Monitor, error) {
		src, err := build(env, cfg)
		if err != nil {
			return nil, err
		}
		return NewRunner(env, cfg, src, nil)
	}
}
