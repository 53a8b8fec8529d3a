package monitor

import (
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/cache"
	"github.com/SlightlyLoony/Monitor/agent/internal/event"
	"github.com/SlightlyLoony/Monitor/agent/internal/metrics"
	"github.com/SlightlyLoony/Monitor/agent/internal/source"
)

// Env is shared by every monitor in the process. It is built once at startup
// and passed by reference to each factory.
type Env struct {
	// Host names this agent.
	Host string

	// Publisher is the Event Bus; it must be safe for concurrent use.
	Publisher event.Publisher

	// StatsDir holds persisted statistics records.
	StatsDir string

	// Lookups caches public address owners for link monitors.
	Lookups *cache.Cache[string, source.Provider]

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// CycleTimeout bounds each cycle's sampling call.
	CycleTimeout time.Duration

	// StateTTL is how long unobserved condition state is kept.
	StateTTL time.Duration

	// Now is the wall clock for event timestamps; nil means time.Now.
	Now func() time.Time
}
