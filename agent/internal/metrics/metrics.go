package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle results recorded by CycleDone.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultPanic  = "panic"
)

// Publish kinds recorded by PublishFailed.
const (
	KindEvent  = "event"
	KindStatus = "status"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	EventsEmitted    *prometheus.CounterVec
	EventsSuppressed *prometheus.CounterVec
	PublishErrors    *prometheus.CounterVec
	Cycles           *prometheus.CounterVec
	CycleDuration    *prometheus.HistogramVec
	PersistErrors    *prometheus.CounterVec
	StateKeys        *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_events_emitted_total",
			Help: "Events published to the bus",
		}, []string{"monitor", "tag"}),
		EventsSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_events_suppressed_total",
			Help: "Events withheld by the rate limiter",
		}, []string{"monitor", "tag"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_publish_errors_total",
			Help: "Events and status snapshots the bus rejected",
		}, []string{"monitor", "kind"}),
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Monitor cycles by result",
		}, []string{"monitor", "result"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monitor_cycle_duration_seconds",
			Help:    "Wall time of one monitor cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"monitor"}),
		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_persist_errors_total",
			Help: "Failed statistics record writes",
		}, []string{"monitor"}),
		StateKeys: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitor_state_keys",
			Help: "Condition state keys held by a monitor",
		}, []string{"monitor"}),
	}
}

func (m *Metrics) Emitted(monitor, tag string) {
	if m != nil {
		m.EventsEmitted.WithLabelValues(monitor, tag).Inc()
	}
}

func (m *Metrics) Suppressed(monitor, tag string) {
	if m != nil {
		m.EventsSuppressed.WithLabelValues(monitor, tag).Inc()
	}
}

func (m *Metrics) PublishFailed(monitor, kind string) {
	if m != nil {
		m.PublishErrors.WithLabelValues(monitor, kind).Inc()
	}
}

// CycleDone counts one cycle with the given result and observes its duration.
func (m *Metrics) CycleDone(monitor, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(monitor, result).Inc()
	m.CycleDuration.WithLabelValues(monitor).Observe(d.Seconds())
}

func (m *Metrics) PersistError(monitor string) {
	if m != nil {
		m.PersistErrors.WithLabelValues(monitor).Inc()
	}
}

func (m *Metrics) SetStateKeys(monitor string, n int) {
	if m != nil {
		m.StateKeys.WithLabelValues(monitor).Set(float64(n))
	}
}
