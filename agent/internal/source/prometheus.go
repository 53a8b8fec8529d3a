package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
)

// PrometheusParams configures a prometheus source.
type PrometheusParams struct {
	// Endpoint is the URL of the text exposition, e.g. http://host:9100/metrics.
	Endpoint string `yaml:"endpoint"`

	// TargetLabel names the label whose value is the target name.
	TargetLabel string `yaml:"target_label"`

	// DefaultTarget is used for series without TargetLabel. Defaults to the
	// monitor name.
	DefaultTarget string `yaml:"default_target"`

	// Metrics restricts which families become fields. Empty means all.
	Metrics []string `yaml:"metrics"`

	// Rates lists counter families that also get a per-minute "_pm" field.
	Rates []string `yaml:"rates"`
}

// Prometheus scrapes a Prometheus text exposition. Each metric family becomes
// a field; series are summed per target.
type Prometheus struct {
	params PrometheusParams
	client *http.Client
	rates  *rates
	now    func() time.Time
}

// NewPrometheus builds a prometheus source from the monitor's params.
func NewPrometheus(m config.Monitor) (*Prometheus, error) {
	var p PrometheusParams
	if err := m.DecodeParams(&p); err != nil {
		return nil, err
	}
	if p.Endpoint == "" {
		return nil, fmt.Errorf("prometheus: params.endpoint is required")
	}
	if p.DefaultTarget == "" {
		p.DefaultTarget = m.Name
	}
	client, err := buildHTTPClient(m)
	if err != nil {
		return nil, fmt.Errorf("prometheus: %w", err)
	}
	return &Prometheus{params: p, client: client, rates: newRates(p.Rates), now: time.Now}, nil
}

// Sample fetches the endpoint and folds the families into targets.
func (s *Prometheus) Sample(ctx context.Context) (*Sample, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.params.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("prometheus %s: %w", s.params.Endpoint, err)
	}

	wanted := make(map[string]bool, len(s.params.Metrics))
	for _, name := range s.params.Metrics {
		wanted[name] = true
	}

	smp := NewSample(s.now())
	for name, mf := range mfs {
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		for _, m := range mf.GetMetric() {
			v, ok := metricValue(m)
			if !ok {
				continue
			}
			target := s.params.DefaultTarget
			if s.params.TargetLabel != "" {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == s.params.TargetLabel && lp.GetValue() != "" {
						target = lp.GetValue()
						break
					}
				}
			}
			smp.Add(target, name, v)
		}
	}
	s.rates.apply(smp)
	return smp, nil
}
