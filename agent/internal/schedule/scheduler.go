package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/metrics"
	"github.com/SlightlyLoony/Monitor/agent/internal/monitor"
)

// Scheduler runs a fixed set of monitors until its context ends.
type Scheduler struct {
	monitors []monitor.Monitor
	metrics  *metrics.Metrics
	started  bool
}

// New returns an empty Scheduler. m may be nil.
func New(m *metrics.Metrics) *Scheduler {
	return &Scheduler{metrics: m}
}

// Add registers mon. It must be called before Run.
func (s *Scheduler) Add(mon monitor.Monitor) error {
	if s.started {
		return fmt.Errorf("schedule: add %q after Run", mon.Name())
	}
	if mon.Interval() <= 0 {
		return fmt.Errorf("schedule: monitor %q has non-positive interval %v", mon.Name(), mon.Interval())
	}
	s.monitors = append(s.monitors, mon)
	return nil
}

// Len returns the number of scheduled monitors.
func (s *Scheduler) Len() int { return len(s.monitors) }

// Run starts every monitor and blocks until ctx is cancelled and every
// in-flight cycle has returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.started = true
	var wg sync.WaitGroup
	for _, mon := range s.monitors {
		wg.Add(1)
		go func(mon monitor.Monitor) {
			defer wg.Done()
			s.loop(ctx, mon)
		}(mon)
	}
	wg.Wait()
}

// loop runs one monitor: a cycle now, then one per tick. Ticks that arrive
// while a cycle is running are dropped by the ticker, never queued.
func (s *Scheduler) loop(ctx context.Context, mon monitor.Monitor) {
	slog.Info("schedule: monitor started", "monitor", mon.Name(), "interval", mon.Interval())
	defer slog.Info("schedule: monitor stopped", "monitor", mon.Name())

	s.cycle(ctx, mon, time.Now())

	ticker := time.NewTicker(mon.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.cycle(ctx, mon, t)
		}
	}
}

// cycle runs one monitor cycle, isolating panics.
func (s *Scheduler) cycle(ctx context.Context, mon monitor.Monitor, scheduled time.Time) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("schedule: cycle panicked", "monitor", mon.Name(), "panic", p,
				"stack", string(debug.Stack()))
			s.metrics.CycleDone(mon.Name(), metrics.ResultPanic, time.Since(start))
		}
	}()
	if ctx.Err() != nil {
		return
	}
	mon.Run(ctx, scheduled)
}
