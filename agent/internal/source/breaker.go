package source

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
)

// breakerSource runs a Source through a circuit breaker.
type breakerSource struct {
	src Source
	cb  *gobreaker.CircuitBreaker
}

// Guard wraps src in a circuit breaker that opens after cfg.MaxFailures()
// consecutive failures and allows a trial call after cfg.Timeout. While open,
// Sample fails immediately with gobreaker.ErrOpenState. A zero failure count
// returns src unchanged.
func Guard(name string, src Source, cfg config.BreakerConfig) Source {
	n := cfg.MaxFailures()
	if n <= 0 {
		return src
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(n)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("source: breaker state changed", "monitor", name, "from", from.String(), "to", to.String())
		},
	})
	return &breakerSource{src: src, cb: cb}
}

func (b *breakerSource) Sample(ctx context.Context) (*Sample, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.src.Sample(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Sample), nil
}
