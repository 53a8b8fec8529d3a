package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
)

// Defaults for TCP checks.
const (
	DefaultConnectTimeout  = time.Second
	DefaultConnectAttempts = 3
)

// TCPCheck is one connect check.
type TCPCheck struct {
	Name     string        `yaml:"name"`
	Addr     string        `yaml:"addr"`
	Timeout  time.Duration `yaml:"timeout"`
	Attempts int           `yaml:"attempts"`
}

// TCPParams configures a tcp source.
type TCPParams struct {
	Checks []TCPCheck `yaml:"checks"`
}

// TCP runs connect checks. Each check is a target with fields up (0/1) and
// connect_ms (only when up).
type TCP struct {
	checks []TCPCheck
	now    func() time.Time
}

// NewTCP builds a tcp source from the monitor's params.
func NewTCP(m config.Monitor) (*TCP, error) {
	var p TCPParams
	if err := m.DecodeParams(&p); err != nil {
		return nil, err
	}
	if len(p.Checks) == 0 {
		return nil, fmt.Errorf("tcp: params.checks is empty")
	}
	seen := make(map[string]bool, len(p.Checks))
	for i := range p.Checks {
		c := &p.Checks[i]
		if c.Addr == "" {
			return nil, fmt.Errorf("tcp: checks[%d]: addr is required", i)
		}
		if _, _, err := net.SplitHostPort(c.Addr); err != nil {
			return nil, fmt.Errorf("tcp: checks[%d]: %w", i, err)
		}
		if c.Name == "" {
			c.Name = c.Addr
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("tcp: duplicate check name %q", c.Name)
		}
		seen[c.Name] = true
		if c.Timeout <= 0 {
			c.Timeout = DefaultConnectTimeout
		}
		if c.Attempts <= 0 {
			c.Attempts = DefaultConnectAttempts
		}
	}
	return &TCP{checks: p.Checks, now: time.Now}, nil
}

// Sample runs every check in order. Only cancellation of ctx fails the sample.
func (s *TCP) Sample(ctx context.Context) (*Sample, error) {
	smp := NewSample(s.now())
	for _, c := range s.checks {
		up, took, err := Probe(ctx, c.Addr, c.Timeout, c.Attempts)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("tcp %s: %w", c.Addr, ctx.Err())
		}
		smp.Set(c.Name, "up", boolValue(up))
		if up {
			smp.Set(c.Name, "connect_ms", float64(took.Milliseconds()))
		}
		if err != nil {
			smp.SetAttr(c.Name, "error", err.Error())
		}
	}
	return smp, nil
}

// Probe tries to open a TCP connection to addr up to attempts times, the
// n-th attempt allowing n×timeout. It reports whether a connection was made
// and how long the successful attempt took. err is non-nil only when the
// outcome could not be determined (bad address, ctx done), never for a plain
// refusal or timeout.
func Probe(ctx context.Context, addr string, timeout time.Duration, attempts int) (up bool, took time.Duration, err error) {
	var d net.Dialer
	for i := 1; i <= attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout*time.Duration(i))
		start := time.Now()
		conn, err := d.DialContext(attemptCtx, "tcp", addr)
		cancel()
		if err == nil {
			took := time.Since(start)
			conn.Close()
			return true, took, nil
		}
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		var addrErr *net.AddrError
		var dnsErr *net.DNSError
		if errors.As(err, &addrErr) || (errors.As(err, &dnsErr) && dnsErr.IsNotFound) {
			return false, 0, err
		}
	}
	return false, 0, nil
}
