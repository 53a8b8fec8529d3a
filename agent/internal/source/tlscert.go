package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
)

const defaultTLSDialTimeout = 10 * time.Second

// TLSCertParams configures a tls_cert source.
type TLSCertParams struct {
	// Endpoints are https URLs or host:port pairs. The endpoint string is the
	// target name.
	Endpoints []string `yaml:"endpoints"`
}

// TLSCert inspects the leaf certificate of each endpoint. Fields:
// reachable (0/1), and when reachable days_left and expired (0/1).
// Verification failures count as unreachable; set tls.insecure_skip_verify
// to inspect expired or privately issued certificates.
type TLSCert struct {
	endpoints []string
	addrs     []string
	tlsCfg    *tls.Config
	now       func() time.Time
}

// NewTLSCert builds a tls_cert source from the monitor's params.
func NewTLSCert(m config.Monitor) (*TLSCert, error) {
	var p TLSCertParams
	if err := m.DecodeParams(&p); err != nil {
		return nil, err
	}
	if len(p.Endpoints) == 0 {
		return nil, fmt.Errorf("tls_cert: params.endpoints is empty")
	}
	addrs := make([]string, len(p.Endpoints))
	for i, ep := range p.Endpoints {
		addr, err := dialAddr(ep)
		if err != nil {
			return nil, fmt.Errorf("tls_cert: %w", err)
		}
		addrs[i] = addr
	}
	tlsCfg, err := tlsConfig(m.Auth, m.TLS)
	if err != nil {
		return nil, fmt.Errorf("tls_cert: %w", err)
	}
	return &TLSCert{endpoints: p.Endpoints, addrs: addrs, tlsCfg: tlsCfg, now: time.Now}, nil
}

// dialAddr turns an https URL or host[:port] into a host:port to dial.
func dialAddr(endpoint string) (string, error) {
	host := strings.TrimSpace(endpoint)
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("endpoint %q: %w", endpoint, err)
		}
		if u.Scheme != "https" {
			return "", fmt.Errorf("endpoint %q: scheme %q has no certificate", endpoint, u.Scheme)
		}
		host = u.Host
	}
	if host == "" {
		return "", fmt.Errorf("endpoint %q: no host", endpoint)
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		// No explicit port; use the HTTPS default.
		host = net.JoinHostPort(host, "443")
	}
	return host, nil
}

// Sample dials every endpoint.
func (s *TLSCert) Sample(ctx context.Context) (*Sample, error) {
	now := s.now()
	smp := NewSample(now)
	for i, ep := range s.endpoints {
		leafDays, notAfter, issuer, err := s.check(ctx, s.addrs[i], now)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("tls_cert %s: %w", ep, ctx.Err())
		}
		if err != nil {
			smp.Set(ep, "reachable", 0)
			smp.SetAttr(ep, "error", err.Error())
			continue
		}
		smp.Set(ep, "reachable", 1)
		smp.Set(ep, "days_left", leafDays)
		smp.Set(ep, "expired", boolValue(!notAfter.After(now)))
		smp.SetAttr(ep, "not_after", notAfter.UTC().Format(time.RFC3339))
		smp.SetAttr(ep, "issuer", issuer)
	}
	return smp, nil
}

func (s *TLSCert) check(ctx context.Context, addr string, now time.Time) (days float64, notAfter time.Time, issuer string, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, defaultTLSDialTimeout)
	defer cancel()

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: s.tlsCfg}
	netConn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return 0, time.Time{}, "", err
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		return 0, time.Time{}, "", fmt.Errorf("no peer certificate")
	}
	leaf := peerCerts[0]
	days = math.Floor(leaf.NotAfter.Sub(now).Hours() / 24)
	return days, leaf.NotAfter, leaf.Issuer.CommonName, nil
}
