package source

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/cache"
	"github.com/SlightlyLoony/Monitor/agent/internal/config"
	"github.com/SlightlyLoony/Monitor/agent/internal/stats"
)

// LinkTarget is the only target a link source reports.
const LinkTarget = "link"

// Link fields and attributes.
const (
	FieldRank        = "rank"
	FieldPrimaryUp   = "primary_up"
	FieldSecondaryUp = "secondary_up"
	AttrIdentity     = "identity"
	AttrProvider     = "provider"
)

// Defaults for link params.
const (
	DefaultPublicIPURL = "https://checkip.amazonaws.com"
	DefaultRegistryURL = "https://rdap.arin.net/registry/ip/"
)

// LinkProvider names an uplink and the registry keywords that identify it.
type LinkProvider struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// LinkParams configures a link source.
type LinkParams struct {
	// Router is the host:port of the edge router; if it cannot be reached the
	// sample fails.
	Router string `yaml:"router"`

	// PrimaryProbe and SecondaryProbe are host:port addresses reachable only
	// through the respective uplink.
	PrimaryProbe   string `yaml:"primary_probe"`
	SecondaryProbe string `yaml:"secondary_probe"`

	// PublicIPURL returns the public address as plain text.
	PublicIPURL string `yaml:"public_ip_url"`

	// RegistryURL is prefixed to the address to look up its owner.
	RegistryURL string `yaml:"registry_url"`

	Primary   LinkProvider `yaml:"primary"`
	Secondary LinkProvider `yaml:"secondary"`

	Timeout  time.Duration `yaml:"timeout"`
	Attempts int           `yaml:"attempts"`
}

// Provider is the resolved owner of a public address.
type Provider struct {
	Name string
	Rank stats.Rank
}

// Link samples a dual-uplink setup: which uplink carries traffic (from the
// public address's registry owner) and whether each uplink is up.
//
// The one target, LinkTarget, carries rank (a stats.Rank value) and, when the
// probe produced an answer, primary_up and secondary_up. Attributes identity
// and provider hold the public address and its owner name.
type Link struct {
	params  LinkParams
	client  *http.Client
	lookups *cache.Cache[string, Provider]
	now     func() time.Time
}

// NewLink builds a link source. lookups is shared by every link monitor in
// the process.
func NewLink(m config.Monitor, lookups *cache.Cache[string, Provider]) (*Link, error) {
	p := LinkParams{
		PublicIPURL: DefaultPublicIPURL,
		RegistryURL: DefaultRegistryURL,
		Timeout:     DefaultConnectTimeout,
		Attempts:    DefaultConnectAttempts,
	}
	if err := m.DecodeParams(&p); err != nil {
		return nil, err
	}
	for name, addr := range map[string]string{
		"router":          p.Router,
		"primary_probe":   p.PrimaryProbe,
		"secondary_probe": p.SecondaryProbe,
	} {
		if addr == "" {
			return nil, fmt.Errorf("link: params.%s is required", name)
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("link: params.%s: %w", name, err)
		}
	}
	if len(p.Primary.Keywords) == 0 || len(p.Secondary.Keywords) == 0 {
		return nil, fmt.Errorf("link: params.primary.keywords and params.secondary.keywords are required")
	}
	if p.Primary.Name == "" {
		p.Primary.Name = "primary"
	}
	if p.Secondary.Name == "" {
		p.Secondary.Name = "secondary"
	}
	client, err := buildHTTPClient(m)
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	return &Link{params: p, client: client, lookups: lookups, now: time.Now}, nil
}

// Sample performs one link capture.
func (s *Link) Sample(ctx context.Context) (*Sample, error) {
	p := s.params
	up, _, err := Probe(ctx, p.Router, p.Timeout, p.Attempts)
	if err != nil {
		return nil, fmt.Errorf("link: router %s: %w: %w", p.Router, ErrUnavailable, err)
	}
	if !up {
		return nil, fmt.Errorf("link: router %s: %w", p.Router, ErrUnavailable)
	}

	ip, err := s.publicIP(ctx)
	if err != nil {
		return nil, err
	}
	prov, err := s.lookups.GetOrCompute(ctx, ip, func(ctx context.Context) (Provider, error) {
		return s.lookup(ctx, ip)
	})
	if err != nil {
		return nil, err
	}

	smp := NewSample(s.now())
	smp.Set(LinkTarget, FieldRank, float64(prov.Rank))
	smp.SetAttr(LinkTarget, AttrIdentity, ip)
	smp.SetAttr(LinkTarget, AttrProvider, prov.Name)

	if up, _, err := Probe(ctx, p.PrimaryProbe, p.Timeout, p.Attempts); err == nil {
		smp.Set(LinkTarget, FieldPrimaryUp, boolValue(up))
	}
	if up, _, err := Probe(ctx, p.SecondaryProbe, p.Timeout, p.Attempts); err == nil {
		smp.Set(LinkTarget, FieldSecondaryUp, boolValue(up))
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("link: %w", ctx.Err())
	}
	return smp, nil
}

func (s *Link) publicIP(ctx context.Context) (string, error) {
	body, err := getBody(ctx, s.client, s.params.PublicIPURL, "text/plain")
	if err != nil {
		return "", fmt.Errorf("link: public address: %w", err)
	}
	text := strings.TrimSpace(string(body))
	ip := net.ParseIP(text)
	if ip == nil {
		return "", fmt.Errorf("link: public address %q: %w", text, ErrMalformed)
	}
	return ip.String(), nil
}

// lookup asks the registry who owns ip and ranks the answer by keyword.
func (s *Link) lookup(ctx context.Context, ip string) (Provider, error) {
	body, err := getBody(ctx, s.client, s.params.RegistryURL+ip, "application/json")
	if err != nil {
		return Provider{}, fmt.Errorf("link: registry lookup %s: %w", ip, err)
	}
	text := strings.ToLower(string(body))
	switch {
	case containsAny(text, s.params.Primary.Keywords):
		return Provider{Name: s.params.Primary.Name, Rank: stats.RankPrimary}, nil
	case containsAny(text, s.params.Secondary.Keywords):
		return Provider{Name: s.params.Secondary.Name, Rank: stats.RankSecondary}, nil
	default:
		return Provider{Name: "unknown", Rank: stats.RankUnknown}, nil
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
