package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
	"github.com/SlightlyLoony/Monitor/agent/internal/event"
	"github.com/SlightlyLoony/Monitor/agent/internal/metrics"
	"github.com/SlightlyLoony/Monitor/agent/internal/source"
	"github.com/SlightlyLoony/Monitor/agent/internal/stats"
)

// Severity of link edge events.
const (
	linkEdgeLevel     = 9
	identityEdgeLevel = 6
)

// linkHookParams are the parts of a link monitor's params the statistics
// hook reads; the source decodes the rest.
type linkHookParams struct {
	Primary       source.LinkProvider `yaml:"primary"`
	Secondary     source.LinkProvider `yaml:"secondary"`
	EdgeInterval  time.Duration       `yaml:"edge_interval"`
	StatsFileName string              `yaml:"stats_file"`
}

// linkHook feeds each link sample into the statistics accumulator and turns
// the resulting edges into events.
type linkHook struct {
	name      string
	params    linkHookParams
	acc       *stats.Accumulator
	emitter   *event.Emitter
	metrics   *metrics.Metrics
	providers map[string]string // identity → provider name, for messages
}

func newLinkMonitor(env *Env, cfg config.Monitor) (Monitor, error) {
	if env.Lookups == nil {
		return nil, fmt.Errorf("link: no lookup cache in env")
	}
	src, err := source.NewLink(cfg, env.Lookups)
	if err != nil {
		return nil, err
	}
	return buildLinkRunner(env, cfg, src)
}

// buildLinkRunner assembles a link monitor around any source producing
// link samples.
func buildLinkRunner(env *Env, cfg config.Monitor, src source.Source) (*Runner, error) {
	p := linkHookParams{}
	if err := cfg.DecodeParams(&p); err != nil {
		return nil, err
	}
	if p.Primary.Name == "" {
		p.Primary.Name = "primary"
	}
	if p.Secondary.Name == "" {
		p.Secondary.Name = "secondary"
	}
	if p.StatsFileName == "" {
		p.StatsFileName = cfg.Name + ".data"
	}

	acc, err := stats.NewAccumulator(stats.FileStore{Path: filepath.Join(env.StatsDir, p.StatsFileName)})
	if err != nil {
		return nil, err
	}

	hook := &linkHook{
		name:      cfg.Name,
		params:    p,
		acc:       acc,
		metrics:   env.Metrics,
		providers: make(map[string]string),
	}
	r, err := NewRunner(env, cfg, src, hook)
	if err != nil {
		return nil, err
	}
	// Edge events share the runner's limiter so they are gated the same way
	// as trigger events.
	hook.emitter = r.emitter
	return r, nil
}

func (h *linkHook) Apply(ctx context.Context, scheduled time.Time, smp *source.Sample) map[string]any {
	rd, ok := smp.Targets[source.LinkTarget]
	if !ok {
		slog.Warn("link: sample has no link target", "monitor", h.name)
		return nil
	}

	obs := stats.Observation{
		CapturedAt: smp.CapturedAt,
		Rank:       stats.Rank(int(rd.Values[source.FieldRank])),
		Identity:   rd.Attrs[source.AttrIdentity],
	}
	if v, ok := rd.Values[source.FieldPrimaryUp]; ok {
		up := v != 0
		obs.PrimaryUp = &up
	}
	if v, ok := rd.Values[source.FieldSecondaryUp]; ok {
		up := v != 0
		obs.SecondaryUp = &up
	}
	if obs.Identity != "" {
		h.providers[obs.Identity] = rd.Attrs[source.AttrProvider]
	}

	edges, err := h.acc.Update(obs)
	if err != nil {
		slog.Error("stats: persist failed", "monitor", h.name, "err", err)
		h.metrics.PersistError(h.name)
	}
	for _, e := range edges {
		c := h.describe(e)
		h.emitter.MaybeEmit(ctx, c.Tag, h.params.EdgeInterval, scheduled, c)
	}
	return h.statusFields()
}

func (h *linkHook) describe(e stats.Edge) event.Candidate {
	pri, sec := h.params.Primary.Name, h.params.Secondary.Name
	c := event.Candidate{Tag: h.name + "." + e.Kind.String(), Level: linkEdgeLevel}
	switch e.Kind {
	case stats.ToPrimary:
		c.Subject = fmt.Sprintf("Effective link switched to %s (primary)", pri)
		dwell := "an unknown period"
		if e.Dwell >= 0 {
			dwell = e.Dwell.Round(time.Second).String()
		}
		c.Message = fmt.Sprintf("Switched to %s after %s on %s (secondary).", pri, dwell, sec)
	case stats.ToSecondary:
		c.Subject = fmt.Sprintf("Effective link switched to %s (secondary)", sec)
		c.Message = fmt.Sprintf("Switched from %s (primary) to %s (secondary).", pri, sec)
	case stats.PrimaryWentUp:
		c.Subject = fmt.Sprintf("%s (primary link) is now up", pri)
		c.Message = c.Subject + "."
	case stats.PrimaryWentDown:
		c.Subject = fmt.Sprintf("%s (primary link) is now down", pri)
		c.Message = c.Subject + "."
	case stats.SecondaryWentUp:
		c.Subject = fmt.Sprintf("%s (secondary link) is now up", sec)
		c.Message = c.Subject + "."
	case stats.SecondaryWentDown:
		c.Subject = fmt.Sprintf("%s (secondary link) is now down", sec)
		c.Message = c.Subject + "."
	case stats.IdentityChange:
		c.Level = identityEdgeLevel
		c.Subject = "Public address changed to: " + e.To
		if e.From == "" {
			c.Message = fmt.Sprintf("Public address was unknown, is now %s (%s)", e.To, h.providers[e.To])
		} else {
			c.Message = fmt.Sprintf("Public address was %s (%s), is now %s (%s)",
				e.From, h.providers[e.From], e.To, h.providers[e.To])
		}
	}
	return c
}

func (h *linkHook) statusFields() map[string]any {
	r := h.acc.Record()
	prefix := "monitor." + h.name + "."
	lastSecondary := "unknown"
	if !r.LastToSecondary.IsZero() {
		lastSecondary = r.LastToSecondary.Format(time.RFC3339)
	}
	return map[string]any{
		prefix + "publicIP":          fmt.Sprintf("%s (%s)", r.Identity, h.providers[r.Identity]),
		prefix + "primaryUp":         r.PrimaryUp,
		prefix + "secondaryUp":       r.SecondaryUp,
		prefix + "onPrimaryPct":      r.OnPrimaryPct,
		prefix + "onPrimaryTimeMs":   r.OnPrimary.Milliseconds(),
		prefix + "onSecondaryTimeMs": r.OnSecondary.Milliseconds(),
		prefix + "onSecondaryCount":  r.ToSecondaryCount,
		prefix + "lastSecondary":     lastSecondary,
	}
}
