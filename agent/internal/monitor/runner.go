package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/condition"
	"github.com/SlightlyLoony/Monitor/agent/internal/config"
	"github.com/SlightlyLoony/Monitor/agent/internal/event"
	"github.com/SlightlyLoony/Monitor/agent/internal/metrics"
	"github.com/SlightlyLoony/Monitor/agent/internal/source"
	"github.com/SlightlyLoony/Monitor/agent/internal/trigger"
)

// FieldOnline is the field that marks a target reachable (1) or not (0).
// Targets reporting online == 0 are only evaluated by triggers on this field.
const FieldOnline = "online"

// Hook runs after triggers on every successful cycle and may add status
// fields. Hooks carry per-monitor state such as statistics.
type Hook interface {
	Apply(ctx context.Context, scheduled time.Time, smp *source.Sample) map[string]any
}

// Runner is the generic monitor: a source, a set of triggers and an optional
// hook. It is driven by the scheduler and never runs two cycles at once.
type Runner struct {
	name     string
	interval time.Duration
	src      source.Source
	triggers []*trigger.Definition
	tracker  *condition.Tracker
	emitter  *event.Emitter
	hook     Hook
	env      *Env
	uptime   uptime

	failureTag      string
	failureInterval time.Duration
	failureLevel    int
}

// NewRunner builds a Runner for cfg around src. The source is wrapped in the
// monitor's circuit breaker.
func NewRunner(env *Env, cfg config.Monitor, src source.Source, hook Hook) (*Runner, error) {
	defs := make([]*trigger.Definition, 0, len(cfg.Triggers))
	for i, tc := range cfg.Triggers {
		d, err := trigger.New(tc)
		if err != nil {
			return nil, fmt.Errorf("triggers[%d]: %w", i, err)
		}
		defs = append(defs, d)
	}
	level := cfg.DiagnosticLevel()
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("failure_level %d out of range [0, 9]", level)
	}

	em := event.NewEmitter(env.Publisher, cfg.Name, env.Metrics)
	em.SetClock(env.Now)
	return &Runner{
		name:            cfg.Name,
		interval:        cfg.Interval,
		src:             source.Guard(cfg.Name, src, cfg.Breaker),
		triggers:        defs,
		tracker:         condition.NewTracker(),
		emitter:         em,
		hook:            hook,
		env:             env,
		failureTag:      cfg.Name + ".sampleFailure",
		failureInterval: cfg.FailureInterval,
		failureLevel:    level,
	}, nil
}

func (r *Runner) Name() string            { return r.name }
func (r *Runner) Interval() time.Duration { return r.interval }

// Topic is the status topic the runner publishes on.
func (r *Runner) Topic() string { return r.name + ".monitor" }

// Run performs one cycle.
func (r *Runner) Run(ctx context.Context, scheduled time.Time) {
	start := time.Now()

	smp, err := r.sample(ctx)
	r.uptime.record(err == nil)
	if err != nil {
		r.sampleFailed(ctx, scheduled, err)
		r.env.Metrics.CycleDone(r.name, metrics.ResultFailed, time.Since(start))
		return
	}

	r.evaluate(ctx, scheduled, smp)

	fields := r.statusFields(smp)
	if r.hook != nil {
		for k, v := range r.hook.Apply(ctx, scheduled, smp) {
			fields[k] = v
		}
	}
	r.emitter.Status(ctx, r.Topic(), fields)

	if r.env.StateTTL > 0 {
		if n := r.tracker.Prune(scheduled.Add(-r.env.StateTTL)); n > 0 {
			slog.Debug("runner: pruned idle condition state", "monitor", r.name, "keys", n)
		}
	}
	r.emitter.Prune(scheduled)
	r.env.Metrics.SetStateKeys(r.name, r.tracker.Len())
	r.env.Metrics.CycleDone(r.name, metrics.ResultOK, time.Since(start))
}

func (r *Runner) sample(ctx context.Context) (*source.Sample, error) {
	if r.env.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.env.CycleTimeout)
		defer cancel()
	}
	smp, err := r.src.Sample(ctx)
	if err != nil {
		return nil, &SampleError{Monitor: r.name, Class: source.Classify(err), Err: err}
	}
	return smp, nil
}

// sampleFailed emits the rate-limited diagnostic for a failed cycle.
func (r *Runner) sampleFailed(ctx context.Context, scheduled time.Time, err error) {
	class := source.ClassError
	if se, ok := err.(*SampleError); ok {
		class = se.Class
	}
	slog.Warn("runner: sample failed", "monitor", r.name, "class", class, "err", err)
	r.emitter.MaybeEmit(ctx, r.failureTag, r.failureInterval, scheduled, event.Candidate{
		Tag:     r.failureTag,
		Subject: class,
		Message: err.Error(),
		Level:   r.failureLevel,
	})
}

func (r *Runner) evaluate(ctx context.Context, scheduled time.Time, smp *source.Sample) {
	names := smp.Names()
	for _, d := range r.triggers {
		for _, target := range d.Targets(names) {
			rd, ok := smp.Targets[target]
			if !ok {
				slog.Warn("runner: target not in sample", "monitor", r.name, "tag", d.Tag, "target", target)
				continue
			}
			if d.Field != FieldOnline {
				if online, ok := rd.Values[FieldOnline]; ok && online == 0 {
					slog.Debug("runner: target offline", "monitor", r.name, "tag", d.Tag, "target", target)
					continue
				}
			}
			v, ok := rd.Values[d.Field]
			if !ok {
				slog.Warn("runner: field not in sample", "monitor", r.name, "tag", d.Tag,
					"target", target, "field", d.Field)
				continue
			}

			holds := trigger.Evaluate(v, d)
			key := trigger.Key(d.Tag, target)
			prev, fire := r.tracker.Observe(key, holds, d.Class, scheduled)
			slog.Debug("runner: evaluated", "monitor", r.name, "key", key, "value", v,
				"holds", holds, "prev", prev.String(), "fire", fire)
			if !fire {
				continue
			}

			subject, message := d.Render(v, target)
			r.emitter.MaybeEmit(ctx, key, d.MinInterval, scheduled, event.Candidate{
				Tag:     d.Tag,
				Type:    d.Type,
				Subject: subject,
				Message: message,
				Level:   d.Level,
			})
		}
	}
}

// statusFields flattens the sample into dotted keys under "monitor.<name>".
func (r *Runner) statusFields(smp *source.Sample) map[string]any {
	prefix := "monitor." + r.name + "."
	fields := map[string]any{
		prefix + "messageIntervalMs": r.interval.Milliseconds(),
		prefix + "uptimePct":         r.uptime.pct(),
	}
	for target, rd := range smp.Targets {
		for f, v := range rd.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			fields[prefix+target+"."+f] = v
		}
		for k, v := range rd.Attrs {
			fields[prefix+target+"."+k] = v
		}
	}
	return fields
}
