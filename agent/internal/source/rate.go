package source

import "time"

// RateSuffix is appended to a counter field to name its per-minute rate.
const RateSuffix = "_pm"

// rates turns monotonic counter fields into per-minute rate fields. It keeps
// the previous sample's values per target; a source owning one is only called
// by its monitor's runner, never concurrently.
type rates struct {
	fields map[string]bool
	prev   map[string]map[string]float64
	prevAt time.Time
}

func newRates(fields []string) *rates {
	if len(fields) == 0 {
		return nil
	}
	r := &rates{fields: make(map[string]bool, len(fields)), prev: make(map[string]map[string]float64)}
	for _, f := range fields {
		r.fields[f] = true
	}
	return r
}

// apply adds <field>_pm to every target that reported a rate field in both
// this sample and the previous one. The first sample only records a baseline.
func (r *rates) apply(smp *Sample) {
	if r == nil {
		return
	}
	elapsed := smp.CapturedAt.Sub(r.prevAt).Minutes()
	haveBaseline := !r.prevAt.IsZero() && elapsed > 0

	next := make(map[string]map[string]float64, len(smp.Targets))
	for target, rd := range smp.Targets {
		for field, v := range rd.Values {
			if !r.fields[field] {
				continue
			}
			if next[target] == nil {
				next[target] = make(map[string]float64)
			}
			next[target][field] = v
			if !haveBaseline {
				continue
			}
			if prev, ok := r.prev[target][field]; ok {
				rd.Values[field+RateSuffix] = counterDelta(v, prev) / elapsed
			}
		}
	}
	r.prev = next
	r.prevAt = smp.CapturedAt
}

// counterDelta returns the positive counter delta between current and
// previous. A counter that went backwards was reset; the delta is 0.
func counterDelta(current, previous float64) float64 {
	d := current - previous
	if d < 0 {
		return 0
	}
	return d
}
