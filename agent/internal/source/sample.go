package source

import (
	"context"
	"math"
	"sort"
	"time"
)

// Source produces one Sample per call.
type Source interface {
	Sample(ctx context.Context) (*Sample, error)
}

// Reading is the state of one target.
type Reading struct {
	Values map[string]float64
	Attrs  map[string]string
}

// Sample is one cycle's view of every target a source knows about.
type Sample struct {
	CapturedAt time.Time
	Targets    map[string]Reading
}

// NewSample returns an empty Sample captured at t.
func NewSample(t time.Time) *Sample {
	return &Sample{CapturedAt: t, Targets: make(map[string]Reading)}
}

func (s *Sample) reading(target string) Reading {
	r, ok := s.Targets[target]
	if !ok {
		r = Reading{Values: make(map[string]float64), Attrs: make(map[string]string)}
		s.Targets[target] = r
	}
	return r
}

// Set stores a numeric field for target. NaN and infinite values are
// dropped; the target is still recorded as present.
func (s *Sample) Set(target, field string, v float64) {
	r := s.reading(target)
	if finite(v) {
		r.Values[field] = v
	}
}

// Add adds v to a numeric field for target. Like Set, it ignores NaN and
// infinite values.
func (s *Sample) Add(target, field string, v float64) {
	r := s.reading(target)
	if finite(v) {
		r.Values[field] += v
	}
}

// SetAttr stores a string attribute for target.
func (s *Sample) SetAttr(target, key, val string) {
	s.reading(target).Attrs[key] = val
}

// Value returns a numeric field.
func (s *Sample) Value(target, field string) (float64, bool) {
	r, ok := s.Targets[target]
	if !ok {
		return 0, false
	}
	v, ok := r.Values[field]
	return v, ok
}

// Has reports whether target is present.
func (s *Sample) Has(target string) bool {
	_, ok := s.Targets[target]
	return ok
}

// Names returns the target names in sorted order.
func (s *Sample) Names() []string {
	names := make([]string, 0, len(s.Targets))
	for n := range s.Targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
