package ratelimit

import "time"

// Limiter stores the next eligible time per key.
type Limiter struct {
	next map[string]time.Time
}

// New returns an empty Limiter.
func New() *Limiter {
	return &Limiter{next: make(map[string]time.Time)}
}

// Allow reports whether an event for key may be emitted at now. When it may,
// the key becomes ineligible until now+minInterval. A non-positive
// minInterval always allows and records nothing.
func (l *Limiter) Allow(key string, minInterval time.Duration, now time.Time) bool {
	if minInterval <= 0 {
		return true
	}
	if next, ok := l.next[key]; ok && now.Before(next) {
		return false
	}
	l.next[key] = now.Add(minInterval)
	return true
}

// Prune removes entries whose next eligible time is not after now. An expired
// entry allows exactly like a missing one, so pruning never changes a result.
func (l *Limiter) Prune(now time.Time) int {
	n := 0
	for k, next := range l.next {
		if !next.After(now) {
			delete(l.next, k)
			n++
		}
	}
	return n
}

// Len returns the number of keys currently suppressed or recently emitted.
func (l *Limiter) Len() int { return len(l.next) }
