package condition

import (
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/trigger"
)

// TriState is the remembered state of one condition.
type TriState int

const (
	Unknown TriState = iota
	True
	False
)

func (s TriState) String() string {
	switch s {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

func fromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

type entry struct {
	state    TriState
	lastSeen time.Time
}

// Tracker holds condition state keyed by trigger.Key(tag, target).
type Tracker struct {
	states map[string]*entry
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*entry)}
}

// Observe records current for key and reports the previous state and whether
// an event should fire under class.
func (t *Tracker) Observe(key string, current bool, class trigger.Class, now time.Time) (prev TriState, fire bool) {
	e, ok := t.states[key]
	if !ok {
		e = &entry{state: Unknown}
		t.states[key] = e
	}
	prev = e.state
	e.state = fromBool(current)
	e.lastSeen = now

	switch class {
	case trigger.Transition:
		fire = current && prev == False
	default:
		fire = current
	}
	return prev, fire
}

// State returns the remembered state for key.
func (t *Tracker) State(key string) TriState {
	if e, ok := t.states[key]; ok {
		return e.state
	}
	return Unknown
}

// Prune drops keys not observed since olderThan and returns how many were
// dropped. A dropped key behaves as never observed.
func (t *Tracker) Prune(olderThan time.Time) int {
	n := 0
	for k, e := range t.states {
		if e.lastSeen.Before(olderThan) {
			delete(t.states, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int { return len(t.states) }
