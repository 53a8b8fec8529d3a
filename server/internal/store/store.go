package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/SlightlyLoony/Monitor/pkg/types"
)

// Entry is a status message together with the time it was last received.
type Entry struct {
	Status    types.Status
	UpdatedAt time.Time
}

// EventFilter narrows Events. Zero values match everything.
type EventFilter struct {
	Tag      string
	MinLevel int
	Limit    int
}

// Store is a thread-safe in-memory store of the latest status per topic and
// a bounded ring of recent events. A background goroutine (Run) periodically
// evicts status entries not updated within the status TTL and events older
// than the event TTL.
type Store struct {
	mu     sync.RWMutex
	status map[string]*Entry
	ttl    time.Duration

	ring     []types.Event
	head     int // index of the oldest event
	size     int
	eventTTL time.Duration

	now func() time.Time // injectable for deterministic tests
}

// New creates a Store. capacity bounds the event ring.
func New(statusTTL time.Duration, capacity int, eventTTL time.Duration) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		status:   make(map[string]*Entry),
		ttl:      statusTTL,
		ring:     make([]types.Event, capacity),
		eventTTL: eventTTL,
		now:      time.Now,
	}
}

// PutStatus stores or replaces the status for st.Topic.
func (s *Store) PutStatus(st types.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[st.Topic] = &Entry{
		Status:    st,
		UpdatedAt: s.now(),
	}
}

// GetStatus returns the Entry for topic and whether one was found. The entry
// may be stale if TTL has elapsed.
func (s *Store) GetStatus(topic string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.status[topic]
	return e, ok
}

// ListStatus returns all entries whose UpdatedAt is within the TTL, sorted by
// topic. Stale entries that have not yet been evicted are excluded.
func (s *Store) ListStatus() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.status))
	for _, e := range s.status {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status.Topic < out[j].Status.Topic })
	return out
}

// TTL returns the status TTL.
func (s *Store) TTL() time.Duration { return s.ttl }

// CountStatus returns the number of status entries held, including stale ones.
func (s *Store) CountStatus() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.status)
}

// AddEvent appends ev, overwriting the oldest event when the ring is full.
func (s *Store) AddEvent(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := (s.head + s.size) % len(s.ring)
	s.ring[idx] = ev
	if s.size < len(s.ring) {
		s.size++
	} else {
		s.head = (s.head + 1) % len(s.ring)
	}
}

// Events returns matching events, newest first.
func (s *Store) Events(f EventFilter) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Event, 0, s.size)
	for i := s.size - 1; i >= 0; i-- {
		ev := s.ring[(s.head+i)%len(s.ring)]
		if f.Tag != "" && ev.Tag != f.Tag {
			continue
		}
		if ev.Level < f.MinLevel {
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// CountEvents returns the number of events held.
func (s *Store) CountEvents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Evict removes status entries older than now minus the status TTL and events
// older than now minus the event TTL. It returns the number removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for topic, e := range s.status {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.status, topic)
			removed++
		}
	}

	if s.eventTTL > 0 {
		evCutoff := now.Add(-s.eventTTL)
		// Events arrive roughly in time order, so expired ones sit at the head.
		for s.size > 0 && !s.ring[s.head].Time().After(evCutoff) {
			s.ring[s.head] = types.Event{}
			s.head = (s.head + 1) % len(s.ring)
			s.size--
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop. It ticks at half the status TTL
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale entries", "count", n)
			}
		}
	}
}
