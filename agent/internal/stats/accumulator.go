package stats

import (
	"fmt"
	"log/slog"
	"time"
)

// Store loads and saves a Record.
type Store interface {
	Load() (Record, bool, error)
	Save(Record) error
}

// EdgeKind names a change detected between two observations.
type EdgeKind int

const (
	ToPrimary EdgeKind = iota
	ToSecondary
	PrimaryWentUp
	PrimaryWentDown
	SecondaryWentUp
	SecondaryWentDown
	IdentityChange
)

var edgeNames = [...]string{
	ToPrimary:         "toPrimary",
	ToSecondary:       "toSecondary",
	PrimaryWentUp:     "primaryWentUp",
	PrimaryWentDown:   "primaryWentDown",
	SecondaryWentUp:   "secondaryWentUp",
	SecondaryWentDown: "secondaryWentDown",
	IdentityChange:    "identityChange",
}

func (k EdgeKind) String() string {
	if int(k) >= 0 && int(k) < len(edgeNames) {
		return edgeNames[k]
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// Edge is one detected change. Each edge is a single event candidate.
type Edge struct {
	Kind EdgeKind

	// Identity edges: the previous ("" when unknown) and new identity.
	From, To string

	// ToPrimary only: time spent on secondary since the last switch to it;
	// negative when unknown.
	Dwell time.Duration
}

// Observation is one cycle's already-sampled link state.
type Observation struct {
	CapturedAt time.Time
	Rank       Rank
	Identity   string

	// nil means the probe failed this cycle; the last known value is reused.
	PrimaryUp   *bool
	SecondaryUp *bool
}

// Accumulator applies observations to a Record and persists it.
// It belongs to one monitor and is not safe for concurrent use.
type Accumulator struct {
	store Store
	rec   Record
}

// NewAccumulator loads the persisted record once. A malformed record is an
// error; a missing one starts from zero.
func NewAccumulator(store Store) (*Accumulator, error) {
	rec, ok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("stats: no persisted record, starting fresh")
	}
	return &Accumulator{store: store, rec: rec}, nil
}

// Record returns a copy of the current record.
func (a *Accumulator) Record() Record { return a.rec }

// Update applies obs, flushes the record, and returns the detected edges.
// A non-nil error reports only a failed flush; the in-memory record has been
// updated regardless and stays authoritative.
func (a *Accumulator) Update(obs Observation) ([]Edge, error) {
	r := &a.rec
	capture := obs.CapturedAt

	primaryUp := r.PrimaryUp
	if obs.PrimaryUp != nil {
		primaryUp = *obs.PrimaryUp
	}
	secondaryUp := r.SecondaryUp
	if obs.SecondaryUp != nil {
		secondaryUp = *obs.SecondaryUp
	}

	var delta time.Duration
	if !r.LastCapture.IsZero() {
		delta = capture.Sub(r.LastCapture).Truncate(time.Millisecond)
		if delta < 0 {
			delta = 0
		}
	}

	var edges []Edge
	toPrimary := obs.Rank == RankPrimary && r.LastRank != RankPrimary
	toSecondary := obs.Rank == RankSecondary && r.LastRank != RankSecondary

	if toPrimary {
		dwell := time.Duration(-1)
		if !r.LastToSecondary.IsZero() {
			dwell = capture.Sub(r.LastToSecondary)
		}
		edges = append(edges, Edge{Kind: ToPrimary, Dwell: dwell})
	}
	if toSecondary {
		edges = append(edges, Edge{Kind: ToSecondary, Dwell: -1})
		r.LastToSecondary = capture
		r.ToSecondaryCount++
	}

	switch obs.Rank {
	case RankPrimary:
		r.OnPrimary += delta
	case RankSecondary:
		r.OnSecondary += delta
	}
	r.OnPrimaryPct = onPrimaryPct(r.OnPrimary, r.OnSecondary)

	if !primaryUp {
		r.DownPrimary += delta
	}
	if !secondaryUp {
		r.DownSecondary += delta
	}
	switch {
	case !r.PrimaryUp && primaryUp:
		edges = append(edges, Edge{Kind: PrimaryWentUp})
	case r.PrimaryUp && !primaryUp:
		edges = append(edges, Edge{Kind: PrimaryWentDown})
	}
	switch {
	case !r.SecondaryUp && secondaryUp:
		edges = append(edges, Edge{Kind: SecondaryWentUp})
	case r.SecondaryUp && !secondaryUp:
		edges = append(edges, Edge{Kind: SecondaryWentDown})
	}
	if obs.Identity != "" && obs.Identity != r.Identity {
		edges = append(edges, Edge{Kind: IdentityChange, From: r.Identity, To: obs.Identity})
		r.Identity = obs.Identity
	}

	r.PrimaryUp = primaryUp
	r.SecondaryUp = secondaryUp
	r.LastRank = obs.Rank
	r.LastCapture = capture

	return edges, a.Flush()
}

// Flush persists the current record.
func (a *Accumulator) Flush() error {
	return a.store.Save(a.rec)
}

// onPrimaryPct is the share of ranked time spent on primary. With no ranked
// time at all it is 100.
func onPrimaryPct(primary, secondary time.Duration) float64 {
	total := primary + secondary
	if total == 0 {
		return 100
	}
	return 100 * float64(primary) / float64(total)
}
