package stats

import (
	"errors"
	"math"
	"testing"
	"time"
)

type memStore struct {
	rec    Record
	ok     bool
	err    error
	saves  int
	saveFn func(Record) error
}

func (m *memStore) Load() (Record, bool, error) { return m.rec, m.ok, m.err }

func (m *memStore) Save(r Record) error {
	m.saves++
	if m.saveFn != nil {
		return m.saveFn(r)
	}
	m.rec, m.ok = r, true
	return nil
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func up(b bool) *bool { return &b }

func kinds(edges []Edge) []EdgeKind {
	out := make([]EdgeKind, len(edges))
	for i, e := range edges {
		out[i] = e.Kind
	}
	return out
}

func hasEdge(edges []Edge, k EdgeKind) bool {
	for _, e := range edges {
		if e.Kind == k {
			return true
		}
	}
	return false
}

func TestNewAccumulator_Malformed(t *testing.T) {
	_, err := NewAccumulator(&memStore{err: ErrMalformedRecord})
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestUpdate_NullLastCaptureChargesNothing(t *testing.T) {
	// Persisted record from long ago with no last capture.
	store := &memStore{ok: true, rec: Record{
		OnPrimary:   time.Hour,
		OnSecondary: time.Hour,
		LastRank:    RankPrimary,
		PrimaryUp:   true,
		SecondaryUp: true,
	}}
	acc, err := NewAccumulator(store)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Update(Observation{CapturedAt: t0, Rank: RankPrimary, PrimaryUp: up(false), SecondaryUp: up(false)}); err != nil {
		t.Fatal(err)
	}
	r := acc.Record()
	if r.OnPrimary != time.Hour || r.OnSecondary != time.Hour {
		t.Errorf("cumulative changed: primary %v secondary %v", r.OnPrimary, r.OnSecondary)
	}
	if r.DownPrimary != 0 || r.DownSecondary != 0 {
		t.Errorf("down time charged: %v %v", r.DownPrimary, r.DownSecondary)
	}
	if !r.LastCapture.Equal(t0) {
		t.Errorf("LastCapture = %v", r.LastCapture)
	}
}

func TestUpdate_Attribution(t *testing.T) {
	store := &memStore{}
	acc, err := NewAccumulator(store)
	if err != nil {
		t.Fatal(err)
	}
	obs := func(at time.Duration, rank Rank, pUp, sUp bool) {
		t.Helper()
		if _, err := acc.Update(Observation{CapturedAt: t0.Add(at), Rank: rank, PrimaryUp: up(pUp), SecondaryUp: up(sUp)}); err != nil {
			t.Fatal(err)
		}
	}

	obs(0, RankPrimary, true, true)
	obs(3*time.Minute, RankPrimary, true, false)
	obs(4*time.Minute, RankSecondary, false, true)

	r := acc.Record()
	if r.OnPrimary != 3*time.Minute {
		t.Errorf("OnPrimary = %v, want 3m", r.OnPrimary)
	}
	if r.OnSecondary != time.Minute {
		t.Errorf("OnSecondary = %v, want 1m", r.OnSecondary)
	}
	if math.Abs(r.OnPrimaryPct-75) > 1e-9 {
		t.Errorf("OnPrimaryPct = %v, want 75", r.OnPrimaryPct)
	}
	if r.DownSecondary != 3*time.Minute {
		t.Errorf("DownSecondary = %v, want 3m", r.DownSecondary)
	}
	if r.DownPrimary != time.Minute {
		t.Errorf("DownPrimary = %v, want 1m", r.DownPrimary)
	}
	if r.ToSecondaryCount != 1 {
		t.Errorf("ToSecondaryCount = %d, want 1", r.ToSecondaryCount)
	}
	if store.saves != 3 {
		t.Errorf("saves = %d, want one per update", store.saves)
	}
}

func TestUpdate_PctWithNoRankedTime(t *testing.T) {
	acc, _ := NewAccumulator(&memStore{})
	acc.Update(Observation{CapturedAt: t0, Rank: RankUnknown})
	if acc.Record().OnPrimaryPct != 100 {
		t.Errorf("pct = %v, want 100", acc.Record().OnPrimaryPct)
	}
	// All secondary time is 0%, not 100%.
	acc.Update(Observation{CapturedAt: t0.Add(time.Minute), Rank: RankSecondary})
	if acc.Record().OnPrimaryPct != 0 {
		t.Errorf("pct = %v, want 0", acc.Record().OnPrimaryPct)
	}
}

func TestUpdate_NegativeDeltaIgnored(t *testing.T) {
	acc, _ := NewAccumulator(&memStore{})
	acc.Update(Observation{CapturedAt: t0, Rank: RankPrimary})
	acc.Update(Observation{CapturedAt: t0.Add(-time.Hour), Rank: RankPrimary})
	if acc.Record().OnPrimary != 0 {
		t.Errorf("clock step back charged %v", acc.Record().OnPrimary)
	}
}

func TestUpdate_Edges(t *testing.T) {
	acc, _ := NewAccumulator(&memStore{})

	edges, _ := acc.Update(Observation{CapturedAt: t0, Rank: RankPrimary, Identity: "198.51.100.1",
		PrimaryUp: up(true), SecondaryUp: up(true)})
	want := []EdgeKind{ToPrimary, PrimaryWentUp, SecondaryWentUp, IdentityChange}
	if got := kinds(edges); !equalKinds(got, want) {
		t.Errorf("first update edges = %v, want %v", got, want)
	}
	if edges[0].Dwell >= 0 {
		t.Errorf("ToPrimary dwell with no history = %v, want negative", edges[0].Dwell)
	}

	// Nothing changed: no edges, but still flushed.
	edges, _ = acc.Update(Observation{CapturedAt: t0.Add(time.Minute), Rank: RankPrimary, Identity: "198.51.100.1",
		PrimaryUp: up(true), SecondaryUp: up(true)})
	if len(edges) != 0 {
		t.Errorf("steady state produced edges %v", kinds(edges))
	}

	edges, _ = acc.Update(Observation{CapturedAt: t0.Add(2 * time.Minute), Rank: RankSecondary, Identity: "192.0.2.9",
		PrimaryUp: up(false), SecondaryUp: up(true)})
	want = []EdgeKind{ToSecondary, PrimaryWentDown, IdentityChange}
	if got := kinds(edges); !equalKinds(got, want) {
		t.Errorf("failover edges = %v, want %v", got, want)
	}
	id := edges[2]
	if id.From != "198.51.100.1" || id.To != "192.0.2.9" {
		t.Errorf("identity edge = %+v", id)
	}

	edges, _ = acc.Update(Observation{CapturedAt: t0.Add(7 * time.Minute), Rank: RankPrimary, Identity: "198.51.100.1",
		PrimaryUp: up(true), SecondaryUp: up(false)})
	if !hasEdge(edges, ToPrimary) || !hasEdge(edges, SecondaryWentDown) || !hasEdge(edges, PrimaryWentUp) {
		t.Errorf("failback edges = %v", kinds(edges))
	}
	if edges[0].Dwell != 5*time.Minute {
		t.Errorf("time on secondary = %v, want 5m", edges[0].Dwell)
	}
}

func TestUpdate_FailedProbeReusesLastValue(t *testing.T) {
	acc, _ := NewAccumulator(&memStore{})
	acc.Update(Observation{CapturedAt: t0, Rank: RankPrimary, PrimaryUp: up(true), SecondaryUp: up(false)})
	edges, _ := acc.Update(Observation{CapturedAt: t0.Add(time.Minute), Rank: RankPrimary})
	if len(edges) != 0 {
		t.Errorf("absent probes produced edges %v", kinds(edges))
	}
	r := acc.Record()
	if !r.PrimaryUp || r.SecondaryUp {
		t.Errorf("up flags changed: %v %v", r.PrimaryUp, r.SecondaryUp)
	}
	if r.DownSecondary != time.Minute {
		t.Errorf("DownSecondary = %v, want 1m from reused down state", r.DownSecondary)
	}
}

func TestUpdate_PersistFailureKeepsMemory(t *testing.T) {
	store := &memStore{saveFn: func(Record) error { return ErrPersist }}
	acc, _ := NewAccumulator(store)
	acc.Update(Observation{CapturedAt: t0, Rank: RankPrimary})
	_, err := acc.Update(Observation{CapturedAt: t0.Add(time.Minute), Rank: RankPrimary})
	if !errors.Is(err, ErrPersist) {
		t.Errorf("err = %v, want ErrPersist", err)
	}
	if acc.Record().OnPrimary != time.Minute {
		t.Errorf("in-memory record not updated: %v", acc.Record().OnPrimary)
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2", store.saves)
	}
}

func TestEdgeKind_String(t *testing.T) {
	if ToSecondary.String() != "toSecondary" || IdentityChange.String() != "identityChange" {
		t.Error("unexpected edge names")
	}
}

func equalKinds(a, b []EdgeKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
