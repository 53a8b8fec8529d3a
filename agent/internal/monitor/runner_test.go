package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
	"github.com/SlightlyLoony/Monitor/agent/internal/source"
	"github.com/SlightlyLoony/Monitor/pkg/types"
)

// recorder is a Publisher that keeps everything it is given.
type recorder struct {
	mu     sync.Mutex
	events []types.Event
	status []types.Status
}

func (r *recorder) PublishEvent(_ context.Context, ev types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) PublishStatus(_ context.Context, st types.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, st)
	return nil
}

func (r *recorder) tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Tag
	}
	return out
}

// scripted returns its samples in order; a nil sample means failure.
type scripted struct {
	steps []*source.Sample
	n     int
}

func (s *scripted) Sample(context.Context) (*source.Sample, error) {
	if s.n >= len(s.steps) {
		return nil, fmt.Errorf("script exhausted: %w", source.ErrUnavailable)
	}
	smp := s.steps[s.n]
	s.n++
	if smp == nil {
		return nil, fmt.Errorf("probe: %w", source.ErrUnavailable)
	}
	return smp, nil
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleOf(values map[string]map[string]float64) *source.Sample {
	smp := source.NewSample(epoch)
	for target, fields := range values {
		for f, v := range fields {
			smp.Set(target, f, v)
		}
	}
	return smp
}

func testEnv(pub *recorder) *Env {
	return &Env{
		Host:         "test",
		Publisher:    pub,
		CycleTimeout: time.Second,
		StateTTL:     24 * time.Hour,
		Now:          func() time.Time { return epoch },
	}
}

func belowTrigger(target string, class string) config.Trigger {
	return config.Trigger{
		Target:  target,
		Kind:    "below",
		Lower:   50,
		Field:   "charge",
		Class:   class,
		Tag:     "ups.low",
		Subject: "%[4]s low",
		Message: "%[4]s at %.0f",
		Level:   8,
	}
}

func newTestRunner(t *testing.T, pub *recorder, src source.Source, triggers ...config.Trigger) *Runner {
	t.Helper()
	r, err := NewRunner(testEnv(pub), config.Monitor{
		Name:            "ups",
		Interval:        time.Minute,
		Triggers:        triggers,
		FailureInterval: time.Hour,
	}, src, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestRun_WildcardFollowsSample(t *testing.T) {
	pub := &recorder{}
	src := &scripted{steps: []*source.Sample{
		sampleOf(map[string]map[string]float64{"a": {"charge": 10}, "b": {"charge": 20}}),
		sampleOf(map[string]map[string]float64{"a": {"charge": 10}}),
	}}
	r := newTestRunner(t, pub, src, belowTrigger("?", "value"))

	r.Run(context.Background(), epoch)
	if got := len(pub.events); got != 2 {
		t.Fatalf("cycle 1: got %d events, want 2", got)
	}
	if pub.events[0].Subject != "a low" || pub.events[1].Subject != "b low" {
		t.Errorf("unexpected subjects: %q, %q", pub.events[0].Subject, pub.events[1].Subject)
	}

	// Value class with no min interval fires again; b has left the sample.
	r.Run(context.Background(), epoch.Add(time.Minute))
	if got := len(pub.events); got != 3 {
		t.Fatalf("cycle 2: got %d events, want 3", got)
	}
	if pub.events[2].Message != "a at 10" {
		t.Errorf("message = %q, want %q", pub.events[2].Message, "a at 10")
	}
}

func TestRun_TransitionFiresOnEdgeOnly(t *testing.T) {
	pub := &recorder{}
	charges := []float64{60, 40, 30, 70, 20}
	steps := make([]*source.Sample, len(charges))
	for i, c := range charges {
		steps[i] = sampleOf(map[string]map[string]float64{"a": {"charge": c}})
	}
	r := newTestRunner(t, pub, &scripted{steps: steps}, belowTrigger("a", "transition"))

	for i := range charges {
		r.Run(context.Background(), epoch.Add(time.Duration(i)*time.Minute))
	}
	if got := len(pub.events); got != 2 {
		t.Fatalf("got %d events, want 2 (cycles 2 and 5)", got)
	}
	if pub.events[0].Message != "a at 40" || pub.events[1].Message != "a at 20" {
		t.Errorf("messages = %q, %q", pub.events[0].Message, pub.events[1].Message)
	}
}

func TestRun_AbsentTargetSkipped(t *testing.T) {
	pub := &recorder{}
	src := &scripted{steps: []*source.Sample{
		sampleOf(map[string]map[string]float64{"a": {"charge": 10}}),
	}}
	r := newTestRunner(t, pub, src, belowTrigger("a, missing", "value"))

	r.Run(context.Background(), epoch)
	if got := len(pub.events); got != 1 {
		t.Fatalf("got %d events, want 1", got)
	}
	if len(pub.status) != 1 {
		t.Fatalf("got %d status snapshots, want 1", len(pub.status))
	}
}

func TestRun_OfflineTargetSkipped(t *testing.T) {
	pub := &recorder{}
	offline := config.Trigger{
		Target: "a", Kind: "equal", Field: FieldOnline, Tag: "ups.offline",
		Subject: "%[4]s offline", Message: "%[4]s offline", Level: 7,
	}
	src := &scripted{steps: []*source.Sample{
		sampleOf(map[string]map[string]float64{"a": {"charge": 10, FieldOnline: 0}}),
	}}
	r := newTestRunner(t, pub, src, belowTrigger("a", "value"), offline)

	r.Run(context.Background(), epoch)
	tags := pub.tags()
	if len(tags) != 1 || tags[0] != "ups.offline" {
		t.Fatalf("tags = %v, want [ups.offline]", tags)
	}
}

func TestRun_FailedCycle(t *testing.T) {
	pub := &recorder{}
	src := &scripted{steps: []*source.Sample{
		sampleOf(map[string]map[string]float64{"a": {"charge": 60}}),
		nil,
		nil,
	}}
	r := newTestRunner(t, pub, src, belowTrigger("a", "transition"))

	r.Run(context.Background(), epoch)
	if got := r.tracker.Len(); got != 1 {
		t.Fatalf("tracker len = %d, want 1", got)
	}
	r.Run(context.Background(), epoch.Add(time.Minute))
	r.Run(context.Background(), epoch.Add(2*time.Minute))

	if got := r.tracker.Len(); got != 1 {
		t.Errorf("tracker changed on failure: len = %d", got)
	}
	tags := pub.tags()
	if len(tags) != 1 || tags[0] != "ups.sampleFailure" {
		t.Fatalf("tags = %v, want one ups.sampleFailure", tags)
	}
	ev := pub.events[0]
	if ev.Subject != source.ClassUnavailable {
		t.Errorf("subject = %q, want %q", ev.Subject, source.ClassUnavailable)
	}
	if ev.Level != 7 {
		t.Errorf("level = %d, want default 7", ev.Level)
	}
	if ev.Source != "monitor.ups" {
		t.Errorf("source = %q", ev.Source)
	}
	if len(pub.status) != 1 {
		t.Errorf("status published on failed cycle: %d snapshots", len(pub.status))
	}
}

func TestRun_StatusFields(t *testing.T) {
	pub := &recorder{}
	smp := sampleOf(map[string]map[string]float64{"a": {"charge": 80}})
	smp.SetAttr("a", "model", "smart-1500")
	r := newTestRunner(t, pub, &scripted{steps: []*source.Sample{smp}})

	r.Run(context.Background(), epoch)
	if len(pub.status) != 1 {
		t.Fatalf("got %d status snapshots, want 1", len(pub.status))
	}
	st := pub.status[0]
	if st.Topic != "ups.monitor" {
		t.Errorf("topic = %q", st.Topic)
	}
	want := map[string]any{
		"monitor.ups.messageIntervalMs": int64(60000),
		"monitor.ups.a.charge":          80.0,
		"monitor.ups.a.model":           "smart-1500",
	}
	for k, v := range want {
		if st.Fields[k] != v {
			t.Errorf("%s = %v (%T), want %v", k, st.Fields[k], st.Fields[k], v)
		}
	}
	if st.Timestamp != epoch.UnixMilli() {
		t.Errorf("timestamp = %d", st.Timestamp)
	}
}

func TestRun_StatusSkipsNonFinite(t *testing.T) {
	pub := &recorder{}
	smp := sampleOf(map[string]map[string]float64{"a": {"charge": 80}})
	smp.Targets["a"].Values["latency"] = math.NaN()
	smp.Targets["a"].Values["peak"] = math.Inf(1)
	r := newTestRunner(t, pub, &scripted{steps: []*source.Sample{smp}})

	r.Run(context.Background(), epoch)
	if len(pub.status) != 1 {
		t.Fatalf("got %d status snapshots, want 1", len(pub.status))
	}
	fields := pub.status[0].Fields
	for _, k := range []string{"monitor.ups.a.latency", "monitor.ups.a.peak"} {
		if v, ok := fields[k]; ok {
			t.Errorf("%s = %v, want absent", k, v)
		}
	}
	if fields["monitor.ups.a.charge"] != 80.0 {
		t.Errorf("charge = %v", fields["monitor.ups.a.charge"])
	}
	if _, err := json.Marshal(pub.status[0]); err != nil {
		t.Errorf("status does not marshal: %v", err)
	}
}

func TestNewRunner_BadTrigger(t *testing.T) {
	_, err := NewRunner(testEnv(&recorder{}), config.Monitor{
		Name:     "ups",
		Interval: time.Minute,
		Triggers: []config.Trigger{{Target: "a", Kind: "sideways", Field: "x", Tag: "t", Subject: "s", Message: "m"}},
	}, &scripted{}, nil)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSampleError_Unwrap(t *testing.T) {
	r := newTestRunner(t, &recorder{}, &scripted{steps: []*source.Sample{nil}})
	_, err := r.sample(context.Background())
	var se *SampleError
	if !errors.As(err, &se) {
		t.Fatalf("want *SampleError, got %T", err)
	}
	if !errors.Is(err, source.ErrUnavailable) {
		t.Error("SampleError should unwrap to ErrUnavailable")
	}
}

func TestRun_UptimePct(t *testing.T) {
	pub := &recorder{}
	ok := sampleOf(map[string]map[string]float64{"a": {"charge": 80}})
	r := newTestRunner(t, pub, &scripted{steps: []*source.Sample{nil, ok}})

	r.Run(context.Background(), epoch)
	r.Run(context.Background(), epoch.Add(time.Minute))

	if len(pub.status) != 1 {
		t.Fatalf("got %d status snapshots, want 1", len(pub.status))
	}
	if got := pub.status[0].Fields["monitor.ups.uptimePct"]; got != 50.0 {
		t.Errorf("uptimePct = %v, want 50", got)
	}
}

func TestUptime_Window(t *testing.T) {
	var u uptime
	if u.pct() != 100 {
		t.Errorf("empty window = %v, want 100", u.pct())
	}
	u.record(false)
	for i := 0; i < uptimeWindow; i++ {
		u.record(true)
	}
	if u.pct() != 100 {
		t.Errorf("failure should have left the window, pct = %v", u.pct())
	}
	u.record(false)
	if want := float64(uptimeWindow-1) / uptimeWindow * 100; u.pct() != want {
		t.Errorf("pct = %v, want %v", u.pct(), want)
	}
}
