package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeMonitor struct {
	name     string
	interval time.Duration

	mu       sync.Mutex
	runs     []time.Time
	inFlight atomic.Int32
	overlap  atomic.Bool
	hold     time.Duration
	panics   bool
}

func (f *fakeMonitor) Name() string            { return f.name }
func (f *fakeMonitor) Interval() time.Duration { return f.interval }

func (f *fakeMonitor) Run(_ context.Context, scheduled time.Time) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	f.runs = append(f.runs, scheduled)
	f.mu.Unlock()

	time.Sleep(f.hold)
	if f.panics {
		panic("boom")
	}
}

func (f *fakeMonitor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func runFor(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d + 2*time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestScheduler_FirstCycleImmediate(t *testing.T) {
	m := &fakeMonitor{name: "slow", interval: time.Hour}
	s := New(nil)
	if err := s.Add(m); err != nil {
		t.Fatal(err)
	}
	runFor(t, s, 100*time.Millisecond)
	if got := m.count(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestScheduler_NoOverlap(t *testing.T) {
	m := &fakeMonitor{name: "busy", interval: 5 * time.Millisecond, hold: 20 * time.Millisecond}
	s := New(nil)
	if err := s.Add(m); err != nil {
		t.Fatal(err)
	}
	runFor(t, s, 150*time.Millisecond)
	if m.overlap.Load() {
		t.Error("cycles of one monitor overlapped")
	}
	if m.count() < 2 {
		t.Errorf("runs = %d, want at least 2", m.count())
	}
}

func TestScheduler_PanicIsolated(t *testing.T) {
	bad := &fakeMonitor{name: "bad", interval: 10 * time.Millisecond, panics: true}
	good := &fakeMonitor{name: "good", interval: 10 * time.Millisecond}
	s := New(nil)
	for _, m := range []*fakeMonitor{bad, good} {
		if err := s.Add(m); err != nil {
			t.Fatal(err)
		}
	}
	runFor(t, s, 100*time.Millisecond)
	if bad.count() < 2 {
		t.Errorf("panicking monitor ran %d times, want it to keep being scheduled", bad.count())
	}
	if good.count() < 2 {
		t.Errorf("healthy monitor ran %d times", good.count())
	}
}

func TestScheduler_ScheduledTimesIncrease(t *testing.T) {
	m := &fakeMonitor{name: "m", interval: 10 * time.Millisecond}
	s := New(nil)
	if err := s.Add(m); err != nil {
		t.Fatal(err)
	}
	runFor(t, s, 80*time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 1; i < len(m.runs); i++ {
		if !m.runs[i].After(m.runs[i-1]) {
			t.Fatalf("scheduled[%d] = %v not after %v", i, m.runs[i], m.runs[i-1])
		}
	}
}

func TestScheduler_AddRejectsBadInterval(t *testing.T) {
	s := New(nil)
	if err := s.Add(&fakeMonitor{name: "zero"}); err == nil {
		t.Error("expected error for zero interval")
	}
}
