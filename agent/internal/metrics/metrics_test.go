package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Emitted("lan", "LAN.down")
	m.Emitted("lan", "LAN.down")
	m.Suppressed("lan", "LAN.down")
	m.PublishFailed("lan", KindStatus)
	m.CycleDone("lan", ResultOK, 20*time.Millisecond)
	m.CycleDone("lan", ResultFailed, time.Second)
	m.PersistError("isp")
	m.SetStateKeys("lan", 3)

	if got := testutil.ToFloat64(m.EventsEmitted.WithLabelValues("lan", "LAN.down")); got != 2 {
		t.Errorf("emitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsSuppressed.WithLabelValues("lan", "LAN.down")); got != 1 {
		t.Errorf("suppressed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PublishErrors.WithLabelValues("lan", KindStatus)); got != 1 {
		t.Errorf("publish errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Cycles.WithLabelValues("lan", ResultFailed)); got != 1 {
		t.Errorf("failed cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PersistErrors.WithLabelValues("isp")); got != 1 {
		t.Errorf("persist errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StateKeys.WithLabelValues("lan")); got != 3 {
		t.Errorf("state keys = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(m.CycleDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.Emitted("a", "b")
	m.Suppressed("a", "b")
	m.PublishFailed("a", KindEvent)
	m.CycleDone("a", ResultOK, time.Second)
	m.PersistError("a")
	m.SetStateKeys("a", 1)
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("second registration with the same registry did not panic")
		}
	}()
	New(reg)
}
