package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SlightlyLoony/Monitor/pkg/types"
	"github.com/SlightlyLoony/Monitor/server/internal/api"
	"github.com/SlightlyLoony/Monitor/server/internal/store"
	"github.com/SlightlyLoony/Monitor/server/internal/ws"
)

// frame decodes the envelope with the snapshot or event payload.
type frame struct {
	Kind string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func topicStatus(topic string) types.Status {
	return types.Status{
		Topic:     topic,
		Fields:    map[string]any{"monitor." + topic + ".messageIntervalMs": 60000},
		Timestamp: time.Now().UnixMilli(),
	}
}

func storeWith(topics ...string) *store.Store {
	st := store.New(5*time.Minute, 100, time.Hour)
	for _, topic := range topics {
		st.PutStatus(topicStatus(topic))
	}
	return st
}

// console serves a hub over httptest and runs its ticker until the test ends
// or stop is called.
type console struct {
	hub  *ws.Hub
	url  string
	stop context.CancelFunc
}

func startConsole(t *testing.T, st *store.Store, every time.Duration) *console {
	t.Helper()
	hub := ws.New(st, every)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(hub)
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &console{hub: hub, url: "ws" + strings.TrimPrefix(srv.URL, "http"), stop: cancel}
}

func (c *console) subscribe(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(c.url+query, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitCount polls until the hub holds want subscribers.
func (c *console) waitCount(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Count = %d, want %d", c.hub.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func next(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func snapshotOf(t *testing.T, f frame) api.SnapshotResponse {
	t.Helper()
	if f.Kind != ws.KindSnapshot {
		t.Fatalf("frame kind = %q, want %q", f.Kind, ws.KindSnapshot)
	}
	var snap api.SnapshotResponse
	if err := json.Unmarshal(f.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func eventOf(t *testing.T, f frame) types.Event {
	t.Helper()
	if f.Kind != ws.KindEvent {
		t.Fatalf("frame kind = %q, want %q", f.Kind, ws.KindEvent)
	}
	var ev types.Event
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestSubscribe_SnapshotOnConnect(t *testing.T) {
	tests := []struct {
		name   string
		topics []string
	}{
		{"no topics", nil},
		{"two topics", []string{"isp.monitor", "lan.monitor"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := startConsole(t, storeWith(tc.topics...), time.Hour)
			snap := snapshotOf(t, next(t, c.subscribe(t, "")))
			if len(snap.Status) != len(tc.topics) {
				t.Errorf("status topics = %d, want %d", len(snap.Status), len(tc.topics))
			}
			if snap.GeneratedAt == "" {
				t.Error("generated_at is empty")
			}
		})
	}
}

func TestRun_TickCarriesNewTopic(t *testing.T) {
	st := storeWith()
	c := startConsole(t, st, 20*time.Millisecond)
	conn := c.subscribe(t, "")
	snapshotOf(t, next(t, conn))

	st.PutStatus(topicStatus("ups.monitor"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := snapshotOf(t, next(t, conn))
		if len(snap.Status) == 1 && snap.Status[0].Topic == "ups.monitor" {
			return
		}
	}
	t.Fatal("no tick snapshot carried ups.monitor")
}

func TestCount_FollowsConnections(t *testing.T) {
	c := startConsole(t, storeWith(), time.Hour)
	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = c.subscribe(t, "")
		next(t, conns[i])
	}
	c.waitCount(t, 3)

	conns[0].Close()
	c.waitCount(t, 2)
}

func TestRun_StopDisconnectsAll(t *testing.T) {
	c := startConsole(t, storeWith(), time.Hour)
	conn := c.subscribe(t, "")
	next(t, conn)
	c.waitCount(t, 1)

	c.stop()
	c.waitCount(t, 0)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after stop")
	}
}

func TestHandleEvent_Filters(t *testing.T) {
	c := startConsole(t, storeWith(), time.Hour)
	all := c.subscribe(t, "")
	severe := c.subscribe(t, "?min_level=8")
	isp := c.subscribe(t, "?tag=isp.toSecondary")
	for _, conn := range []*websocket.Conn{all, severe, isp} {
		next(t, conn)
	}
	c.waitCount(t, 3)

	c.hub.HandleEvent(types.Event{ID: "1", Tag: "lan.down", Level: 5})
	c.hub.HandleEvent(types.Event{ID: "2", Tag: "isp.toSecondary", Level: 9})

	if ev := eventOf(t, next(t, all)); ev.ID != "1" {
		t.Errorf("unfiltered: first event %q, want 1", ev.ID)
	}
	if ev := eventOf(t, next(t, all)); ev.ID != "2" {
		t.Errorf("unfiltered: second event %q, want 2", ev.ID)
	}
	if ev := eventOf(t, next(t, severe)); ev.ID != "2" || ev.Level != 9 {
		t.Errorf("min_level=8: got %+v, want event 2", ev)
	}
	if ev := eventOf(t, next(t, isp)); ev.ID != "2" || ev.Tag != "isp.toSecondary" {
		t.Errorf("tag filter: got %+v, want event 2", ev)
	}
}

func TestServeHTTP_Rejects(t *testing.T) {
	srv := httptest.NewServer(ws.New(storeWith(), time.Hour))
	defer srv.Close()

	tests := []struct {
		name string
		path string
		dial bool
	}{
		{"plain GET", "/", false},
		{"min_level out of range", "/?min_level=12", true},
		{"min_level not a number", "/?min_level=high", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var code int
			if tc.dial {
				_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+tc.path, nil)
				if err == nil || resp == nil {
					t.Fatalf("dial succeeded or no response: %v", err)
				}
				code = resp.StatusCode
			} else {
				resp, err := http.Get(srv.URL + tc.path)
				if err != nil {
					t.Fatalf("GET: %v", err)
				}
				resp.Body.Close()
				code = resp.StatusCode
			}
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
		})
	}
}
