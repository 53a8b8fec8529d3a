package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SlightlyLoony/Monitor/pkg/types"
	"github.com/SlightlyLoony/Monitor/server/internal/api"
	"github.com/SlightlyLoony/Monitor/server/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10 // below pongWait
	queueDepth   = 16
	readLimit    = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Frame kinds.
const (
	KindSnapshot = "snapshot"
	KindEvent    = "event"
)

// Frame is the JSON envelope written to subscribers. Data is an
// api.SnapshotResponse for KindSnapshot and a types.Event for KindEvent.
type Frame struct {
	Kind string `json:"event"`
	Data any    `json:"data"`
}

// Hub streams console state to WebSocket subscribers: the snapshot on connect
// and on every tick, and each event as the receiver hands it over.
type Hub struct {
	store *store.Store
	every time.Duration

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// subscriber is one connection and the events it asked for.
type subscriber struct {
	conn     *websocket.Conn
	out      chan []byte
	tag      string
	minLevel int
}

// wants reports whether ev passes the subscriber's tag and level filter.
func (s *subscriber) wants(ev types.Event) bool {
	if s.tag != "" && ev.Tag != s.tag {
		return false
	}
	return ev.Level >= s.minLevel
}

// New returns a Hub reading snapshots from st and pushing one every interval.
func New(st *store.Store, every time.Duration) *Hub {
	return &Hub{store: st, every: every, subs: make(map[*subscriber]struct{})}
}

// Run pushes a snapshot to every subscriber each interval until ctx is done,
// then disconnects them all.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-tick.C:
			h.pushSnapshot()
		}
	}
}

// ServeHTTP upgrades the request and serves one subscriber until it goes
// away. Query parameters tag and min_level narrow the pushed events;
// snapshots are always sent.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minLevel := types.MinLevel
	if v := q.Get("min_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < types.MinLevel || n > types.MaxLevel {
			http.Error(w, "min_level must be an integer in [0, 9]", http.StatusBadRequest)
			return
		}
		minLevel = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s := &subscriber{
		conn:     conn,
		out:      make(chan []byte, queueDepth),
		tag:      q.Get("tag"),
		minLevel: minLevel,
	}
	if data, err := h.snapshotFrame(); err == nil {
		s.out <- data
	}
	h.add(s)
	defer h.drop(s)

	go s.writeLoop()
	s.readLoop()
}

// HandleEvent pushes ev to every subscriber whose filter accepts it.
// It never blocks.
func (h *Hub) HandleEvent(ev types.Event) {
	data, err := json.Marshal(Frame{Kind: KindEvent, Data: ev})
	if err != nil {
		slog.Error("ws: encode event", "tag", ev.Tag, "err", err)
		return
	}
	h.fanout(data, func(s *subscriber) bool { return s.wants(ev) })
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

// drop removes s and closes its queue; the write loop then closes the socket.
func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.out)
	}
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.out)
	}
}

func (h *Hub) pushSnapshot() {
	data, err := h.snapshotFrame()
	if err != nil {
		slog.Error("ws: encode snapshot", "err", err)
		return
	}
	h.fanout(data, nil)
}

func (h *Hub) snapshotFrame() ([]byte, error) {
	return json.Marshal(Frame{Kind: KindSnapshot, Data: api.BuildSnapshot(h.store)})
}

// fanout queues data for every subscriber accepted by keep (all when nil).
// A subscriber whose queue is full is disconnected.
func (h *Hub) fanout(data []byte, keep func(*subscriber) bool) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		if keep == nil || keep(s) {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		select {
		case s.out <- data:
		default:
			slog.Warn("ws: subscriber queue full, disconnecting", "remote", s.conn.RemoteAddr().String())
			h.drop(s)
		}
	}
}

// writeLoop writes queued frames and keepalive pings until the queue is
// closed or a write fails.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes control frames until the peer closes or stops answering
// pings.
func (s *subscriber) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
