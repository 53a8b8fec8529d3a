package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SlightlyLoony/Monitor/pkg/types"
	"github.com/SlightlyLoony/Monitor/server/internal/store"
)

const (
	// snapshotEvents is how many recent events a snapshot carries.
	snapshotEvents = 50

	// healthWindow is the look-back for the health state.
	healthWindow = time.Hour
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads events and status from the store and returns JSON responses.
type Handler struct {
	store *store.Store
	mux   *http.ServeMux
	now   func() time.Time
}

// New creates a Handler wired to the given store and registers all routes.
func New(st *store.Store) http.Handler {
	h := &Handler{store: st, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/events", h.events)
	h.mux.HandleFunc("/api/v1/status", h.listStatus)
	h.mux.HandleFunc("/api/v1/status/", h.getStatus) // subtree: extracts {topic}
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	topics := h.store.ListStatus()
	resp := HealthResponse{
		TopicCount: len(topics),
		EventCount: h.store.CountEvents(),
	}

	events := h.store.Events(store.EventFilter{})
	if len(events) > 0 {
		resp.LastEventTime = events[0].Time().UTC().Format(time.RFC3339)
	}
	cutoff := h.now().Add(-healthWindow)
	resp.MaxRecentLvl = -1
	for _, ev := range events {
		if ev.Time().Before(cutoff) {
			continue
		}
		resp.RecentEvents++
		if ev.Level > resp.MaxRecentLvl {
			resp.MaxRecentLvl = ev.Level
		}
	}

	switch {
	case len(topics) == 0 && resp.RecentEvents == 0:
		resp.State = "unknown"
	default:
		resp.State = stateFromLevel(resp.MaxRecentLvl)
	}
	if resp.MaxRecentLvl < 0 {
		resp.MaxRecentLvl = 0
	}
	jsonResp(w, http.StatusOK, resp)
}

// events returns GET /api/v1/events?tag=&min_level=&limit=: newest first.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	f := store.EventFilter{Tag: q.Get("tag")}
	if v := q.Get("min_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < types.MinLevel || n > types.MaxLevel {
			jsonErr(w, http.StatusBadRequest, "min_level must be an integer in [0, 9]")
			return
		}
		f.MinLevel = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	jsonResp(w, http.StatusOK, h.store.Events(f))
}

// listStatus returns GET /api/v1/status: all live topics.
func (h *Handler) listStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, statusList(h.store))
}

// getStatus returns GET /api/v1/status/{topic}: a single live topic.
func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	topic := strings.TrimPrefix(r.URL.Path, "/api/v1/status/")
	if topic == "" {
		h.listStatus(w, r)
		return
	}

	e, ok := h.store.GetStatus(topic)
	if !ok {
		jsonErr(w, http.StatusNotFound, "topic not found")
		return
	}
	// Stale entries are treated as not found.
	if h.now().Sub(e.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "topic not found")
		return
	}
	jsonResp(w, http.StatusOK, toStatusResponse(e))
}

// snapshot returns GET /api/v1/snapshot: live status plus recent events.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles the snapshot payload shared by the REST API and the
// WebSocket hub.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	return SnapshotResponse{
		Status:      statusList(st),
		Events:      st.Events(store.EventFilter{Limit: snapshotEvents}),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// stateFromLevel converts the highest recent event level to a health state.
func stateFromLevel(level int) string {
	switch {
	case level >= 9:
		return "critical"
	case level >= 6:
		return "degraded"
	default:
		return "healthy"
	}
}

func statusList(st *store.Store) []StatusResponse {
	entries := st.ListStatus()
	out := make([]StatusResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toStatusResponse(e))
	}
	return out
}

// toStatusResponse maps a store.Entry to its JSON representation.
func toStatusResponse(e *store.Entry) StatusResponse {
	fields := e.Status.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return StatusResponse{
		Topic:     e.Status.Topic,
		Fields:    fields,
		Timestamp: e.Status.Time().UTC().Format(time.RFC3339),
		LastSeen:  e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
