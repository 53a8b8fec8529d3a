package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SlightlyLoony/Monitor/pkg/types"
	"github.com/SlightlyLoony/Monitor/server/internal/config"
)

// capture starts a webhook endpoint that forwards each request body.
func capture(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	got := make(chan []byte, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- b
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func startNotifier(t *testing.T, cfg config.NotifyConfig) *Notifier {
	t.Helper()
	n := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go n.Run(ctx)
	return n
}

func waitBody(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
		return nil
	}
}

func TestNotifier_HTTPDelivery(t *testing.T) {
	srv, got := capture(t)
	t.Setenv("TEST_HOOK_URL", srv.URL)
	n := startNotifier(t, config.NotifyConfig{
		MinLevel: 7,
		Webhooks: []config.WebhookConfig{{Type: "http", URLEnv: "TEST_HOOK_URL"}},
	})

	n.HandleEvent(types.Event{ID: "1", Tag: "wan.toSecondary", Level: 9, Subject: "switched"})

	var payload struct {
		Event types.Event `json:"event"`
	}
	if err := json.Unmarshal(waitBody(t, got), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Event.Tag != "wan.toSecondary" || payload.Event.Level != 9 {
		t.Errorf("payload event = %+v", payload.Event)
	}
}

func TestNotifier_SlackFormat(t *testing.T) {
	srv, got := capture(t)
	t.Setenv("TEST_SLACK_URL", srv.URL)
	n := startNotifier(t, config.NotifyConfig{
		MinLevel: 0,
		Webhooks: []config.WebhookConfig{{Type: "slack", URLEnv: "TEST_SLACK_URL"}},
	})

	n.HandleEvent(types.Event{Tag: "ups.low", Level: 6, Subject: "ups low", Message: "charge 40"})

	body := string(waitBody(t, got))
	if !strings.Contains(body, "[WARNING]") || !strings.Contains(body, "charge 40") {
		t.Errorf("slack body = %s", body)
	}
}

func TestNotifier_BelowMinLevelIgnored(t *testing.T) {
	srv, got := capture(t)
	t.Setenv("TEST_HOOK_URL", srv.URL)
	n := startNotifier(t, config.NotifyConfig{
		MinLevel: 7,
		Webhooks: []config.WebhookConfig{{Type: "http", URLEnv: "TEST_HOOK_URL"}},
	})

	n.HandleEvent(types.Event{Tag: "info", Level: 3})
	select {
	case b := <-got:
		t.Fatalf("unexpected delivery: %s", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLevelLabel(t *testing.T) {
	cases := map[int]string{0: "[INFO]", 5: "[INFO]", 6: "[WARNING]", 8: "[WARNING]", 9: "[CRITICAL]"}
	for level, want := range cases {
		if got := levelLabel(level); got != want {
			t.Errorf("levelLabel(%d) = %q, want %q", level, got, want)
		}
	}
}
