package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SlightlyLoony/Monitor/pkg/types"
	"github.com/SlightlyLoony/Monitor/server/internal/config"
)

const queueSize = 256

// Notifier delivers events at or above a minimum level to webhooks.
// Notifier is safe for concurrent use.
type Notifier struct {
	minLevel int
	webhooks []config.WebhookConfig
	queue    chan types.Event
	client   *http.Client
}

// New creates a Notifier from the console notify configuration.
// A Notifier with no webhooks is valid; HandleEvent becomes a no-op.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		minLevel: cfg.MinLevel,
		webhooks: cfg.Webhooks,
		queue:    make(chan types.Event, queueSize),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// HandleEvent queues ev for delivery if its level qualifies.
func (n *Notifier) HandleEvent(ev types.Event) {
	if len(n.webhooks) == 0 || ev.Level < n.minLevel {
		return
	}
	select {
	case n.queue <- ev:
	default:
		slog.Warn("notify: queue full, dropping event", "tag", ev.Tag, "id", ev.ID)
	}
}

// Run delivers queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}

// deliver sends ev to all configured targets. Errors are logged.
func (n *Notifier) deliver(ctx context.Context, ev types.Event) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, url, ev)
		case "teams":
			err = n.sendTeams(ctx, url, ev)
		case "http":
			err = n.sendHTTP(ctx, url, ev)
		default:
			slog.Warn("notify: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"tag", ev.Tag,
				"err", err,
			)
		} else {
			slog.Debug("notify: webhook delivered",
				"type", wh.Type,
				"tag", ev.Tag,
				"level", ev.Level,
			)
		}
	}
}

func (n *Notifier) sendSlack(ctx context.Context, url string, ev types.Event) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s: %s", levelLabel(ev.Level), ev.Subject, ev.Message),
	})
	return n.post(ctx, url, body)
}

func (n *Notifier) sendTeams(ctx context.Context, url string, ev types.Event) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": levelColor(ev.Level),
		"summary":    ev.Tag,
		"title":      fmt.Sprintf("%s %s", levelLabel(ev.Level), ev.Subject),
		"text":       ev.Message,
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, url, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, url string, ev types.Event) error {
	body, _ := json.Marshal(map[string]interface{}{"event": ev})
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// levelLabel maps the 0..9 event level onto three bands.
func levelLabel(level int) string {
	switch {
	case level >= 9:
		return "[CRITICAL]"
	case level >= 6:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func levelColor(level int) string {
	switch {
	case level >= 9:
		return "FF4F6A"
	case level >= 6:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
