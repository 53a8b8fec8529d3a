package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SlightlyLoony/Monitor/pkg/bus"
	"github.com/SlightlyLoony/Monitor/server/internal/api"
	"github.com/SlightlyLoony/Monitor/server/internal/archive"
	"github.com/SlightlyLoony/Monitor/server/internal/auth"
	"github.com/SlightlyLoony/Monitor/server/internal/config"
	"github.com/SlightlyLoony/Monitor/server/internal/notify"
	"github.com/SlightlyLoony/Monitor/server/internal/receiver"
	"github.com/SlightlyLoony/Monitor/server/internal/store"
	"github.com/SlightlyLoony/Monitor/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve static UI files from this directory; leave empty to disable")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	slog.Info("monitor-console starting",
		"config", *configPath,
		"http_port", cfg.Server.HTTPPort,
		"bus", cfg.Server.Bus.URL,
		"auth_mode", cfg.Server.Auth.Mode,
		"status_ttl", cfg.Server.Status.TTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store with background TTL eviction.
	st := store.New(cfg.Server.Status.TTL, cfg.Server.Events.Capacity, cfg.Server.Events.TTL)
	go st.Run(ctx)

	// WebSocket hub: periodic snapshots plus live event push.
	hub := ws.New(st, cfg.Server.Broadcast)
	go hub.Run(ctx)

	sinks := []receiver.Sink{hub}

	notifier := notify.New(cfg.Server.Notify)
	go notifier.Run(ctx)
	sinks = append(sinks, notifier)

	if dsn := cfg.Server.Archive.DSN(); dsn != "" {
		arc, err := archive.Open(ctx, dsn)
		if err != nil {
			slog.Error("failed to open event archive", "err", err)
			os.Exit(1)
		}
		defer arc.Close()
		go arc.Run(ctx)
		sinks = append(sinks, arc)
		slog.Info("event archive enabled")
	}

	client, err := bus.Connect(cfg.Server.Bus)
	if err != nil {
		slog.Error("failed to connect to event bus", "url", cfg.Server.Bus.URL, "err", err)
		os.Exit(1)
	}
	defer client.Close()

	rec := receiver.New(st, sinks...)
	if _, err := rec.Subscribe(client); err != nil {
		slog.Error("failed to subscribe", "err", err)
		os.Exit(1)
	}
	slog.Info("subscribed to event bus",
		"events", cfg.Server.Bus.EventsSubject,
		"status", cfg.Server.Bus.StatusPrefix+".>",
	)

	// Combined HTTP server: REST API + WebSocket hub on HTTPPort.
	requireKey := auth.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(api.New(st)))
	httpMux.Handle("/ws/stream", requireKey(hub))

	// Optional static UI; unknown paths fall back to index.html.
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("monitor-console shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
