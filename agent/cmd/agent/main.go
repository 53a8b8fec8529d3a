package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SlightlyLoony/Monitor/agent/internal/cache"
	"github.com/SlightlyLoony/Monitor/agent/internal/config"
	"github.com/SlightlyLoony/Monitor/agent/internal/metrics"
	"github.com/SlightlyLoony/Monitor/agent/internal/monitor"
	"github.com/SlightlyLoony/Monitor/agent/internal/schedule"
	"github.com/SlightlyLoony/Monitor/agent/internal/source"
	"github.com/SlightlyLoony/Monitor/pkg/bus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Agent.SlogLevel()}))
	slog.SetDefault(logger)

	slog.Info("monitor-agent starting",
		"config", *configPath,
		"host", cfg.Agent.Host,
		"monitors", len(cfg.Agent.Monitors),
		"bus", cfg.Agent.Bus.URL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := bus.Connect(cfg.Agent.Bus)
	if err != nil {
		slog.Error("failed to connect to event bus", "url", cfg.Agent.Bus.URL, "err", err)
		os.Exit(1)
	}
	defer client.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	env := &monitor.Env{
		Host:         cfg.Agent.Host,
		Publisher:    client,
		StatsDir:     cfg.Agent.StatsDir,
		Lookups:      cache.New[string, source.Provider](),
		Metrics:      m,
		CycleTimeout: cfg.Agent.CycleTimeout,
		StateTTL:     cfg.Agent.StateTTL,
	}

	// A monitor that cannot be built is logged and skipped; the rest run.
	reg := monitor.DefaultRegistry()
	sched := schedule.New(m)
	for _, mc := range cfg.Agent.Monitors {
		mon, err := reg.Build(env, mc)
		if err != nil {
			slog.Error("skipping monitor", "monitor", mc.Name, "type", mc.Type, "err", err)
			continue
		}
		if err := sched.Add(mon); err != nil {
			slog.Error("skipping monitor", "monitor", mc.Name, "err", err)
			continue
		}
		slog.Info("registered monitor", "monitor", mc.Name, "type", mc.Type,
			"interval", mc.Interval, "triggers", len(mc.Triggers))
	}
	if sched.Len() == 0 {
		slog.Warn("no monitors configured, agent will idle")
	}

	// Trigger definitions are fixed for the life of the process; reloads are
	// reported so operators know a restart is needed.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Warn("config changed on disk, restart to apply",
				"monitors", len(updated.Agent.Monitors))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Agent.MetricsAddr != "off" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Agent.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics server listening", "addr", cfg.Agent.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	sched.Run(ctx)

	slog.Info("monitor-agent shutting down")
	if metricsSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		metricsSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}
}
