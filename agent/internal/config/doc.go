// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent} - the `agent:` section; a `server:` section is ignored
//   - AgentConfig - host, log_level, bus, stats_dir, metrics_addr,
//     cycle_timeout, state_ttl, monitors []
//   - Monitor - name, type, interval, params (decoded by the monitor factory),
//     triggers [], failure_interval, failure_level, breaker, auth, tls
//   - Trigger - target, lower/upper/bound, kind, field, class, tag, type,
//     subject, message, level, min_interval
//   - AuthConfig - mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s cycle timeout, 24h
// state TTL, 1h failure interval at level 7, breaker 5 failures / 1m), then
// validates agent-wide fields. Per-monitor validation happens at build time.
//
// Watch(ctx, path, onChange) uses fsnotify on the containing directory and
// calls onChange with the newly parsed Config.
package config
