// Package metrics exposes the agent's own Prometheus metrics:
//
//	monitor_events_emitted_total{monitor,tag}
//	monitor_events_suppressed_total{monitor,tag}
//	monitor_publish_errors_total{monitor,kind}
//	monitor_cycles_total{monitor,result}
//	monitor_cycle_duration_seconds{monitor}
//	monitor_persist_errors_total{monitor}
//	monitor_state_keys{monitor}
//
// All methods accept a nil *Metrics and do nothing, so components can be
// built in tests without a registry.
package metrics
