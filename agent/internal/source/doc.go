// Package source provides the external sources a monitor samples.
//
// Every source returns an already-parsed Sample: a set of named targets, each
// carrying numeric fields (what triggers read) and string attributes. Sources
// never decide whether anything is wrong; that is the trigger engine's job.
//
// Implemented sources:
//   - prometheus.go: text exposition scrape, targets taken from a label
//   - json.go: JSON document, targets from an object or an array
//   - tcp.go: TCP connect checks with retries and growing timeouts
//   - grpchealth.go: grpc.health.v1 checks per service
//   - tlscert.go: leaf certificate expiry per endpoint
//   - link.go: dual-uplink state (router, per-link probes, public address)
//
// HTTP sources share the authenticating client in http.go
// (none | apikey | bearer | basic | mtls). Guard in breaker.go wraps any
// source in a circuit breaker. rate.go turns listed counters into per-minute
// "_pm" fields for the prometheus and json sources. Classify maps a sampling error to the short
// failure class used in diagnostics.
package source
