// Package monitor runs monitor instances: one sampling cycle at a time,
// sample → evaluate triggers → emit → update statistics → publish status.
//
// Monitor types are created through a Registry mapping a type name to a
// Factory. Every factory receives the same Env, the process-wide context
// (bus publisher, lookup cache, metrics, limits) built once in main.
//
// Errors:
//   - *ConfigError: a monitor could not be built; main logs it and goes on
//     with the remaining monitors.
//   - *SampleError: a cycle's sample failed; the cycle is abandoned before
//     any state changes and a rate-limited "<name>.sampleFailure" event is
//     emitted instead. Run never returns an error.
package monitor
