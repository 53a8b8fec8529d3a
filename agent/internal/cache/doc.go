// Package cache is a process-wide lookup cache shared by monitor instances.
//
// GetOrCompute is an atomic check-then-insert: concurrent misses for the same
// key run the compute function once and all callers receive its result.
// Errors are returned to every waiting caller but never cached.
package cache
