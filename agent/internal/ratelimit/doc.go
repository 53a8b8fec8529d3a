// Package ratelimit suppresses repeats of the same event key closer together
// than a minimum interval.
//
// Times passed in are the cycle's scheduled boundary, not the wall clock at
// emission, so irregular cycle spacing does not make the cadence drift.
// A Limiter belongs to one monitor instance and is not safe for concurrent use.
package ratelimit
