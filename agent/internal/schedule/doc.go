// Package schedule drives monitors at their configured intervals.
//
// Each monitor gets its own goroutine and ticker, so a slow monitor never
// delays another and a single monitor's cycles never overlap.
package schedule
