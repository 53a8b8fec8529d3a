// Package condition tracks the tri-state history of trigger conditions.
//
// Each (tag, target) key remembers only its previous state: Unknown until the
// first observation, then True or False. Observe applies the firing policy of
// the trigger class:
//
//   - value: fire whenever the condition currently holds
//   - transition: fire only on a False→True edge
//
// On the first observation of a transition trigger, Unknown is taken to equal
// the current state, so startup never produces an edge.
//
// A Tracker belongs to one monitor instance and is not safe for concurrent use.
package condition
