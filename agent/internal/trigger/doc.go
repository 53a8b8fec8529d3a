// Package trigger holds trigger definitions and their evaluation.
//
// A Definition is built once from configuration by New and never changes
// afterwards. Evaluate maps a sampled value to a boolean according to the
// definition's comparison kind:
//
//	equal    value == lower
//	unequal  value != lower
//	in       lower <= value <= upper
//	out      value < lower || value > upper
//	below    value < lower
//	above    value > upper
//
// Comparisons are exact; no tolerance is applied.
//
// Subject and message templates take four arguments: the value, the lower
// bound, the upper bound and the target name. A placeholder names its
// argument as %N$ or %[N] ("%4$s", "%.1[1]f", "%[1].1f"); placeholders without
// a position consume the arguments in order, independently of positioned ones,
// so "%[4]s at %.0f" renders the target and then the value. Supported verbs
// are f F e E g G d s v for numbers and s v q for the target; %% and %n write a
// percent sign and a newline.
package trigger
