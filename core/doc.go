// Package core implements the composition and replay engine: the container
// types that decide which transforms run, in what order and with what
// probability, how auxiliary box/keypoint processors are shared across a
// pipeline, how per-call randomness is recorded for bit-exact replay, and
// how pipeline topology is serialized to a restorable description.
//
// Concrete pixel transforms live outside this package and are consumed
// through the Transform interface; see the transform package for a leaf
// implementation kit.
package core
