// Package runtime implements the stat block workflow as an explicit state machine.
//
// A session advances one stage per Step:
//
//	classify -> retrieve -> generate -> {done | critique} -> revise -> {done | critique} -> ...
//
// Step never mutates its input. The returned state is the checkpoint to persist;
// a failed stage returns the error and no new state, so resuming re-runs the
// same stage against the last checkpoint.
package runtime
