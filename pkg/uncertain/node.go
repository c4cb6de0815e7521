// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package uncertain

import (
	"math/rand/v2"

	"golang.org/x/exp/constraints"
)

// -----------------------------------------------------------------------------
// Core Interfaces
// -----------------------------------------------------------------------------

// Node is an uncertain value of type T.
//
// Description:
//
//	Sample draws one value for the given epoch. Ordinary nodes may consume
//	randomness on every call. Nodes wrapped by Cache or Share return the
//	same value for repeated calls at the same epoch and consume no further
//	randomness after the first call.
//
// Inputs:
//   - rng: The query's random source. Must not be nil.
//   - epoch: Identifies one synchronized draw of the whole graph.
//
// Outputs:
//   - T: The sampled value.
type Node[T any] interface {
	Sample(rng *rand.Rand, epoch uint64) T
}

// Resetter is implemented by nodes that hold per-query state.
//
// Query engines reset the root before the first sample to release values
// cached by an earlier query. Combinators forward the call to their
// operands. Cache slots are also keyed by the query's source, so a stale
// value is never served even where the walk cannot reach it.
type Resetter interface {
	Reset()
}

// resetWalker is implemented by the package's own nodes. seen holds the
// nodes already visited, so a sub-graph reachable through several paths is
// walked once.
type resetWalker interface {
	resetWith(seen map[any]struct{})
}

// reset releases cached state reachable from n, if any.
func reset(n any) {
	resetWith(n, make(map[any]struct{}))
}

func resetWith(n any, seen map[any]struct{}) {
	switch r := n.(type) {
	case resetWalker:
		r.resetWith(seen)
	case Resetter:
		r.Reset()
	}
}

// firstVisit marks key as seen and reports whether it was new. Keys are
// node pointers.
func firstVisit(seen map[any]struct{}, key any) bool {
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	return true
}

// Func adapts an ordinary function to the Node interface.
//
// Useful for ad-hoc nodes that depend on the epoch itself, or to wrap a
// sampler that is not expressed as a Variate.
type Func[T any] func(rng *rand.Rand, epoch uint64) T

// Sample calls f(rng, epoch).
func (f Func[T]) Sample(rng *rand.Rand, epoch uint64) T {
	return f(rng, epoch)
}

// -----------------------------------------------------------------------------
// Constraints
// -----------------------------------------------------------------------------

// Number is the set of value types the arithmetic combinators accept.
type Number interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// Float is the set of value types Expect can estimate.
type Float interface {
	constraints.Float
}
