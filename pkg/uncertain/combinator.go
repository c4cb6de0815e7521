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
)

// -----------------------------------------------------------------------------
// Map
// -----------------------------------------------------------------------------

// Mapped applies a function to every sample of its operand.
type Mapped[T, U any] struct {
	node Node[T]
	fn   func(T) U
}

// Map returns a node whose samples are fn applied to the samples of n.
func Map[T, U any](n Node[T], fn func(T) U) *Mapped[T, U] {
	return &Mapped[T, U]{node: n, fn: fn}
}

// Sample samples the operand and applies the function.
func (m *Mapped[T, U]) Sample(rng *rand.Rand, epoch uint64) U {
	return m.fn(m.node.Sample(rng, epoch))
}

// Reset forwards to the operand.
func (m *Mapped[T, U]) Reset() { reset(m) }

func (m *Mapped[T, U]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, m) {
		resetWith(m.node, seen)
	}
}

// -----------------------------------------------------------------------------
// FlatMap
// -----------------------------------------------------------------------------

// FlatMapped expresses a conditional distribution: the node sampled second
// is chosen by the value sampled first.
type FlatMapped[T, U any] struct {
	node Node[T]
	fn   func(T) Node[U]
}

// FlatMap returns a node that samples n, calls fn with the value to obtain a
// sub-node, and samples that sub-node once at the same epoch.
//
// Description:
//
//	Branches may return different concrete node types. When a branch
//	returns a node that is also referenced elsewhere in the graph, wrap it
//	with Share so both references observe the same draw.
//
// Example:
//
//	b := uncertain.FlatMap(a, func(v float64) uncertain.Node[float64] {
//	    if v < 1.5 {
//	        return uncertain.FromVariate(laws.Normal{Mu: 0, Sigma: 1})
//	    }
//	    return uncertain.Point(1.0)
//	})
func FlatMap[T, U any](n Node[T], fn func(T) Node[U]) *FlatMapped[T, U] {
	return &FlatMapped[T, U]{node: n, fn: fn}
}

// Sample samples the operand, then the sub-node chosen by fn.
func (f *FlatMapped[T, U]) Sample(rng *rand.Rand, epoch uint64) U {
	return f.fn(f.node.Sample(rng, epoch)).Sample(rng, epoch)
}

// Reset forwards to the operand. Sub-nodes are produced per sample and are
// not reachable from here; their caches are keyed by the query's source and
// so never serve a value from an earlier query.
func (f *FlatMapped[T, U]) Reset() { reset(f) }

func (f *FlatMapped[T, U]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, f) {
		resetWith(f.node, seen)
	}
}

// -----------------------------------------------------------------------------
// Join
// -----------------------------------------------------------------------------

// Joined combines two operands with a function.
type Joined[A, B, O any] struct {
	a  Node[A]
	b  Node[B]
	fn func(A, B) O
}

// Join returns a node that samples a, then b, and combines them with fn.
//
// The order is fixed so that randomness is consumed deterministically.
func Join[A, B, O any](a Node[A], b Node[B], fn func(A, B) O) *Joined[A, B, O] {
	return &Joined[A, B, O]{a: a, b: b, fn: fn}
}

// Sample samples a then b and applies the function.
func (j *Joined[A, B, O]) Sample(rng *rand.Rand, epoch uint64) O {
	a := j.a.Sample(rng, epoch)
	b := j.b.Sample(rng, epoch)
	return j.fn(a, b)
}

// Reset forwards to both operands.
func (j *Joined[A, B, O]) Reset() { reset(j) }

func (j *Joined[A, B, O]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, j) {
		resetWith(j.a, seen)
		resetWith(j.b, seen)
	}
}
