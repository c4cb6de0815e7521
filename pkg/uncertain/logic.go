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
	"cmp"
	"math/rand/v2"
)

// -----------------------------------------------------------------------------
// Boolean Combinators
// -----------------------------------------------------------------------------

// Negation is the logical negation of a boolean node.
type Negation[B ~bool] struct {
	node Node[B]
}

// Not returns a node yielding !n. Shorthand for Map(n, func(b B) bool { return !bool(b) }).
func Not[B ~bool](n Node[B]) *Negation[B] {
	return &Negation[B]{node: n}
}

// Sample negates one sample of the operand.
func (n *Negation[B]) Sample(rng *rand.Rand, epoch uint64) bool {
	return !bool(n.node.Sample(rng, epoch))
}

// Reset forwards to the operand.
func (n *Negation[B]) Reset() { reset(n) }

func (n *Negation[B]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, n) {
		resetWith(n.node, seen)
	}
}

// Conjunction is the short-circuiting logical AND of two boolean nodes.
type Conjunction[B ~bool] struct {
	a, b Node[B]
}

// And returns a node yielding a && b.
//
// Prefer And over Join(a, b, ...): b is not sampled, and consumes no
// randomness, whenever a samples false.
func And[B ~bool](a, b Node[B]) *Conjunction[B] {
	return &Conjunction[B]{a: a, b: b}
}

// Sample evaluates a, then b only if a is true.
func (c *Conjunction[B]) Sample(rng *rand.Rand, epoch uint64) bool {
	return bool(c.a.Sample(rng, epoch)) && bool(c.b.Sample(rng, epoch))
}

// Reset forwards to both operands.
func (c *Conjunction[B]) Reset() { reset(c) }

func (c *Conjunction[B]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, c) {
		resetWith(c.a, seen)
		resetWith(c.b, seen)
	}
}

// Disjunction is the short-circuiting logical OR of two boolean nodes.
type Disjunction[B ~bool] struct {
	a, b Node[B]
}

// Or returns a node yielding a || b.
//
// b is not sampled whenever a samples true.
func Or[B ~bool](a, b Node[B]) *Disjunction[B] {
	return &Disjunction[B]{a: a, b: b}
}

// Sample evaluates a, then b only if a is false.
func (d *Disjunction[B]) Sample(rng *rand.Rand, epoch uint64) bool {
	return bool(d.a.Sample(rng, epoch)) || bool(d.b.Sample(rng, epoch))
}

// Reset forwards to both operands.
func (d *Disjunction[B]) Reset() { reset(d) }

func (d *Disjunction[B]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, d) {
		resetWith(d.a, seen)
		resetWith(d.b, seen)
	}
}

// -----------------------------------------------------------------------------
// Comparisons
// -----------------------------------------------------------------------------

// Comparison compares two ordered operands sample by sample.
type Comparison[T cmp.Ordered] struct {
	a, b Node[T]
	op   string
	fn   func(a, b T) bool
}

// Greater returns a node yielding a > b.
func Greater[T cmp.Ordered](a, b Node[T]) *Comparison[T] {
	return &Comparison[T]{a: a, b: b, op: ">", fn: func(x, y T) bool { return x > y }}
}

// Less returns a node yielding a < b.
func Less[T cmp.Ordered](a, b Node[T]) *Comparison[T] {
	return &Comparison[T]{a: a, b: b, op: "<", fn: func(x, y T) bool { return x < y }}
}

// AtLeast returns a node yielding a >= b.
func AtLeast[T cmp.Ordered](a, b Node[T]) *Comparison[T] {
	return &Comparison[T]{a: a, b: b, op: ">=", fn: func(x, y T) bool { return x >= y }}
}

// AtMost returns a node yielding a <= b.
func AtMost[T cmp.Ordered](a, b Node[T]) *Comparison[T] {
	return &Comparison[T]{a: a, b: b, op: "<=", fn: func(x, y T) bool { return x <= y }}
}

// Sample samples a then b and compares them.
func (c *Comparison[T]) Sample(rng *rand.Rand, epoch uint64) bool {
	x := c.a.Sample(rng, epoch)
	y := c.b.Sample(rng, epoch)
	return c.fn(x, y)
}

// Op returns the comparison operator, e.g. ">=".
func (c *Comparison[T]) Op() string {
	return c.op
}

// Reset forwards to both operands.
func (c *Comparison[T]) Reset() { reset(c) }

func (c *Comparison[T]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, c) {
		resetWith(c.a, seen)
		resetWith(c.b, seen)
	}
}
