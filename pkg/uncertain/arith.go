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

// Numeric edge cases follow Go: integer division by zero panics, float
// division by zero yields ±Inf or NaN.

// binary holds the two operands shared by the arithmetic nodes.
type binary[T Number] struct {
	a, b Node[T]
}

// operands samples a then b.
func (o binary[T]) operands(rng *rand.Rand, epoch uint64) (T, T) {
	x := o.a.Sample(rng, epoch)
	y := o.b.Sample(rng, epoch)
	return x, y
}

func (o binary[T]) resetOperands(seen map[any]struct{}) {
	resetWith(o.a, seen)
	resetWith(o.b, seen)
}

// Sum yields a + b.
type Sum[T Number] struct{ binary[T] }

// Add returns a node yielding the sum of a and b.
func Add[T Number](a, b Node[T]) *Sum[T] {
	return &Sum[T]{binary[T]{a: a, b: b}}
}

// Sample samples both operands and adds them.
func (s *Sum[T]) Sample(rng *rand.Rand, epoch uint64) T {
	x, y := s.operands(rng, epoch)
	return x + y
}

// Reset forwards to both operands.
func (s *Sum[T]) Reset() { reset(s) }

func (s *Sum[T]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, s) {
		s.resetOperands(seen)
	}
}

// Difference yields a - b.
type Difference[T Number] struct{ binary[T] }

// Sub returns a node yielding a minus b.
func Sub[T Number](a, b Node[T]) *Difference[T] {
	return &Difference[T]{binary[T]{a: a, b: b}}
}

// Sample samples both operands and subtracts them.
func (d *Difference[T]) Sample(rng *rand.Rand, epoch uint64) T {
	x, y := d.operands(rng, epoch)
	return x - y
}

// Reset forwards to both operands.
func (d *Difference[T]) Reset() { reset(d) }

func (d *Difference[T]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, d) {
		d.resetOperands(seen)
	}
}

// Product yields a * b.
type Product[T Number] struct{ binary[T] }

// Mul returns a node yielding the product of a and b.
func Mul[T Number](a, b Node[T]) *Product[T] {
	return &Product[T]{binary[T]{a: a, b: b}}
}

// Sample samples both operands and multiplies them.
func (p *Product[T]) Sample(rng *rand.Rand, epoch uint64) T {
	x, y := p.operands(rng, epoch)
	return x * y
}

// Reset forwards to both operands.
func (p *Product[T]) Reset() { reset(p) }

func (p *Product[T]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, p) {
		p.resetOperands(seen)
	}
}

// Ratio yields a / b.
type Ratio[T Number] struct{ binary[T] }

// Div returns a node yielding a divided by b.
func Div[T Number](a, b Node[T]) *Ratio[T] {
	return &Ratio[T]{binary[T]{a: a, b: b}}
}

// Sample samples both operands and divides them.
func (r *Ratio[T]) Sample(rng *rand.Rand, epoch uint64) T {
	x, y := r.operands(rng, epoch)
	return x / y
}

// Reset forwards to both operands.
func (r *Ratio[T]) Reset() { reset(r) }

func (r *Ratio[T]) resetWith(seen map[any]struct{}) {
	if firstVisit(seen, r) {
		r.resetOperands(seen)
	}
}
