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
// Variate Generators
// -----------------------------------------------------------------------------

// Variate draws values of type T from some probability law.
//
// The set of laws is external to this package; see package laws for
// implementations backed by gonum.
type Variate[T any] interface {
	Draw(rng *rand.Rand) T
}

// VariateFunc adapts a function to the Variate interface.
type VariateFunc[T any] func(rng *rand.Rand) T

// Draw calls f(rng).
func (f VariateFunc[T]) Draw(rng *rand.Rand) T {
	return f(rng)
}

// -----------------------------------------------------------------------------
// Leaves
// -----------------------------------------------------------------------------

// Distribution is a leaf node that draws from a Variate.
//
// It ignores the epoch and always draws fresh: reuse within an epoch is the
// job of Cache and Share, not of the leaf.
type Distribution[T any] struct {
	variate Variate[T]
}

// FromVariate creates a leaf node over the given generator.
//
// Inputs:
//   - v: The variate generator. Must not be nil.
//
// Outputs:
//   - *Distribution[T]: The leaf node. Never nil.
func FromVariate[T any](v Variate[T]) *Distribution[T] {
	return &Distribution[T]{variate: v}
}

// Sample draws one value from the underlying generator.
func (d *Distribution[T]) Sample(rng *rand.Rand, _ uint64) T {
	return d.variate.Draw(rng)
}

// PointMass is an uncertain value that always yields the same value.
//
// It is mostly useful as a branch of FlatMap, or as a constant operand of a
// binary combinator.
type PointMass[T any] struct {
	value T
}

// Point creates a PointMass centered on value.
func Point[T any](value T) PointMass[T] {
	return PointMass[T]{value: value}
}

// Sample returns the stored value without touching rng.
func (p PointMass[T]) Sample(_ *rand.Rand, _ uint64) T {
	return p.value
}

// Value returns the stored value.
func (p PointMass[T]) Value() T {
	return p.value
}
