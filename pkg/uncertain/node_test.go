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
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- Helpers ----

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

// counter is a node that counts its invocations and yields a fixed value.
type counter[T any] struct {
	calls int
	value T
}

func (c *counter[T]) Sample(_ *rand.Rand, _ uint64) T {
	c.calls++
	return c.value
}

// recorder appends its name to a shared log when sampled.
func recorder[T any](log *[]string, name string, value T) Func[T] {
	return func(_ *rand.Rand, _ uint64) T {
		*log = append(*log, name)
		return value
	}
}

// epochNode yields the epoch itself.
var epochNode = Func[float64](func(_ *rand.Rand, epoch uint64) float64 {
	return float64(epoch)
})

// ---- Leaves ----

func TestPointMass_NeverConsumesRandomness(t *testing.T) {
	a, b := testRand(), testRand()
	p := Point(42.5)

	for epoch := uint64(0); epoch < 5; epoch++ {
		assert.Equal(t, 42.5, p.Sample(a, epoch))
	}
	assert.Equal(t, 42.5, p.Value())
	assert.Equal(t, b.Uint64(), a.Uint64(), "point mass must not advance the source")
}

func TestDistribution_DrawsEveryCall(t *testing.T) {
	rng := testRand()
	d := FromVariate[float64](VariateFunc[float64](func(r *rand.Rand) float64 { return r.Float64() }))

	first := d.Sample(rng, 0)
	second := d.Sample(rng, 0)
	assert.NotEqual(t, first, second, "leaves do not cache within an epoch")
}

func TestFunc_SeesEpoch(t *testing.T) {
	assert.Equal(t, 0.0, epochNode.Sample(nil, 0))
	assert.Equal(t, 9.0, epochNode.Sample(nil, 9))
}

// ---- Combinators ----

func TestMap(t *testing.T) {
	n := Map[float64, string](Point(2.0), func(v float64) string {
		if v > 1 {
			return "big"
		}
		return "small"
	})
	assert.Equal(t, "big", n.Sample(testRand(), 0))
}

func TestJoin_LeftBeforeRight(t *testing.T) {
	var log []string
	n := Join[int, int, int](recorder(&log, "a", 3), recorder(&log, "b", 4), func(a, b int) int {
		return a*10 + b
	})

	assert.Equal(t, 34, n.Sample(testRand(), 0))
	assert.Equal(t, []string{"a", "b"}, log)
}

func TestArithmetic(t *testing.T) {
	rng := testRand()

	tests := []struct {
		name string
		node Node[float64]
		want float64
	}{
		{"add", Add[float64](Point(5.0), Point(9.0)), 14},
		{"sub", Sub[float64](Point(5.0), Point(9.0)), -4},
		{"mul", Mul[float64](Point(5.0), Point(9.0)), 45},
		{"div", Div[float64](Point(9.0), Point(2.0)), 4.5},
		{"nested", Mul[float64](Add[float64](Point(1.0), Point(2.0)), Point(3.0)), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Sample(rng, 0))
		})
	}
}

func TestArithmetic_OperandOrder(t *testing.T) {
	var log []string
	n := Sub[int](recorder(&log, "left", 5), recorder(&log, "right", 9))

	assert.Equal(t, -4, n.Sample(nil, 0))
	assert.Equal(t, []string{"left", "right"}, log)
}

func TestArithmetic_DivisionSemantics(t *testing.T) {
	t.Run("integer division truncates", func(t *testing.T) {
		assert.Equal(t, 3, Div[int](Point(7), Point(2)).Sample(nil, 0))
	})
	t.Run("float division by zero is infinite", func(t *testing.T) {
		v := Div[float64](Point(1.0), Point(0.0)).Sample(nil, 0)
		assert.True(t, math.IsInf(v, 1))
	})
	t.Run("integer division by zero panics", func(t *testing.T) {
		assert.Panics(t, func() { Div[int](Point(1), Point(0)).Sample(nil, 0) })
	})
	t.Run("complex", func(t *testing.T) {
		assert.Equal(t, complex(0, 2), Mul[complex128](Point(complex(1, 1)), Point(complex(1, 1))).Sample(nil, 0))
	})
}

// ---- Logic ----

func TestAnd_ShortCircuits(t *testing.T) {
	right := &counter[bool]{value: true}

	n := And[bool](Point(false), right)
	for epoch := uint64(0); epoch < 10; epoch++ {
		assert.False(t, n.Sample(nil, epoch))
	}
	assert.Zero(t, right.calls, "right side must not be sampled when left is false")

	n = And[bool](Point(true), right)
	assert.True(t, n.Sample(nil, 0))
	assert.Equal(t, 1, right.calls)
}

func TestOr_ShortCircuits(t *testing.T) {
	right := &counter[bool]{value: false}

	n := Or[bool](Point(true), right)
	for epoch := uint64(0); epoch < 10; epoch++ {
		assert.True(t, n.Sample(nil, epoch))
	}
	assert.Zero(t, right.calls, "right side must not be sampled when left is true")

	n = Or[bool](Point(false), right)
	assert.False(t, n.Sample(nil, 0))
	assert.Equal(t, 1, right.calls)
}

type flag bool

func TestNot_AcceptsBoolLikeValues(t *testing.T) {
	assert.False(t, Not[flag](Point(flag(true))).Sample(nil, 0))
	assert.True(t, Not[bool](Point(false)).Sample(nil, 0))
}

func TestComparison(t *testing.T) {
	tests := []struct {
		name string
		node *Comparison[float64]
		op   string
		want bool
	}{
		{"greater", Greater[float64](Point(2.0), Point(1.0)), ">", true},
		{"less", Less[float64](Point(2.0), Point(1.0)), "<", false},
		{"at least equal", AtLeast[float64](Point(1.0), Point(1.0)), ">=", true},
		{"at most", AtMost[float64](Point(2.0), Point(1.0)), "<=", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Sample(nil, 0))
			assert.Equal(t, tt.op, tt.node.Op())
		})
	}
}

// ---- FlatMap ----

func TestFlatMap_ChoosesBranch(t *testing.T) {
	low := &counter[float64]{value: -1}
	high := &counter[float64]{value: 1}

	n := FlatMap[float64, float64](epochNode, func(v float64) Node[float64] {
		if v < 5 {
			return low
		}
		return high
	})

	for epoch := uint64(0); epoch < 10; epoch++ {
		want := -1.0
		if epoch >= 5 {
			want = 1.0
		}
		require.Equal(t, want, n.Sample(nil, epoch))
	}
	assert.Equal(t, 5, low.calls)
	assert.Equal(t, 5, high.calls)
}

// ---- Reset propagation ----

func TestReset_ReachesNestedCaches(t *testing.T) {
	inner := &counter[float64]{value: 1}
	ref := Cache[float64](inner)
	root := Not[bool](Greater[float64](Map[float64, float64](ref, func(v float64) float64 { return v }), Point(0.0)))

	root.Sample(nil, 0)
	root.Sample(nil, 0)
	assert.Equal(t, 1, inner.calls)

	reset(root)
	root.Sample(nil, 0)
	assert.Equal(t, 2, inner.calls, "reset must invalidate the cache behind the combinators")
}

func TestReset_ReachesValidCacheBehindClearOne(t *testing.T) {
	inner := &counter[float64]{value: 1}
	ref := Cache[float64](inner)
	ref.Sample(nil, 0)

	outer := Cache[float64](Map[float64, float64](ref, func(v float64) float64 { return v }))
	reset(outer)

	outer.Sample(nil, 0)
	assert.Equal(t, 2, inner.calls, "a clear outer cache must not hide a stale inner one")
}

func TestReset_WalksSharedSubgraphsOnce(t *testing.T) {
	leaf := &counter[float64]{value: 1}
	var n Node[float64] = Cache[float64](leaf)
	// Each level reaches the one below through two paths, so a walk that
	// revisited nodes would take 2^64 steps.
	for i := 0; i < 64; i++ {
		n = Cache[float64](Add[float64](n, n))
	}

	n.Sample(nil, 0)
	assert.Equal(t, 1, leaf.calls)

	reset(n)
	n.Sample(nil, 0)
	assert.Equal(t, 2, leaf.calls)
}

func TestReset_SharedClonesAreOneNode(t *testing.T) {
	leaf := &counter[float64]{value: 1}
	s := Share[float64](leaf)
	root := Add[float64](s, s.Clone())

	root.Sample(nil, 0)
	reset(root)
	root.Sample(nil, 0)
	assert.Equal(t, 2, leaf.calls)
}

func TestReset_IgnoresPlainNodes(t *testing.T) {
	assert.NotPanics(t, func() {
		reset(Point(1))
		reset(epochNode)
	})
}
