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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fresh yields a new value on every call: the number of calls so far.
type fresh struct {
	calls atomic.Int64
}

func (f *fresh) Sample(_ *rand.Rand, _ uint64) float64 {
	return float64(f.calls.Add(1))
}

func uniformLeaf() *Distribution[float64] {
	return FromVariate[float64](VariateFunc[float64](func(r *rand.Rand) float64 { return r.Float64() }))
}

// ---- Ref ----

func TestRef_IdempotentWithinEpoch(t *testing.T) {
	src := &fresh{}
	ref := Cache[float64](src)

	for epoch := uint64(0); epoch < 5; epoch++ {
		first := ref.Sample(nil, epoch)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, ref.Sample(nil, epoch))
		}
	}
	assert.Equal(t, int64(5), src.calls.Load(), "one draw per epoch")
}

func TestRef_NewValueOnNewEpoch(t *testing.T) {
	rng := testRand()
	ref := Cache[float64](uniformLeaf())

	a := ref.Sample(rng, 0)
	b := ref.Sample(rng, 1)
	assert.NotEqual(t, a, b)
}

func TestRef_SelfDifferenceIsZero(t *testing.T) {
	rng := testRand()
	x := Cache[float64](uniformLeaf())
	diff := Sub[float64](x, x)

	for epoch := uint64(0); epoch < 1000; epoch++ {
		require.Zero(t, diff.Sample(rng, epoch))
	}
}

func TestRef_UncachedSelfDifferenceVaries(t *testing.T) {
	rng := testRand()
	x := uniformLeaf()
	diff := Sub[float64](x, x)

	nonZero := 0
	for epoch := uint64(0); epoch < 100; epoch++ {
		if diff.Sample(rng, epoch) != 0 {
			nonZero++
		}
	}
	assert.Equal(t, 100, nonZero)
}

func TestRef_Reset(t *testing.T) {
	src := &fresh{}
	ref := Cache[float64](src)

	assert.Equal(t, 1.0, ref.Sample(nil, 0))
	ref.Reset()
	assert.Equal(t, 2.0, ref.Sample(nil, 0), "reset must force a new draw at a repeated epoch")
}

// ---- Shared ----

func TestShared_ClonesObserveOneSlot(t *testing.T) {
	src := &fresh{}
	a := Share[float64](src)
	b := a.Clone()
	require.True(t, a.Same(b))

	for epoch := uint64(0); epoch < 4; epoch++ {
		va := a.Sample(nil, epoch)
		vb := b.Sample(nil, epoch)
		assert.Equal(t, va, vb)
	}
	assert.Equal(t, int64(4), src.calls.Load())
	assert.False(t, a.Same(Share[float64](src)), "separate Share calls get separate caches")
}

func TestShared_ReusedAcrossBranches(t *testing.T) {
	rng := testRand()
	a := Share[float64](uniformLeaf())
	cond := Cache[float64](uniformLeaf())

	b := FlatMap[float64, float64](cond, func(v float64) Node[float64] {
		if v < 0.5 {
			return a
		}
		return Point(2.0)
	})
	// Whenever b takes the a branch, b - a must be exactly zero.
	check := Join[float64, float64, bool](cond, Sub[float64](b, a), func(c, d float64) bool {
		if c < 0.5 {
			return d == 0
		}
		return true
	})

	for epoch := uint64(0); epoch < 500; epoch++ {
		require.True(t, check.Sample(rng, epoch), "epoch %d", epoch)
	}
}

func TestShared_Reset(t *testing.T) {
	src := &fresh{}
	s := Share[float64](src)

	assert.Equal(t, 1.0, s.Sample(nil, 0))
	s.Clone().Reset()
	assert.Equal(t, 2.0, s.Sample(nil, 0))
}

func TestShared_ConcurrentSamplingDrawsOnce(t *testing.T) {
	src := &fresh{}
	s := Share[float64](src)

	const workers = 16
	results := make([]float64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Clone().Sample(nil, 3)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), src.calls.Load())
	for _, v := range results {
		assert.Equal(t, results[0], v)
	}
}

// ---- Slot ----

func TestSlot(t *testing.T) {
	var s slot[string]
	rng := testRand()

	_, ok := s.lookup(nil, 0)
	assert.False(t, ok, "zero slot must miss even at epoch 0")

	s.store(rng, 3, "x")
	v, ok := s.lookup(rng, 3)
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = s.lookup(rng, 4)
	assert.False(t, ok)

	_, ok = s.lookup(testRand(), 3)
	assert.False(t, ok, "another source is another query")

	s.clear()
	_, ok = s.lookup(rng, 3)
	assert.False(t, ok)
	assert.Nil(t, s.owner)
}

func TestRef_MissesUnderAnotherSource(t *testing.T) {
	src := &fresh{}
	ref := Cache[float64](src)

	assert.Equal(t, 1.0, ref.Sample(testRand(), 0))
	assert.Equal(t, 2.0, ref.Sample(testRand(), 0))
	assert.Equal(t, int64(2), src.calls.Load())
}
