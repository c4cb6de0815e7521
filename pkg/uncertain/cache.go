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
)

// -----------------------------------------------------------------------------
// Cache Slot
// -----------------------------------------------------------------------------

// slot holds the value sampled at one epoch of one query.
//
// Every query samples through a *rand.Rand of its own, so the source
// identifies the query: a value stored under another source is a miss even
// when the epochs match.
type slot[T any] struct {
	owner *rand.Rand
	epoch uint64
	value T
	valid bool
}

// lookup returns the cached value if it was sampled through rng at epoch.
func (s *slot[T]) lookup(rng *rand.Rand, epoch uint64) (T, bool) {
	if s.valid && s.owner == rng && s.epoch == epoch {
		return s.value, true
	}
	var zero T
	return zero, false
}

// store replaces the cached value.
func (s *slot[T]) store(rng *rand.Rand, epoch uint64, value T) {
	s.owner = rng
	s.epoch = epoch
	s.value = value
	s.valid = true
}

// clear invalidates the slot and releases the value and the source.
func (s *slot[T]) clear() {
	var zero T
	s.owner = nil
	s.value = zero
	s.valid = false
}

// -----------------------------------------------------------------------------
// Ref: single-owner reference cache
// -----------------------------------------------------------------------------

// Ref caches the value of a node for the current epoch.
//
// Description:
//
//	Passing the same *Ref at several places of an expression makes all of
//	them observe one draw per epoch. Ref is the cheap form of sharing: no
//	locking and no extra indirection beyond the pointer itself. The slot is
//	owned by a single query at a time, and a value cached by one query is
//	never served to the next.
//
// Thread Safety: NOT safe for concurrent use. Use Share when a handle must
// cross goroutines.
//
// Example:
//
//	x := uncertain.Cache(uncertain.FromVariate(laws.Binomial{N: 100, P: 0.5}))
//	diff := uncertain.Sub[float64](x, x) // always exactly 0
type Ref[T any] struct {
	node Node[T]
	slot slot[T]
}

// Cache wraps n in a reference cache.
//
// Inputs:
//   - n: The node to cache. Must not be nil.
//
// Outputs:
//   - *Ref[T]: The cached node. Never nil.
func Cache[T any](n Node[T]) *Ref[T] {
	return &Ref[T]{node: n}
}

// Sample returns the cached value for epoch, drawing it on first use.
func (r *Ref[T]) Sample(rng *rand.Rand, epoch uint64) T {
	if v, ok := r.slot.lookup(rng, epoch); ok {
		return v
	}
	v := r.node.Sample(rng, epoch)
	r.slot.store(rng, epoch, v)
	return v
}

// Reset invalidates the cached value and forwards to the wrapped node.
func (r *Ref[T]) Reset() { reset(r) }

func (r *Ref[T]) resetWith(seen map[any]struct{}) {
	if !firstVisit(seen, r) {
		return
	}
	r.slot.clear()
	resetWith(r.node, seen)
}

// -----------------------------------------------------------------------------
// Shared: cloneable, type-erased handle
// -----------------------------------------------------------------------------

// sharedState is the heap state behind every copy of a Shared handle.
type sharedState[T any] struct {
	mu   sync.Mutex
	node Node[T]
	slot slot[T]
}

// Shared is a cloneable handle to a cached, type-erased node.
//
// Description:
//
//	All copies of a Shared handle observe one cache slot, so a handle can
//	be duplicated freely, stored in closures and returned from FlatMap
//	branches while still yielding one value per epoch. The wrapped node is
//	held behind the Node interface, which lets branches of different
//	concrete types be unified as Shared[T].
//
//	The zero value is not usable; create handles with Share.
//
// Thread Safety: The cache slot is guarded by a mutex, so concurrent
// sampling is free of data races. Concurrent queries over the same handle
// still interleave epochs and should be avoided.
type Shared[T any] struct {
	state *sharedState[T]
}

// Share wraps n in a shared, cloneable cache.
//
// Inputs:
//   - n: The node to share. Must not be nil.
//
// Outputs:
//   - Shared[T]: The handle. Copies share the cache.
func Share[T any](n Node[T]) Shared[T] {
	return Shared[T]{state: &sharedState[T]{node: n}}
}

// Clone returns a handle observing the same cache.
func (s Shared[T]) Clone() Shared[T] {
	return s
}

// Same reports whether s and other are handles to the same cache.
func (s Shared[T]) Same(other Shared[T]) bool {
	return s.state == other.state
}

// Sample returns the cached value for epoch, drawing it on first use.
//
// The lock is held while the wrapped node is sampled so that two callers at
// the same epoch cannot both draw.
func (s Shared[T]) Sample(rng *rand.Rand, epoch uint64) T {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if v, ok := st.slot.lookup(rng, epoch); ok {
		return v
	}
	v := st.node.Sample(rng, epoch)
	st.slot.store(rng, epoch, v)
	return v
}

// Reset invalidates the cached value and forwards to the wrapped node.
func (s Shared[T]) Reset() { reset(s) }

// resetWith keys the visit on the shared state, so every clone of a handle
// counts as the same node.
func (s Shared[T]) resetWith(seen map[any]struct{}) {
	st := s.state
	if !firstVisit(seen, st) {
		return
	}
	st.mu.Lock()
	st.slot.clear()
	node := st.node
	st.mu.Unlock()
	resetWith(node, seen)
}
