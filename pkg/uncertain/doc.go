// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package uncertain provides computation with uncertain values.
//
// An uncertain value is a value only known up to a probability distribution,
// such as a sensor reading with measurement noise. The package represents such
// values as lazy sampling graphs: nothing is computed when an expression is
// built, and the two terminal queries (Pr and Expect) draw as many samples as
// they need to answer a statistical question about the expression.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                             QUERY ENGINES                               │
//	│      Pr / Test (SPRT)                    Expect / Estimate (Welford)    │
//	│      owns *rand.Rand + epoch counter     owns *rand.Rand + epoch counter│
//	├─────────────────────────────────────────────────────────────────────────┤
//	│                          SHARING WRAPPERS                               │
//	│      Ref (single owner, unsynchronized)  Shared (cloneable, mutex slot) │
//	├─────────────────────────────────────────────────────────────────────────┤
//	│                            COMBINATORS                                  │
//	│      Map  FlatMap  Join  Not  And  Or  Add  Sub  Mul  Div  Greater ...  │
//	├─────────────────────────────────────────────────────────────────────────┤
//	│                               LEAVES                                    │
//	│      Distribution (wraps a Variate)      PointMass (constant)           │
//	└─────────────────────────────────────────────────────────────────────────┘
//
// # Epochs
//
// Every sample of a graph is tagged with an epoch. Within one epoch, a node
// wrapped by Cache or Share yields exactly one value no matter how often it is
// referenced. That is what makes
//
//	x := uncertain.Cache(uncertain.FromVariate(laws.Normal{Mu: 5, Sigma: 2}))
//	zero := uncertain.Sub[float64](x, x)
//
// identically zero, while the same expression over an uncached leaf is the
// difference of two independent draws.
//
// # Usage
//
//	speed := uncertain.FromVariate(laws.Normal{Mu: 4.2, Sigma: 1.5})
//	fast := uncertain.Greater[float64](speed, uncertain.Point(4.0))
//
//	ok, err := uncertain.Pr(ctx, fast, 0.5)        // P(speed > 4) >= 0.5 ?
//	mu, err := uncertain.Expect(ctx, speed, 0.1)   // E[speed] within ±0.1
//
// # Determinism
//
// Queries are deterministic by default: each call seeds a fresh PCG source
// with DefaultSeed. Pass WithSeed or WithRand to vary it.
//
// # Thread Safety
//
// Graph construction is free of shared state. A query is single-threaded and
// owns its source and epoch counter. Ref is not safe for concurrent use;
// Shared guards its cache slot with a mutex, but two queries sampling the same
// Shared concurrently still interleave epochs, so run one query at a time per
// graph.
package uncertain
