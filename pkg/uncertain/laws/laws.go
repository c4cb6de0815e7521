// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package laws provides probability laws for uncertain leaves.
//
// Each law is a small value type whose Draw method samples from a gonum
// stat/distuv distribution using the query's random source. The types
// satisfy uncertain.Variate and plug into uncertain.FromVariate:
//
//	speed := uncertain.FromVariate(laws.Normal{Mu: 5, Sigma: 1})
//
// Literal construction is unchecked. The New... constructors validate
// parameters and return ErrInvalidParameter.
package laws

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/AleutianAI/uncertain/pkg/uncertain"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidParameter is returned by the validated constructors.
var ErrInvalidParameter = fmt.Errorf("%w: invalid law parameter", uncertain.ErrInvalidArgument)

// ---- Continuous laws ----

// Normal is the Gaussian law N(Mu, Sigma²).
type Normal struct {
	Mu    float64
	Sigma float64
}

// NewNormal validates Sigma > 0 and finite parameters.
func NewNormal(mu, sigma float64) (Normal, error) {
	if !finite(mu) || !positive(sigma) {
		return Normal{}, fmt.Errorf("%w: normal(mu=%v, sigma=%v)", ErrInvalidParameter, mu, sigma)
	}
	return Normal{Mu: mu, Sigma: sigma}, nil
}

// Draw samples one value.
func (l Normal) Draw(rng *rand.Rand) float64 {
	return distuv.Normal{Mu: l.Mu, Sigma: l.Sigma, Src: rng}.Rand()
}

// LogNormal is the law of exp(X) for X ~ N(Mu, Sigma²).
type LogNormal struct {
	Mu    float64
	Sigma float64
}

// NewLogNormal validates Sigma > 0 and finite parameters.
func NewLogNormal(mu, sigma float64) (LogNormal, error) {
	if !finite(mu) || !positive(sigma) {
		return LogNormal{}, fmt.Errorf("%w: lognormal(mu=%v, sigma=%v)", ErrInvalidParameter, mu, sigma)
	}
	return LogNormal{Mu: mu, Sigma: sigma}, nil
}

// Draw samples one value.
func (l LogNormal) Draw(rng *rand.Rand) float64 {
	return distuv.LogNormal{Mu: l.Mu, Sigma: l.Sigma, Src: rng}.Rand()
}

// Exponential is the exponential law with the given Rate.
type Exponential struct {
	Rate float64
}

// NewExponential validates Rate > 0.
func NewExponential(rate float64) (Exponential, error) {
	if !positive(rate) {
		return Exponential{}, fmt.Errorf("%w: exponential(rate=%v)", ErrInvalidParameter, rate)
	}
	return Exponential{Rate: rate}, nil
}

// Draw samples one value.
func (l Exponential) Draw(rng *rand.Rand) float64 {
	return distuv.Exponential{Rate: l.Rate, Src: rng}.Rand()
}

// Uniform is the continuous uniform law on [Min, Max).
type Uniform struct {
	Min float64
	Max float64
}

// NewUniform validates Min < Max.
func NewUniform(lo, hi float64) (Uniform, error) {
	if !finite(lo) || !finite(hi) || !(lo < hi) {
		return Uniform{}, fmt.Errorf("%w: uniform(min=%v, max=%v)", ErrInvalidParameter, lo, hi)
	}
	return Uniform{Min: lo, Max: hi}, nil
}

// Draw samples one value.
func (l Uniform) Draw(rng *rand.Rand) float64 {
	return distuv.Uniform{Min: l.Min, Max: l.Max, Src: rng}.Rand()
}

// ---- Discrete laws ----

// Poisson is the Poisson law with mean Lambda. Counts are returned as
// float64 so they compose with continuous values.
type Poisson struct {
	Lambda float64
}

// NewPoisson validates Lambda > 0.
func NewPoisson(lambda float64) (Poisson, error) {
	if !positive(lambda) {
		return Poisson{}, fmt.Errorf("%w: poisson(lambda=%v)", ErrInvalidParameter, lambda)
	}
	return Poisson{Lambda: lambda}, nil
}

// Draw samples one count.
func (l Poisson) Draw(rng *rand.Rand) float64 {
	return distuv.Poisson{Lambda: l.Lambda, Src: rng}.Rand()
}

// Binomial is the number of successes in N trials of probability P.
type Binomial struct {
	N float64
	P float64
}

// NewBinomial validates N as a positive integer and P in [0, 1].
func NewBinomial(n, p float64) (Binomial, error) {
	if !positive(n) || n != math.Trunc(n) || !probability(p) {
		return Binomial{}, fmt.Errorf("%w: binomial(n=%v, p=%v)", ErrInvalidParameter, n, p)
	}
	return Binomial{N: n, P: p}, nil
}

// Draw samples one count.
func (l Binomial) Draw(rng *rand.Rand) float64 {
	return distuv.Binomial{N: l.N, P: l.P, Src: rng}.Rand()
}

// Bernoulli is true with probability P.
type Bernoulli struct {
	P float64
}

// NewBernoulli validates P in [0, 1].
func NewBernoulli(p float64) (Bernoulli, error) {
	if !probability(p) {
		return Bernoulli{}, fmt.Errorf("%w: bernoulli(p=%v)", ErrInvalidParameter, p)
	}
	return Bernoulli{P: p}, nil
}

// Draw samples one outcome.
func (l Bernoulli) Draw(rng *rand.Rand) bool {
	return distuv.Bernoulli{P: l.P, Src: rng}.Rand() == 1
}

// ---- Helpers ----

// Must panics if err is non-nil. It is meant for package-level fixtures
// whose parameters are literals.
//
//	var noise = laws.Must(laws.NewNormal(0, 0.1))
func Must[L any](law L, err error) L {
	if err != nil {
		panic(err)
	}
	return law
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}

func probability(p float64) bool {
	return p >= 0 && p <= 1
}
