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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelford(t *testing.T) {
	var w Welford[float64]
	assert.True(t, math.IsNaN(w.Variance()))
	assert.True(t, math.IsInf(w.Estimation(1).StdErr(), 1))

	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Add(x)
	}

	assert.Equal(t, 8, w.Count())
	assert.InDelta(t, 5.0, w.Mean(), 1e-12)
	assert.InDelta(t, 32.0, w.DiffSum(), 1e-12)
	assert.InDelta(t, 4.0, w.Variance(), 1e-12)

	est := w.Estimation(0.5)
	assert.InDelta(t, math.Sqrt(32)/8, est.StdErr(), 1e-12)
	assert.InDelta(t, 2*math.Sqrt(32)/8, est.HalfWidth(), 1e-12)
	assert.False(t, est.Converged())
}

func TestWelford_Float32(t *testing.T) {
	var w Welford[float32]
	for i := 0; i < 100; i++ {
		w.Add(1.5)
	}
	assert.Equal(t, float32(1.5), w.Mean())
	assert.Zero(t, w.DiffSum())
	assert.True(t, w.Estimation(0.001).Converged())
}

func TestEstimation_Interval(t *testing.T) {
	est := Estimation[float64]{Mean: 10, DiffSum: 400, Steps: 100, Precision: 0.5}
	// StdErr = sqrt(400)/100 = 0.2
	ci := est.Interval(0.95)

	assert.Equal(t, 10.0, ci.Center)
	assert.Equal(t, 0.95, ci.Level)
	assert.InDelta(t, 10-1.959964*0.2, ci.Lower, 1e-5)
	assert.InDelta(t, 10+1.959964*0.2, ci.Upper, 1e-5)
	assert.True(t, ci.Contains(10.3))
	assert.False(t, ci.Contains(10.5))
	assert.InDelta(t, 2*1.959964*0.2, ci.Width(), 1e-5)
}

func TestZScore(t *testing.T) {
	assert.InDelta(t, 0.0, zScore(0.5), 1e-12)
	assert.InDelta(t, 1.644854, zScore(0.95), 1e-5)
	assert.True(t, math.IsInf(zScore(0), -1))
	assert.True(t, math.IsInf(zScore(1), 1))
}

func TestConvergenceError(t *testing.T) {
	var err error = &ConvergenceError[float64]{Estimation[float64]{
		Mean: 4999.5, DiffSum: 1e6, Steps: 10000, Precision: 0.1,
	}}

	assert.True(t, errors.Is(err, ErrNotConverged))
	assert.False(t, errors.Is(err, ErrInvalidArgument))
	assert.Contains(t, err.Error(), "did not converge to desired precision 0.1 after 10000 samples")

	var cerr *ConvergenceError[float64]
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 4999.5, cerr.Mean)
	assert.InDelta(t, 0.2, cerr.HalfWidth(), 1e-12)
}

func TestSPRTBoundaries(t *testing.T) {
	upper, lower := sprtBoundaries(0.999)
	assert.InDelta(t, math.Log(999), upper, 1e-9)
	assert.InDelta(t, -upper, lower, 1e-9)
}

func TestLogLikelihoodRatio(t *testing.T) {
	// H0 rate (1+p)/2 and H1 rate p/2.
	assert.InDelta(t, math.Log(0.25/0.75), logLikelihoodRatio(0.5, true), 1e-12)
	assert.InDelta(t, math.Log(0.75/0.25), logLikelihoodRatio(0.5, false), 1e-12)

	// A success always pulls toward acceptance, a failure toward rejection.
	for _, p := range []float64{0.01, 0.2, 0.5, 0.9, 0.99} {
		assert.Less(t, logLikelihoodRatio(p, true), 0.0, "p=%v", p)
		assert.Greater(t, logLikelihoodRatio(p, false), 0.0, "p=%v", p)
	}
}
