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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder() (*tracetest.SpanRecorder, Option) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return rec, WithTracerProvider(tp)
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTest_CertainTrueAcceptsAfterOneBatch(t *testing.T) {
	ctx := context.Background()
	before := testutil.ToFloat64(queriesTotal.WithLabelValues(kindPr, outcomeAccepted))
	rec, withTracer := newRecorder()

	res, err := Test[bool](ctx, Point(true), 0.5, withTracer)
	require.NoError(t, err)

	// Each success adds ln(1/3); ten of them cross -ln(999).
	assert.True(t, res.Accepted)
	assert.True(t, res.Decisive)
	assert.Equal(t, 10, res.Samples)
	assert.Equal(t, 0.5, res.Threshold)

	assert.Equal(t, before+1, testutil.ToFloat64(queriesTotal.WithLabelValues(kindPr, outcomeAccepted)))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "uncertain.Pr", spans[0].Name())
	outcome, ok := spanAttr(spans[0], "outcome")
	require.True(t, ok)
	assert.Equal(t, outcomeAccepted, outcome.AsString())
	_, ok = spanAttr(spans[0], "query_id")
	assert.True(t, ok)
}

func TestTest_CertainFalseRejects(t *testing.T) {
	res, err := Test[bool](context.Background(), Point(false), 0.5)
	require.NoError(t, err)

	assert.False(t, res.Accepted)
	assert.True(t, res.Decisive)
	assert.Greater(t, res.LogRatio, 0.0)
}

func TestTest_BudgetExhaustion(t *testing.T) {
	before := testutil.ToFloat64(queriesTotal.WithLabelValues(kindPr, outcomeUndecided))

	// Alternating outcomes at p=0.5 drift too slowly for a 2x1 budget.
	alternating := Func[bool](func(_ *rand.Rand, epoch uint64) bool { return epoch%2 == 0 })
	res, err := Test[bool](context.Background(), alternating, 0.5, WithBatchSize(2), WithMaxBatches(1))
	require.NoError(t, err)

	assert.False(t, res.Accepted, "an undecided test is a definite false")
	assert.False(t, res.Decisive)
	assert.Equal(t, 2, res.Samples)
	assert.Equal(t, before+1, testutil.ToFloat64(queriesTotal.WithLabelValues(kindPr, outcomeUndecided)))
}

func TestTest_EpochsAreSequential(t *testing.T) {
	var seen []uint64
	n := Func[bool](func(_ *rand.Rand, epoch uint64) bool {
		seen = append(seen, epoch)
		return true
	})

	_, err := Test[bool](context.Background(), n, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestTest_InvalidThreshold(t *testing.T) {
	before := testutil.ToFloat64(queriesTotal.WithLabelValues(kindPr, outcomeInvalid))

	for _, p := range []float64{0, 1, -0.5, 1.5} {
		_, err := Test[bool](context.Background(), Point(true), p)
		assert.ErrorIs(t, err, ErrInvalidProbability, "p=%v", p)
		assert.ErrorIs(t, err, ErrInvalidArgument, "p=%v", p)
	}
	assert.Equal(t, before+4, testutil.ToFloat64(queriesTotal.WithLabelValues(kindPr, outcomeInvalid)))
}

func TestTest_InvalidConfig(t *testing.T) {
	_, err := Test[bool](context.Background(), Point(true), 0.5, WithBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTest_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec, withTracer := newRecorder()

	_, err := Test[bool](ctx, Point(true), 0.5, withTracer)
	assert.ErrorIs(t, err, context.Canceled)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestEstimate_PointMassConvergesExactly(t *testing.T) {
	rec, withTracer := newRecorder()

	est, err := Estimate[float64](context.Background(), Point(3.25), 0.01, withTracer)
	require.NoError(t, err)

	assert.Equal(t, 3.25, est.Mean)
	assert.Equal(t, 10, est.Steps)
	assert.Zero(t, est.DiffSum)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "uncertain.Expect", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestEstimate_NotConverged(t *testing.T) {
	before := testutil.ToFloat64(queriesTotal.WithLabelValues(kindExpect, outcomeNotConverged))
	rec, withTracer := newRecorder()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	est, err := Estimate[float64](context.Background(), epochNode, 0.1, withTracer, WithLogger(logger))
	require.Error(t, err)

	var cerr *ConvergenceError[float64]
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, est, cerr.Estimation)
	assert.Equal(t, 10000, cerr.Steps)
	assert.InDelta(t, 4999.5, cerr.Mean, 1e-6)
	assert.Greater(t, cerr.HalfWidth(), 0.1)

	assert.Equal(t, before+1, testutil.ToFloat64(queriesTotal.WithLabelValues(kindExpect, outcomeNotConverged)))
	assert.Contains(t, logs.String(), "expectation did not converge")
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)
}

func TestEstimate_InvalidPrecision(t *testing.T) {
	for _, p := range []float64{0, -1, math.NaN()} {
		_, err := Estimate[float64](context.Background(), Point(1.0), p)
		assert.ErrorIs(t, err, ErrInvalidPrecision, "precision=%v", p)
	}
}

func TestQuery_ResetsCachesBetweenCalls(t *testing.T) {
	src := &fresh{}
	ref := Cache[float64](src)

	// A single-sample batch has zero spread, so each query stops after one draw.
	first, err := Expect[float64](context.Background(), ref, 0.1, WithBatchSize(1))
	require.NoError(t, err)
	second, err := Expect[float64](context.Background(), ref, 0.1, WithBatchSize(1))
	require.NoError(t, err)

	assert.Equal(t, 1.0, first)
	assert.Equal(t, 2.0, second, "epoch 0 of a new query must not see the previous query's draw")
}

// atEpoch yields true only at the given epoch.
func atEpoch(want uint64) Func[bool] {
	return func(_ *rand.Rand, epoch uint64) bool { return epoch == want }
}

func TestQuery_NestedCacheDoesNotLeakIntoNextQuery(t *testing.T) {
	ctx := context.Background()
	src := &fresh{}
	x := Cache[float64](src)

	// One batch leaves x holding its draw from epoch 9.
	_, err := Expect[float64](ctx, x, 0.1, WithMaxBatches(1))
	require.ErrorIs(t, err, ErrNotConverged)
	require.Equal(t, int64(10), src.calls.Load())

	// x is only reachable through a cache that has never been sampled, and
	// only read at epoch 9.
	root := Cache[bool](And[bool](atEpoch(9), Greater[float64](x, Point(0.0))))
	_, err = Test[bool](ctx, root, 0.5, WithMaxBatches(1))
	require.NoError(t, err)

	assert.Equal(t, int64(11), src.calls.Load(), "epoch 9 of the second query must draw again")
}

func TestQuery_CapturedBranchDoesNotLeakIntoNextQuery(t *testing.T) {
	tests := []struct {
		name      string
		callerRng bool
	}{
		{"default source", false},
		{"one caller source for both queries", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			opts := []Option{WithMaxBatches(1)}
			if tt.callerRng {
				opts = append(opts, WithRand(testRand()))
			}
			src := &fresh{}
			branch := Share[float64](src)

			_, err := Expect[float64](ctx, branch, 0.1, opts...)
			require.ErrorIs(t, err, ErrNotConverged)
			require.Equal(t, int64(10), src.calls.Load())

			// The branch is captured by the closure, out of reach of the
			// reset walk, and taken only at epoch 9.
			root := FlatMap[bool, float64](atEpoch(9), func(take bool) Node[float64] {
				if take {
					return branch
				}
				return Point(0.0)
			})
			_, err = Expect[float64](ctx, root, 0.1, opts...)
			require.ErrorIs(t, err, ErrNotConverged)

			assert.Equal(t, int64(11), src.calls.Load(), "the captured branch must draw again")
		})
	}
}

func TestQuery_DeterministicByDefault(t *testing.T) {
	leaf := uniformLeaf()

	a, err := Expect[float64](context.Background(), leaf, 0.05)
	require.NoError(t, err)
	b, err := Expect[float64](context.Background(), leaf, 0.05)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Expect[float64](context.Background(), leaf, 0.05, WithSeed(1, 2))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestQuery_CallerSourceDrawsTheSameStream(t *testing.T) {
	leaf := uniformLeaf()

	seeded, err := Expect[float64](context.Background(), leaf, 0.05, WithSeed(5, 6))
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(5, 6))
	given, err := Expect[float64](context.Background(), leaf, 0.05, WithRand(rng))
	require.NoError(t, err)

	assert.Equal(t, seeded, given)
}
