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
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
)

// -----------------------------------------------------------------------------
// Sequential Probability Ratio Test
// -----------------------------------------------------------------------------

// TestResult is the outcome of a sequential probability ratio test.
type TestResult struct {
	// Accepted is true if H0 (P(true) >= Threshold) was accepted.
	Accepted bool

	// Decisive is true if a decision boundary was crossed before the
	// budget ran out. An indecisive test is reported as not accepted.
	Decisive bool

	// Samples is the number of samples drawn.
	Samples int

	// LogRatio is the final cumulative log-likelihood ratio ln(L1/L0).
	LogRatio float64

	// Threshold is the probability that was tested.
	Threshold float64
}

// Test runs Wald's sequential probability ratio test on a boolean node.
//
// Description:
//
//	Decides between H0: P(true) >= p and H1: P(true) < p. The hypotheses
//	are modeled with an indifference band around p: under H0 the success
//	rate is (1+p)/2, under H1 it is p/2. Each sample adds its log-likelihood
//	ratio ln(L1/L0) to a running sum, which is compared against
//	±ln(D/(1-D)) after every batch, where D is Config.Indifference. The
//	test stops at the first crossing. H0 is accepted iff the sum ends below
//	the lower boundary; an exhausted budget rejects.
//
//	Epochs run 0, 1, 2, ... one per sample, so cached sub-expressions draw
//	exactly once per sample.
//
// Inputs:
//   - ctx: Context for tracing and cancellation between batches.
//   - n: The boolean node to test.
//   - p: Threshold probability in (0, 1).
//   - opts: Query options.
//
// Outputs:
//   - TestResult: The decision and its diagnostics.
//   - error: ErrInvalidProbability, ErrInvalidConfig, or ctx.Err().
//
// Thread Safety: The query itself is single-threaded; see package docs for
// sharing graphs between goroutines.
func Test[B ~bool](ctx context.Context, n Node[B], p float64, opts ...Option) (TestResult, error) {
	if !(p > 0 && p < 1) {
		queriesTotal.WithLabelValues(kindPr, outcomeInvalid).Inc()
		return TestResult{}, fmt.Errorf("%w: got %v", ErrInvalidProbability, p)
	}

	ctx, q, err := beginQuery(ctx, kindPr, opts, attribute.Float64("threshold", p))
	if err != nil {
		return TestResult{}, err
	}
	reset(n)

	upper, lower := sprtBoundaries(q.cfg.Indifference)
	onTrue := logLikelihoodRatio(p, true)
	onFalse := logLikelihoodRatio(p, false)

	result := TestResult{Threshold: p}
	var epoch uint64
	for batch := 0; batch < q.cfg.MaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			result.Samples = int(epoch)
			q.logger.Warn("probability test cancelled", slog.Int("samples", result.Samples))
			q.finish(outcomeCancelled, result.Samples, err)
			return result, err
		}
		for i := 0; i < q.cfg.BatchSize; i++ {
			if n.Sample(q.rng, epoch) {
				result.LogRatio += onTrue
			} else {
				result.LogRatio += onFalse
			}
			epoch++
		}
		if result.LogRatio > upper || result.LogRatio < lower {
			result.Decisive = true
			break
		}
	}
	result.Samples = int(epoch)
	result.Accepted = result.LogRatio < lower

	outcome := outcomeRejected
	switch {
	case !result.Decisive:
		outcome = outcomeUndecided
		q.logger.Warn("probability test exhausted its budget",
			slog.Float64("threshold", p),
			slog.Int("samples", result.Samples),
			slog.Float64("log_ratio", result.LogRatio))
	case result.Accepted:
		outcome = outcomeAccepted
	}
	q.logger.Debug("probability test decided",
		slog.Float64("threshold", p),
		slog.Bool("accepted", result.Accepted),
		slog.Int("samples", result.Samples),
		slog.Float64("log_ratio", result.LogRatio))
	q.finish(outcome, result.Samples, nil)

	return result, nil
}

// Pr reports whether the probability of n being true is at least p.
//
// Description:
//
//	Pr is Test reduced to its decision. It usually needs only a few dozen
//	samples; an undecided test after the full budget returns false.
//
// Example:
//
//	x := uncertain.FromVariate(laws.Bernoulli{P: 0.8})
//	likely, err := uncertain.Pr(ctx, x, 0.5) // true
func Pr[B ~bool](ctx context.Context, n Node[B], p float64, opts ...Option) (bool, error) {
	result, err := Test(ctx, n, p, opts...)
	if err != nil {
		return false, err
	}
	return result.Accepted, nil
}

// sprtBoundaries returns the upper and lower decision boundaries.
func sprtBoundaries(d float64) (upper, lower float64) {
	upper = math.Log(d / (1 - d))
	lower = math.Log((1 - d) / d)
	return upper, lower
}

// acceptLikelihood is the likelihood of an outcome under H0.
func acceptLikelihood(p float64, outcome bool) float64 {
	rate := 0.5 * (1 + p)
	if outcome {
		return rate
	}
	return 1 - rate
}

// rejectLikelihood is the likelihood of an outcome under H1.
func rejectLikelihood(p float64, outcome bool) float64 {
	rate := 0.5 * p
	if outcome {
		return rate
	}
	return 1 - rate
}

// logLikelihoodRatio is one sample's contribution ln(L1/L0).
func logLikelihoodRatio(p float64, outcome bool) float64 {
	return math.Log(rejectLikelihood(p, outcome)) - math.Log(acceptLikelihood(p, outcome))
}
