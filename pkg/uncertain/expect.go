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
	"gonum.org/v1/gonum/stat/distuv"
)

// -----------------------------------------------------------------------------
// Welford accumulator
// -----------------------------------------------------------------------------

// Welford accumulates a running mean and sum of squared deviations.
//
// The zero value is an empty accumulator.
type Welford[F Float] struct {
	n    int
	mean F
	m2   F
}

// Add folds one observation into the accumulator.
func (w *Welford[F]) Add(x F) {
	w.n++
	delta := x - w.mean
	w.mean += delta / F(w.n)
	w.m2 += delta * (x - w.mean)
}

// Count returns the number of observations.
func (w *Welford[F]) Count() int { return w.n }

// Mean returns the running mean.
func (w *Welford[F]) Mean() F { return w.mean }

// DiffSum returns the running sum of squared deviations from the mean.
func (w *Welford[F]) DiffSum() F { return w.m2 }

// Variance returns the population variance, or NaN when empty.
func (w *Welford[F]) Variance() F {
	if w.n == 0 {
		return F(math.NaN())
	}
	return w.m2 / F(w.n)
}

// Estimation returns a snapshot of the accumulator.
func (w *Welford[F]) Estimation(precision F) Estimation[F] {
	return Estimation[F]{Mean: w.mean, DiffSum: w.m2, Steps: w.n, Precision: precision}
}

// -----------------------------------------------------------------------------
// Estimation
// -----------------------------------------------------------------------------

// Estimation is an immutable snapshot of an expectation query.
type Estimation[F Float] struct {
	// Mean is the running mean.
	Mean F

	// DiffSum is the sum of squared deviations from the mean.
	DiffSum F

	// Steps is the number of samples folded in.
	Steps int

	// Precision is the requested half-width.
	Precision F
}

// StdErr returns the standard error of the mean, sqrt(DiffSum)/Steps.
// It is +Inf for an empty estimation.
func (e Estimation[F]) StdErr() F {
	if e.Steps == 0 {
		return F(math.Inf(1))
	}
	return F(math.Sqrt(float64(e.DiffSum))) / F(e.Steps)
}

// HalfWidth returns the two-sigma half-width of the mean estimate.
func (e Estimation[F]) HalfWidth() F {
	return 2 * e.StdErr()
}

// Converged reports whether the half-width is within the requested precision.
func (e Estimation[F]) Converged() bool {
	return e.HalfWidth() <= e.Precision
}

// Interval returns the normal-approximation confidence interval for the mean
// at the given level, e.g. 0.95.
func (e Estimation[F]) Interval(level float64) ConfidenceInterval {
	center := float64(e.Mean)
	half := zScore(0.5+level/2) * float64(e.StdErr())
	return ConfidenceInterval{
		Lower:  center - half,
		Upper:  center + half,
		Level:  level,
		Center: center,
	}
}

// ConfidenceInterval represents a statistical confidence interval.
type ConfidenceInterval struct {
	// Lower is the lower bound.
	Lower float64

	// Upper is the upper bound.
	Upper float64

	// Level is the confidence level (e.g., 0.95).
	Level float64

	// Center is the point estimate (mean).
	Center float64
}

// Contains returns true if the interval contains the value.
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

// Width returns the interval width.
func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// zScore returns the standard normal quantile for p.
func zScore(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}
	return distuv.UnitNormal.Quantile(p)
}

// ConvergenceError is returned when an expectation query exhausts its budget.
//
// It carries the last snapshot so callers can accept the estimate, inspect
// its error bound or retry with a relaxed precision.
//
// Example:
//
//	mean, err := uncertain.Expect(ctx, x, 0.01)
//	var cerr *uncertain.ConvergenceError[float64]
//	if errors.As(err, &cerr) {
//	    log.Printf("best effort %v +/- %v", cerr.Mean, cerr.HalfWidth())
//	}
type ConvergenceError[F Float] struct {
	Estimation[F]
}

func (e *ConvergenceError[F]) Error() string {
	return fmt.Sprintf("expected value %v +/- %v did not converge to desired precision %v after %d samples",
		e.Mean, e.HalfWidth(), e.Precision, e.Steps)
}

// Unwrap returns ErrNotConverged.
func (e *ConvergenceError[F]) Unwrap() error {
	return ErrNotConverged
}

// -----------------------------------------------------------------------------
// Expectation query
// -----------------------------------------------------------------------------

// Estimate computes the expected value of n to the given precision.
//
// Description:
//
//	Draws samples in batches, one epoch per sample, and folds them into a
//	Welford accumulator. After each batch the two-sigma half-width of the
//	mean, 2*sqrt(M2)/n, is compared with precision. The query returns as
//	soon as it is within precision.
//
// Inputs:
//   - ctx: Context for tracing and cancellation between batches.
//   - n: The numeric node.
//   - precision: The requested half-width. Must be positive.
//   - opts: Query options.
//
// Outputs:
//   - Estimation[F]: The final snapshot. Valid even on non-convergence.
//   - error: ErrInvalidPrecision, ErrInvalidConfig, ctx.Err(), or a
//     *ConvergenceError[F] when the budget is exhausted.
func Estimate[F Float](ctx context.Context, n Node[F], precision F, opts ...Option) (Estimation[F], error) {
	if !(precision > 0) {
		queriesTotal.WithLabelValues(kindExpect, outcomeInvalid).Inc()
		return Estimation[F]{}, fmt.Errorf("%w: got %v", ErrInvalidPrecision, precision)
	}

	ctx, q, err := beginQuery(ctx, kindExpect, opts, attribute.Float64("precision", float64(precision)))
	if err != nil {
		return Estimation[F]{}, err
	}
	reset(n)

	var acc Welford[F]
	var epoch uint64
	for batch := 0; batch < q.cfg.MaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			q.logger.Warn("expectation cancelled", slog.Int("samples", acc.Count()))
			q.finish(outcomeCancelled, acc.Count(), err)
			return acc.Estimation(precision), err
		}
		for i := 0; i < q.cfg.BatchSize; i++ {
			acc.Add(n.Sample(q.rng, epoch))
			epoch++
		}
		if est := acc.Estimation(precision); est.Converged() {
			q.logger.Debug("expectation converged",
				slog.Float64("mean", float64(est.Mean)),
				slog.Float64("half_width", float64(est.HalfWidth())),
				slog.Int("samples", est.Steps))
			q.span.SetAttributes(attribute.Float64("mean", float64(est.Mean)))
			q.finish(outcomeConverged, est.Steps, nil)
			return est, nil
		}
	}

	est := acc.Estimation(precision)
	cerr := &ConvergenceError[F]{Estimation: est}
	q.logger.Warn("expectation did not converge",
		slog.Float64("mean", float64(est.Mean)),
		slog.Float64("half_width", float64(est.HalfWidth())),
		slog.Float64("precision", float64(precision)),
		slog.Int("samples", est.Steps))
	q.finish(outcomeNotConverged, est.Steps, cerr)
	return est, cerr
}

// Expect returns the expected value of n to the given precision.
//
// On non-convergence the returned value is the best-effort running mean and
// the error is a *ConvergenceError[F].
//
// Example:
//
//	speed := uncertain.FromVariate(laws.Normal{Mu: 5, Sigma: 1})
//	mean, err := uncertain.Expect(ctx, speed, 0.1) // ≈ 5
func Expect[F Float](ctx context.Context, n Node[F], precision F, opts ...Option) (F, error) {
	est, err := Estimate(ctx, n, precision, opts...)
	return est.Mean, err
}
