// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/uncertain/pkg/uncertain"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Results
// =============================================================================

// Result is the answer to one query.
type Result struct {
	// Query is the query name.
	Query string `yaml:"query" json:"query"`

	// Kind is KindPr or KindExpect.
	Kind string `yaml:"kind" json:"kind"`

	// Expr is the query expression in prefix form.
	Expr string `yaml:"expr" json:"expr"`

	// Samples is the number of samples drawn.
	Samples int `yaml:"samples" json:"samples"`

	// Accepted is the pr decision.
	Accepted bool `yaml:"accepted,omitempty" json:"accepted,omitempty"`

	// Decisive is false when a pr query exhausted its budget.
	Decisive bool `yaml:"decisive,omitempty" json:"decisive,omitempty"`

	// Threshold is the pr threshold.
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Mean is the expect estimate, converged or not.
	Mean float64 `yaml:"mean,omitempty" json:"mean,omitempty"`

	// HalfWidth is the two-sigma half-width of Mean.
	HalfWidth float64 `yaml:"half_width,omitempty" json:"half_width,omitempty"`

	// Precision is the requested half-width.
	Precision float64 `yaml:"precision,omitempty" json:"precision,omitempty"`

	// Converged is false when an expect query exhausted its budget.
	Converged bool `yaml:"converged,omitempty" json:"converged,omitempty"`

	// Duration is the wall-clock time of the query.
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// Summary renders the result on one line.
func (r Result) Summary() string {
	switch r.Kind {
	case KindPr:
		verdict := "rejected"
		switch {
		case r.Accepted:
			verdict = "accepted"
		case !r.Decisive:
			verdict = "undecided"
		}
		return fmt.Sprintf("%s: P(%s) >= %v %s after %d samples", r.Query, r.Expr, r.Threshold, verdict, r.Samples)
	default:
		status := ""
		if !r.Converged {
			status = " (not converged)"
		}
		return fmt.Sprintf("%s: E[%s] = %.6g +/- %.3g after %d samples%s", r.Query, r.Expr, r.Mean, r.HalfWidth, r.Samples, status)
	}
}

// =============================================================================
// Options
// =============================================================================

// DefaultConcurrency is the default number of queries run at once.
const DefaultConcurrency = 4

// RunOption configures Run.
type RunOption func(*runOptions)

type runOptions struct {
	concurrency  int
	logger       *slog.Logger
	queryOptions []uncertain.Option
}

// WithConcurrency limits the number of concurrent queries. Values below one
// run the queries sequentially.
func WithConcurrency(n int) RunOption {
	return func(o *runOptions) { o.concurrency = n }
}

// WithLogger sets the logger for the run and its queries.
func WithLogger(logger *slog.Logger) RunOption {
	return func(o *runOptions) { o.logger = logger }
}

// WithQueryOptions appends options passed to every query after the
// scenario's own configuration.
func WithQueryOptions(opts ...uncertain.Option) RunOption {
	return func(o *runOptions) { o.queryOptions = append(o.queryOptions, opts...) }
}

// =============================================================================
// Run
// =============================================================================

// Run answers every query of a scenario.
//
// Description:
//
//	Validates the scenario, then runs the queries through an errgroup with
//	a concurrency limit. Each query gets a freshly compiled graph and a
//	source seeded from the scenario configuration, so the results are the
//	same whatever the limit. A non-converged expect query is reported in
//	its Result; invalid input and cancellation fail the run.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - s: The scenario. Must not be nil.
//   - opts: Run options.
//
// Outputs:
//   - []Result: One per query, in declaration order.
//   - error: Non-nil if validation fails, a query fails or ctx is cancelled.
//
// Thread Safety: Safe to call concurrently; the scenario is not modified.
func Run(ctx context.Context, s *Scenario, opts ...RunOption) ([]Result, error) {
	o := runOptions{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger.With(slog.String("scenario", s.Name))
	logger.Info("running scenario",
		slog.Int("queries", len(s.Queries)),
		slog.Int("concurrency", o.concurrency))

	queryOpts := append([]uncertain.Option{
		uncertain.WithConfig(s.Config),
		uncertain.WithLogger(logger),
	}, o.queryOptions...)

	results := make([]Result, len(s.Queries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, q := range s.Queries {
		g.Go(func() error {
			res, err := runQuery(gCtx, s, q, queryOpts)
			if err != nil {
				return fmt.Errorf("query %q: %w", q.Name, err)
			}
			results[i] = res
			logger.Info("query answered", slog.String("query", q.Name), slog.String("result", res.Summary()))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("scenario failed", slog.String("error", err.Error()))
		return nil, err
	}
	return results, nil
}

// runQuery compiles and answers one query.
func runQuery(ctx context.Context, s *Scenario, q Query, opts []uncertain.Option) (Result, error) {
	v, err := newCompiler(s).compile(q.Expr)
	if err != nil {
		return Result{}, err
	}

	res := Result{Query: q.Name, Kind: q.Kind, Expr: q.Expr.String()}
	start := time.Now()

	switch q.Kind {
	case KindPr:
		test, err := uncertain.Test(ctx, v.cond, q.Threshold, opts...)
		if err != nil {
			return Result{}, err
		}
		res.Accepted = test.Accepted
		res.Decisive = test.Decisive
		res.Threshold = test.Threshold
		res.Samples = test.Samples

	case KindExpect:
		est, err := uncertain.Estimate(ctx, v.num, q.Precision, opts...)
		var cerr *uncertain.ConvergenceError[float64]
		if err != nil && !errors.As(err, &cerr) {
			return Result{}, err
		}
		res.Mean = est.Mean
		res.HalfWidth = est.HalfWidth()
		res.Precision = est.Precision
		res.Converged = err == nil
		res.Samples = est.Steps

	default:
		return Result{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidScenario, q.Kind)
	}

	res.Duration = time.Since(start)
	return res, nil
}
