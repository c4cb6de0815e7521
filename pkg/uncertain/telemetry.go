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
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

const (
	kindPr     = "pr"
	kindExpect = "expect"

	outcomeAccepted     = "accepted"
	outcomeRejected     = "rejected"
	outcomeUndecided    = "undecided"
	outcomeConverged    = "converged"
	outcomeNotConverged = "not_converged"
	outcomeCancelled    = "cancelled"
	outcomeInvalid      = "invalid"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uncertain_queries_total",
		Help: "Total uncertain-value queries by kind and outcome",
	}, []string{"kind", "outcome"})

	querySamples = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uncertain_query_samples",
		Help:    "Number of samples drawn per query",
		Buckets: []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	}, []string{"kind"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uncertain_query_duration_seconds",
		Help:    "Wall-clock duration of uncertain-value queries",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"kind"})
)

// =============================================================================
// OTel Tracer
// =============================================================================

const tracerName = "uncertain.query"

// =============================================================================
// Query Lifecycle
// =============================================================================

// query carries the per-call state shared by Test and Estimate: the private
// source, the resolved configuration and the observability handles.
type query struct {
	kind   string
	id     string
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger
	span   trace.Span
	start  time.Time
}

// beginQuery resolves options, validates the configuration and opens a span.
//
// The returned context carries the span. On error no span is left open.
func beginQuery(ctx context.Context, kind string, opts []Option, attrs ...attribute.KeyValue) (context.Context, *query, error) {
	o := newQueryOptions(opts)
	if err := o.config.Validate(); err != nil {
		queriesTotal.WithLabelValues(kind, outcomeInvalid).Inc()
		return ctx, nil, err
	}

	// A private *rand.Rand per query keys the cache slots. A caller's
	// source is wrapped, not used directly, so two queries sharing it still
	// get distinct keys while drawing the same stream.
	rng := o.config.Seed.NewRand()
	if o.rng != nil {
		rng = rand.New(o.rng)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	id := uuid.NewString()
	ctx, span := tp.Tracer(tracerName).Start(ctx, "uncertain."+kindSpanName(kind))
	span.SetAttributes(append(attrs,
		attribute.String("query_id", id),
		attribute.Int("batch_size", o.config.BatchSize),
		attribute.Int("max_batches", o.config.MaxBatches),
	)...)

	q := &query{
		kind:   kind,
		id:     id,
		cfg:    o.config,
		rng:    rng,
		logger: logger.With(slog.String("query_id", id), slog.String("kind", kind)),
		span:   span,
		start:  time.Now(),
	}
	q.logger.Debug("query started", slog.Int("budget", o.config.Budget()))
	return ctx, q, nil
}

// finish records metrics and closes the span.
func (q *query) finish(outcome string, samples int, err error) {
	defer q.span.End()

	queriesTotal.WithLabelValues(q.kind, outcome).Inc()
	querySamples.WithLabelValues(q.kind).Observe(float64(samples))
	queryDuration.WithLabelValues(q.kind).Observe(time.Since(q.start).Seconds())

	q.span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("samples", samples),
	)
	if err != nil {
		q.span.RecordError(err)
		q.span.SetStatus(codes.Error, outcome)
	}
}

func kindSpanName(kind string) string {
	switch kind {
	case kindPr:
		return "Pr"
	case kindExpect:
		return "Expect"
	default:
		return kind
	}
}
