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
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultBatchSize is the number of samples drawn between two
	// stopping-rule checks.
	DefaultBatchSize = 10

	// DefaultMaxBatches caps the number of batches per query. With the default
	// batch size a query draws at most 10 000 samples.
	DefaultMaxBatches = 1000

	// DefaultIndifference is the SPRT decision strength D. The decision
	// boundaries on the cumulative log-likelihood ratio are ±ln(D/(1-D)).
	DefaultIndifference = 0.999

	// MaxConfigFileSize is the maximum accepted size of a YAML config file.
	MaxConfigFileSize = 64 * 1024
)

// Seed seeds the PCG source a query creates when no source is supplied.
type Seed struct {
	Hi uint64 `yaml:"hi"`
	Lo uint64 `yaml:"lo"`
}

// DefaultSeed makes queries deterministic by default. Pass WithSeed or
// WithRand to vary it.
var DefaultSeed = Seed{Hi: 0xcafef00dd15ea5e5, Lo: 0xa02bdbf7bb3c0a7}

// NewRand returns a fresh PCG-backed source seeded with s.
func (s Seed) NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(s.Hi, s.Lo))
}

// =============================================================================
// Configuration
// =============================================================================

// Config tunes the query engines.
//
// The batch shape is an empirical tuning choice, not a correctness
// invariant. A zero Config is invalid; start from DefaultConfig.
type Config struct {
	// BatchSize is the number of samples between two stopping-rule checks.
	BatchSize int `yaml:"batch_size"`

	// MaxBatches is the number of batches after which a query gives up.
	MaxBatches int `yaml:"max_batches"`

	// Indifference is the SPRT decision strength D in (0.5, 1).
	Indifference float64 `yaml:"indifference"`

	// Seed seeds the source when no explicit source is supplied.
	Seed Seed `yaml:"seed"`
}

// DefaultConfig returns the configuration used when no option overrides it.
func DefaultConfig() Config {
	return Config{
		BatchSize:    DefaultBatchSize,
		MaxBatches:   DefaultMaxBatches,
		Indifference: DefaultIndifference,
		Seed:         DefaultSeed,
	}
}

// Budget returns the maximum number of samples a query may draw.
func (c Config) Budget() int {
	return c.BatchSize * c.MaxBatches
}

// Validate checks that the configuration is usable.
//
// Outputs:
//   - error: Non-nil, wrapping ErrInvalidConfig, if a field is out of range.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MaxBatches <= 0 {
		return fmt.Errorf("%w: max_batches must be positive, got %d", ErrInvalidConfig, c.MaxBatches)
	}
	if math.IsNaN(c.Indifference) || c.Indifference <= 0.5 || c.Indifference >= 1 {
		return fmt.Errorf("%w: indifference must be in (0.5, 1), got %v", ErrInvalidConfig, c.Indifference)
	}
	return nil
}

// ParseConfig decodes a YAML document on top of DefaultConfig.
//
// Fields missing from the document keep their default values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
//
// Inputs:
//   - path: Path to the YAML file.
//
// Outputs:
//   - Config: The parsed configuration, defaults applied.
//   - error: Non-nil if the file cannot be read, is too large, or is invalid.
func LoadConfig(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading query config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return Config{}, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidConfig, path, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading query config: %w", err)
	}
	return ParseConfig(data)
}

// =============================================================================
// Options
// =============================================================================

// Option configures a single query.
type Option func(*queryOptions)

type queryOptions struct {
	config         Config
	rng            *rand.Rand
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

func newQueryOptions(opts []Option) queryOptions {
	o := queryOptions{config: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *queryOptions) { o.config = cfg }
}

// WithBatchSize sets the number of samples between stopping-rule checks.
func WithBatchSize(n int) Option {
	return func(o *queryOptions) { o.config.BatchSize = n }
}

// WithMaxBatches sets the batch budget.
func WithMaxBatches(n int) Option {
	return func(o *queryOptions) { o.config.MaxBatches = n }
}

// WithIndifference sets the SPRT decision strength.
func WithIndifference(d float64) Option {
	return func(o *queryOptions) { o.config.Indifference = d }
}

// WithSeed seeds the query's fresh PCG source.
func WithSeed(hi, lo uint64) Option {
	return func(o *queryOptions) { o.config.Seed = Seed{Hi: hi, Lo: lo} }
}

// WithRand makes the query draw from rng instead of a freshly seeded source.
// The source is advanced by the query.
func WithRand(rng *rand.Rand) Option {
	return func(o *queryOptions) { o.rng = rng }
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *queryOptions) { o.logger = logger }
}

// WithTracerProvider sets the tracer provider. If nil, the global provider
// is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *queryOptions) { o.tracerProvider = tp }
}
