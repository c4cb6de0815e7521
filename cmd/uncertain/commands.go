// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AleutianAI/uncertain/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// --- Global Command Variables ---
var (
	logLevel    string
	logJSON     bool
	logDir      string
	dumpMetrics bool
	traceSpans  bool
	configPath  string
	seedFlag    uint64

	concurrency  int
	outputFormat string

	lawName     string
	lawParams   []string
	greaterThan float64
	lessThan    float64
	threshold   float64
	precision   float64

	cliLogger      *logging.Logger
	tracerProvider *sdktrace.TracerProvider

	rootCmd = &cobra.Command{
		Use:   "uncertain",
		Short: "Answer questions about uncertain values by sampling",
		Long: `uncertain evaluates expressions over random variables lazily.
Probability questions are decided with a sequential probability ratio test
and expectations are estimated until a requested precision is reached.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupObservability,
	}

	runCmd = &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Answer every query of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioCommand, // Defined in cmd_run.go
	}

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Answer the queries of the built-in example scenario",
		Args:  cobra.NoArgs,
		RunE:  runDemoCommand, // Defined in cmd_run.go
	}

	exampleCmd = &cobra.Command{
		Use:   "example",
		Short: "Print the built-in example scenario",
		Args:  cobra.NoArgs,
		RunE:  runExampleCommand, // Defined in cmd_run.go
	}

	prCmd = &cobra.Command{
		Use:   "pr",
		Short: "Decide whether a condition on one law holds with at least a given probability",
		Args:  cobra.NoArgs,
		RunE:  runPrCommand, // Defined in cmd_query.go
	}

	expectCmd = &cobra.Command{
		Use:   "expect",
		Short: "Estimate the expected value of one law",
		Args:  cobra.NoArgs,
		RunE:  runExpectCommand, // Defined in cmd_query.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	pf.BoolVar(&logJSON, "log-json", false, "Log to stderr as JSON")
	pf.StringVar(&logDir, "log-dir", "", "Also write JSON logs to a daily file in this directory")
	pf.BoolVar(&dumpMetrics, "metrics", false, "Print query metrics in Prometheus text format to stderr on exit")
	pf.BoolVar(&traceSpans, "trace", false, "Print query spans to stderr")
	pf.StringVar(&configPath, "config", "", "YAML query configuration replacing the scenario's own")
	pf.Uint64Var(&seedFlag, "seed", 0, "Replace the high word of the configured seed; the low word is kept")
	pf.StringVarP(&outputFormat, "output", "o", "auto", "Result format: auto, pretty, text, yaml or json")

	runCmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum number of queries answered at once")
	demoCmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum number of queries answered at once")

	for _, c := range []*cobra.Command{prCmd, expectCmd} {
		c.Flags().StringVar(&lawName, "law", "", "Law of the variable, e.g. normal or bernoulli")
		c.Flags().StringArrayVar(&lawParams, "param", nil, "Law parameter as name=value; repeatable")
		_ = c.MarkFlagRequired("law")
	}
	prCmd.Flags().Float64Var(&greaterThan, "gt", 0, "Test x > value instead of a boolean law")
	prCmd.Flags().Float64Var(&lessThan, "lt", 0, "Test x < value instead of a boolean law")
	prCmd.Flags().Float64Var(&threshold, "threshold", 0.5, "Probability threshold in (0, 1)")
	prCmd.MarkFlagsMutuallyExclusive("gt", "lt")
	expectCmd.Flags().Float64Var(&precision, "precision", 0.01, "Requested half-width of the estimate")

	rootCmd.AddCommand(runCmd, demoCmd, exampleCmd, prCmd, expectCmd)
}

// execute runs the command line and releases what setupObservability
// acquired. Flags are reset first so that repeated calls start clean.
func execute(args []string, stdout, stderr io.Writer) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	if tracerProvider != nil {
		if serr := tracerProvider.Shutdown(context.Background()); serr != nil {
			fmt.Fprintf(stderr, "Error: flushing spans: %v\n", serr)
		}
		tracerProvider = nil
	}
	if dumpMetrics {
		if merr := writeMetrics(stderr); merr != nil {
			fmt.Fprintf(stderr, "Error: writing metrics: %v\n", merr)
		}
	}
	if cliLogger != nil {
		_ = cliLogger.Close()
		cliLogger = nil
	}
	return err
}

// setupObservability builds the logger and, when asked for, the span printer.
func setupObservability(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	cliLogger = logging.New(logging.Config{
		Level:   level,
		JSON:    logJSON,
		LogDir:  logDir,
		Service: "uncertain",
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(cliLogger.Slog())

	if traceSpans {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(cmd.ErrOrStderr()),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return fmt.Errorf("create span exporter: %w", err)
		}
		tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tracerProvider)
	}
	return nil
}

// writeMetrics prints the uncertain_* metric families in text format.
func writeMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "uncertain_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// resetFlags restores every flag of c and its subcommands to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
