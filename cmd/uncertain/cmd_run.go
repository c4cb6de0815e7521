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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/AleutianAI/uncertain/pkg/scenario"
	"github.com/AleutianAI/uncertain/pkg/uncertain"
	"github.com/AleutianAI/uncertain/pkg/ux"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errUnknownFormat is returned for an unsupported --output value.
var errUnknownFormat = errors.New("unknown output format")

func runScenarioCommand(cmd *cobra.Command, args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	return answer(cmd, s)
}

func runDemoCommand(cmd *cobra.Command, args []string) error {
	s, err := scenario.Example()
	if err != nil {
		return err
	}
	return answer(cmd, s)
}

func runExampleCommand(cmd *cobra.Command, args []string) error {
	_, err := cmd.OutOrStdout().Write(scenario.ExampleYAML())
	return err
}

// answer runs s with the global flags applied and prints the results.
func answer(cmd *cobra.Command, s *scenario.Scenario) error {
	opts, err := queryOptions(cmd, s.Config)
	if err != nil {
		return err
	}
	results, err := scenario.Run(cmd.Context(), s,
		scenario.WithConcurrency(concurrency),
		scenario.WithQueryOptions(opts...),
	)
	if err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), outputFormat, s.Name, results)
}

// queryOptions turns --config and --seed into query options. They are
// applied after the scenario's own configuration, so they win. --seed
// replaces the high word of the seed in effect and keeps its low word.
func queryOptions(cmd *cobra.Command, base uncertain.Config) ([]uncertain.Option, error) {
	var opts []uncertain.Option
	if configPath != "" {
		cfg, err := uncertain.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		base = cfg
		opts = append(opts, uncertain.WithConfig(cfg))
	}
	if cmd.Flags().Changed("seed") {
		opts = append(opts, uncertain.WithSeed(seedFlag, base.Seed.Lo))
	}
	return opts, nil
}

// printResults writes results in the requested format. The auto format is
// pretty on a terminal and text otherwise.
func printResults(w io.Writer, format, title string, results []scenario.Result) error {
	if format == "auto" || format == "" {
		format = "text"
		if ux.IsTerminal(w) {
			format = "pretty"
		}
	}

	switch format {
	case "pretty":
		return printPretty(w, title, results)
	case "text":
		for _, r := range results {
			if _, err := fmt.Fprintln(w, r.Summary()); err != nil {
				return err
			}
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	default:
		return fmt.Errorf("%w: %q (want auto, pretty, text, yaml or json)", errUnknownFormat, format)
	}
}

// printPretty renders one status line per result and a tally.
func printPretty(w io.Writer, title string, results []scenario.Result) error {
	p := ux.NewPrinter(w)
	p.Title(title)

	var ok, warn, failed int
	for _, r := range results {
		icon := verdictIcon(r)
		switch icon {
		case ux.IconSuccess:
			ok++
		case ux.IconWarning:
			warn++
		default:
			failed++
		}
		p.Status(icon, r.Summary(), r.Duration.Round(time.Microsecond).String())
	}
	p.Tally(
		ux.Count{Icon: ux.IconSuccess, N: ok, Label: "answered yes or converged"},
		ux.Count{Icon: ux.IconError, N: failed, Label: "answered no"},
		ux.Count{Icon: ux.IconWarning, N: warn, Label: "out of budget"},
	)
	return p.Err()
}

// verdictIcon maps a result to its status icon. An exhausted budget is a
// warning whatever the kind.
func verdictIcon(r scenario.Result) ux.Icon {
	switch r.Kind {
	case scenario.KindPr:
		switch {
		case !r.Decisive:
			return ux.IconWarning
		case r.Accepted:
			return ux.IconSuccess
		default:
			return ux.IconError
		}
	default:
		if r.Converged {
			return ux.IconSuccess
		}
		return ux.IconWarning
	}
}
