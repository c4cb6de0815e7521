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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/uncertain/pkg/scenario"
	"github.com/AleutianAI/uncertain/pkg/uncertain"
	"github.com/spf13/cobra"
)

// errBadParam is returned for a --param value that is not name=number.
var errBadParam = errors.New("invalid --param")

// adhocVariable names the single variable of a pr or expect command.
const adhocVariable = "x"

func runPrCommand(cmd *cobra.Command, args []string) error {
	expr := scenario.Expr{Ref: adhocVariable}
	switch {
	case cmd.Flags().Changed("gt"):
		expr = compare("gt", greaterThan)
	case cmd.Flags().Changed("lt"):
		expr = compare("lt", lessThan)
	}
	s, err := adhocScenario(scenario.Query{
		Name:      "pr",
		Kind:      scenario.KindPr,
		Expr:      expr,
		Threshold: threshold,
	})
	if err != nil {
		return err
	}
	return answer(cmd, s)
}

func runExpectCommand(cmd *cobra.Command, args []string) error {
	s, err := adhocScenario(scenario.Query{
		Name:      "expect",
		Kind:      scenario.KindExpect,
		Expr:      scenario.Expr{Ref: adhocVariable},
		Precision: precision,
	})
	if err != nil {
		return err
	}
	return answer(cmd, s)
}

// adhocScenario wraps one query over the --law variable in a scenario, so
// the command line goes through the same validation as a scenario file.
func adhocScenario(q scenario.Query) (*scenario.Scenario, error) {
	params, err := parseParams(lawParams)
	if err != nil {
		return nil, err
	}
	s := &scenario.Scenario{
		Name:      lawName,
		Config:    uncertain.DefaultConfig(),
		Variables: []scenario.Variable{{Name: adhocVariable, Law: lawName, Params: params}},
		Queries:   []scenario.Query{q},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// parseParams parses name=value pairs.
func parseParams(pairs []string) (map[string]float64, error) {
	params := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q is not name=value", errBadParam, pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errBadParam, name, err)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("%w: %s given twice", errBadParam, name)
		}
		params[name] = v
	}
	return params, nil
}

func compare(op string, bound float64) scenario.Expr {
	return scenario.Expr{
		Op:   op,
		Args: []scenario.Expr{{Ref: adhocVariable}, {Const: bound}},
	}
}
