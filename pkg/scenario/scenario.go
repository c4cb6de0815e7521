// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scenario describes uncertain-value computations in YAML and runs
// them.
//
// A scenario declares random variables drawn from named laws, derived
// definitions built from expressions over them, and the queries to answer:
//
//	variables:
//	  - {name: distance, law: normal, params: {mu: 120, sigma: 8}}
//	  - {name: elapsed,  law: normal, params: {mu: 60, sigma: 1.5}}
//	definitions:
//	  - {name: speed, expr: {op: div, args: [distance, elapsed]}}
//	queries:
//	  - {name: fast, kind: pr, expr: {op: gt, args: [speed, 1.5]}, threshold: 0.5}
//	  - {name: mean, kind: expect, expr: speed, precision: 0.01}
//
// Every named variable or definition is compiled once per query into an
// uncertain.Shared handle, so a name used twice in one expression denotes
// the same draw: {op: sub, args: [speed, speed]} is exactly zero.
//
// Queries run concurrently. Each one compiles its own graph and draws from
// its own source seeded from the scenario, so results do not depend on
// scheduling.
package scenario

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/AleutianAI/uncertain/pkg/uncertain"
	"gopkg.in/yaml.v3"
)

// MaxScenarioFileSize is the maximum accepted size of a scenario file.
const MaxScenarioFileSize = 1 << 20

// Query kinds.
const (
	KindPr     = "pr"
	KindExpect = "expect"
)

//go:embed examples/walking.yaml
var exampleScenario []byte

// =============================================================================
// Document Types
// =============================================================================

// Scenario is a parsed scenario document.
type Scenario struct {
	// Name labels the scenario in logs and output.
	Name string `yaml:"name"`

	// Seed overrides Config.Seed when present.
	Seed *uncertain.Seed `yaml:"seed,omitempty"`

	// Config tunes every query. Missing fields keep their defaults.
	Config uncertain.Config `yaml:"config"`

	Variables   []Variable   `yaml:"variables"`
	Definitions []Definition `yaml:"definitions"`
	Queries     []Query      `yaml:"queries"`
}

// Variable is a leaf drawn from a named law.
type Variable struct {
	Name   string             `yaml:"name"`
	Law    string             `yaml:"law"`
	Params map[string]float64 `yaml:"params"`
}

// Definition names a derived expression. It may reference variables and
// earlier definitions.
type Definition struct {
	Name string `yaml:"name"`
	Expr Expr   `yaml:"expr"`
}

// Query is one terminal question.
type Query struct {
	Name string `yaml:"name"`

	// Kind is KindPr or KindExpect.
	Kind string `yaml:"kind"`

	Expr Expr `yaml:"expr"`

	// Threshold is the probability tested by a pr query.
	Threshold float64 `yaml:"threshold,omitempty"`

	// Precision is the requested half-width of an expect query.
	Precision float64 `yaml:"precision,omitempty"`
}

// Expr is an expression tree. Exactly one of Ref, Const or Op is set.
//
// In YAML a bare string is shorthand for a reference and a bare number or
// boolean is shorthand for a constant, so [distance, 2] is two valid
// arguments.
type Expr struct {
	Ref   string `yaml:"ref,omitempty"`
	Const any    `yaml:"const,omitempty"`
	Op    string `yaml:"op,omitempty"`
	Args  []Expr `yaml:"args,omitempty"`
}

// UnmarshalYAML implements the scalar shorthand.
func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch node.Tag {
		case "!!str":
			*e = Expr{Ref: node.Value}
			return nil
		case "!!int", "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return err
			}
			*e = Expr{Const: f}
			return nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			*e = Expr{Const: b}
			return nil
		default:
			return fmt.Errorf("%w: line %d: unsupported scalar %q", ErrInvalidScenario, node.Line, node.Value)
		}
	}

	type plain Expr
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Expr(p)
	return nil
}

// String renders the expression in prefix form, e.g. "(gt speed 1.5)".
func (e Expr) String() string {
	switch {
	case e.Ref != "":
		return e.Ref
	case e.Op != "":
		s := "(" + e.Op
		for _, a := range e.Args {
			s += " " + a.String()
		}
		return s + ")"
	default:
		return fmt.Sprint(e.Const)
	}
}

// =============================================================================
// Loading
// =============================================================================

// Parse decodes and validates a scenario document.
//
// Description:
//
//	Decodes the YAML on top of uncertain.DefaultConfig, applies the
//	top-level seed, then checks names, laws, references, query parameters
//	and expression types. A scenario returned without error compiles.
//
// Outputs:
//   - *Scenario: The validated scenario.
//   - error: Wraps ErrInvalidScenario or uncertain.ErrInvalidConfig.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{Config: uncertain.DefaultConfig()}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if s.Seed != nil {
		s.Config.Seed = *s.Seed
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	if info.Size() > MaxScenarioFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidScenario, path, info.Size(), MaxScenarioFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Example returns the built-in example scenario.
func Example() (*Scenario, error) {
	return Parse(exampleScenario)
}

// ExampleYAML returns the source of the built-in example scenario.
func ExampleYAML() []byte {
	out := make([]byte, len(exampleScenario))
	copy(out, exampleScenario)
	return out
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the scenario without running it.
//
// Names must be unique across variables and definitions. A definition may
// only reference names declared before it, which rules out cycles.
func (s *Scenario) Validate() error {
	if err := s.Config.Validate(); err != nil {
		return err
	}

	declared := make(map[string]bool, len(s.Variables)+len(s.Definitions))
	declare := func(section, name string) error {
		if name == "" {
			return fmt.Errorf("%w: %s entry without a name", ErrInvalidScenario, section)
		}
		if declared[name] {
			return fmt.Errorf("%w: %q declared twice", ErrInvalidScenario, name)
		}
		declared[name] = true
		return nil
	}

	for _, v := range s.Variables {
		if err := declare("variable", v.Name); err != nil {
			return err
		}
		if _, err := buildLaw(v); err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
	}
	for _, d := range s.Definitions {
		if err := checkRefs(d.Expr, declared); err != nil {
			return fmt.Errorf("definition %q: %w", d.Name, err)
		}
		if err := declare("definition", d.Name); err != nil {
			return err
		}
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("%w: no queries", ErrInvalidScenario)
	}
	seen := make(map[string]bool, len(s.Queries))
	for _, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("%w: query without a name", ErrInvalidScenario)
		}
		if seen[q.Name] {
			return fmt.Errorf("%w: query %q declared twice", ErrInvalidScenario, q.Name)
		}
		seen[q.Name] = true

		if err := checkRefs(q.Expr, declared); err != nil {
			return fmt.Errorf("query %q: %w", q.Name, err)
		}
		if err := s.checkQuery(q); err != nil {
			return fmt.Errorf("query %q: %w", q.Name, err)
		}
	}
	return nil
}

// checkQuery validates the query parameters and type-checks its expression
// by compiling it once.
func (s *Scenario) checkQuery(q Query) error {
	c := newCompiler(s)
	v, err := c.compile(q.Expr)
	if err != nil {
		return err
	}

	switch q.Kind {
	case KindPr:
		if !(q.Threshold > 0 && q.Threshold < 1) {
			return fmt.Errorf("%w: threshold must be in (0, 1), got %v", ErrInvalidScenario, q.Threshold)
		}
		if v.kind != kindBool {
			return fmt.Errorf("%w: pr needs a boolean expression, %s is %s", ErrTypeMismatch, q.Expr, v.kind)
		}
	case KindExpect:
		if !(q.Precision > 0) {
			return fmt.Errorf("%w: precision must be positive, got %v", ErrInvalidScenario, q.Precision)
		}
		if v.kind != kindNumber {
			return fmt.Errorf("%w: expect needs a numeric expression, %s is %s", ErrTypeMismatch, q.Expr, v.kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidScenario, q.Kind)
	}
	return nil
}

// checkRefs reports the first reference to an undeclared name.
func checkRefs(e Expr, declared map[string]bool) error {
	if e.Ref != "" && !declared[e.Ref] {
		return fmt.Errorf("%w: %q", ErrUnknownReference, e.Ref)
	}
	for _, a := range e.Args {
		if err := checkRefs(a, declared); err != nil {
			return err
		}
	}
	return nil
}
