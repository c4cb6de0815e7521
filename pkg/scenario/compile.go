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
	"fmt"

	"github.com/AleutianAI/uncertain/pkg/uncertain"
)

// =============================================================================
// Typed Values
// =============================================================================

type valueKind int

const (
	kindNumber valueKind = iota
	kindBool
)

func (k valueKind) String() string {
	if k == kindBool {
		return "boolean"
	}
	return "numeric"
}

// value is a compiled expression of one of the two scenario types.
type value struct {
	kind valueKind
	num  uncertain.Node[float64]
	cond uncertain.Node[bool]
}

func numberValue(n uncertain.Node[float64]) value {
	return value{kind: kindNumber, num: n}
}

func boolValue(n uncertain.Node[bool]) value {
	return value{kind: kindBool, cond: n}
}

// share wraps the value in a Shared handle of the matching type.
func (v value) share() value {
	if v.kind == kindBool {
		return boolValue(uncertain.Share(v.cond))
	}
	return numberValue(uncertain.Share(v.num))
}

// =============================================================================
// Compiler
// =============================================================================

// compiler builds one query's graph. Named items are compiled at most once
// so every reference to a name shares one cache.
type compiler struct {
	variables   map[string]Variable
	definitions map[string]Definition
	built       map[string]value
}

func newCompiler(s *Scenario) *compiler {
	c := &compiler{
		variables:   make(map[string]Variable, len(s.Variables)),
		definitions: make(map[string]Definition, len(s.Definitions)),
		built:       make(map[string]value),
	}
	for _, v := range s.Variables {
		c.variables[v.Name] = v
	}
	for _, d := range s.Definitions {
		c.definitions[d.Name] = d
	}
	return c
}

// resolve returns the shared handle for a name, compiling it on first use.
func (c *compiler) resolve(name string) (value, error) {
	if v, ok := c.built[name]; ok {
		return v, nil
	}

	var (
		v   value
		err error
	)
	if variable, ok := c.variables[name]; ok {
		v, err = buildLaw(variable)
	} else if def, ok := c.definitions[name]; ok {
		v, err = c.compile(def.Expr)
	} else {
		return value{}, fmt.Errorf("%w: %q", ErrUnknownReference, name)
	}
	if err != nil {
		return value{}, fmt.Errorf("%s: %w", name, err)
	}

	v = v.share()
	c.built[name] = v
	return v, nil
}

// compile turns an expression into a typed node.
func (c *compiler) compile(e Expr) (value, error) {
	switch {
	case e.Ref != "":
		return c.resolve(e.Ref)
	case e.Op != "":
		return c.compileOp(e)
	case e.Const != nil:
		return compileConst(e.Const)
	default:
		return value{}, fmt.Errorf("%w: empty expression", ErrInvalidScenario)
	}
}

func compileConst(v any) (value, error) {
	switch c := v.(type) {
	case bool:
		return boolValue(uncertain.Point(c)), nil
	case float64:
		return numberValue(uncertain.Point(c)), nil
	case int:
		return numberValue(uncertain.Point(float64(c))), nil
	default:
		return value{}, fmt.Errorf("%w: unsupported constant %v (%T)", ErrInvalidScenario, v, v)
	}
}

// arity is the number of arguments each operator takes.
var arity = map[string]int{
	"add": 2, "sub": 2, "mul": 2, "div": 2,
	"gt": 2, "lt": 2, "ge": 2, "le": 2,
	"and": 2, "or": 2, "not": 1,
	"if": 3,
}

func (c *compiler) compileOp(e Expr) (value, error) {
	want, ok := arity[e.Op]
	if !ok {
		return value{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidScenario, e.Op)
	}
	if len(e.Args) != want {
		return value{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidScenario, e.Op, want, len(e.Args))
	}

	args := make([]value, len(e.Args))
	for i, a := range e.Args {
		v, err := c.compile(a)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}

	switch e.Op {
	case "add", "sub", "mul", "div":
		a, b, err := numbers(e, args[0], args[1])
		if err != nil {
			return value{}, err
		}
		return numberValue(arithmetic(e.Op, a, b)), nil

	case "gt", "lt", "ge", "le":
		a, b, err := numbers(e, args[0], args[1])
		if err != nil {
			return value{}, err
		}
		return boolValue(comparison(e.Op, a, b)), nil

	case "and", "or":
		if args[0].kind != kindBool || args[1].kind != kindBool {
			return value{}, mismatch(e, kindBool)
		}
		if e.Op == "and" {
			return boolValue(uncertain.And(args[0].cond, args[1].cond)), nil
		}
		return boolValue(uncertain.Or(args[0].cond, args[1].cond)), nil

	case "not":
		if args[0].kind != kindBool {
			return value{}, mismatch(e, kindBool)
		}
		return boolValue(uncertain.Not(args[0].cond)), nil

	default: // "if"
		cond, then, otherwise := args[0], args[1], args[2]
		if cond.kind != kindBool {
			return value{}, mismatch(e, kindBool)
		}
		if then.kind != otherwise.kind {
			return value{}, fmt.Errorf("%w: branches of %s differ", ErrTypeMismatch, e)
		}
		then, otherwise = then.share(), otherwise.share()
		if then.kind == kindBool {
			return boolValue(choose(cond.cond, then.cond, otherwise.cond)), nil
		}
		return numberValue(choose(cond.cond, then.num, otherwise.num)), nil
	}
}

// choose samples cond and then exactly one branch.
func choose[T any](cond uncertain.Node[bool], then, otherwise uncertain.Node[T]) uncertain.Node[T] {
	return uncertain.FlatMap(cond, func(b bool) uncertain.Node[T] {
		if b {
			return then
		}
		return otherwise
	})
}

func arithmetic(op string, a, b uncertain.Node[float64]) uncertain.Node[float64] {
	switch op {
	case "add":
		return uncertain.Add(a, b)
	case "sub":
		return uncertain.Sub(a, b)
	case "mul":
		return uncertain.Mul(a, b)
	default:
		return uncertain.Div(a, b)
	}
}

func comparison(op string, a, b uncertain.Node[float64]) uncertain.Node[bool] {
	switch op {
	case "gt":
		return uncertain.Greater(a, b)
	case "lt":
		return uncertain.Less(a, b)
	case "ge":
		return uncertain.AtLeast(a, b)
	default:
		return uncertain.AtMost(a, b)
	}
}

func numbers(e Expr, a, b value) (uncertain.Node[float64], uncertain.Node[float64], error) {
	if a.kind != kindNumber || b.kind != kindNumber {
		return nil, nil, mismatch(e, kindNumber)
	}
	return a.num, b.num, nil
}

func mismatch(e Expr, want valueKind) error {
	return fmt.Errorf("%w: %s needs %s operands", ErrTypeMismatch, e, want)
}
