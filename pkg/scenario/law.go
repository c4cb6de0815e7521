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
	"slices"
	"strings"

	"github.com/AleutianAI/uncertain/pkg/uncertain"
	"github.com/AleutianAI/uncertain/pkg/uncertain/laws"
)

// ---- Law registry ----

// lawSpec describes how a law name maps to a leaf.
type lawSpec struct {
	params []string
	build  func(p map[string]float64) (value, error)
}

var lawRegistry = map[string]lawSpec{
	"normal": {[]string{"mu", "sigma"}, func(p map[string]float64) (value, error) {
		return numberLaw(laws.NewNormal(p["mu"], p["sigma"]))
	}},
	"lognormal": {[]string{"mu", "sigma"}, func(p map[string]float64) (value, error) {
		return numberLaw(laws.NewLogNormal(p["mu"], p["sigma"]))
	}},
	"poisson": {[]string{"lambda"}, func(p map[string]float64) (value, error) {
		return numberLaw(laws.NewPoisson(p["lambda"]))
	}},
	"binomial": {[]string{"n", "p"}, func(p map[string]float64) (value, error) {
		return numberLaw(laws.NewBinomial(p["n"], p["p"]))
	}},
	"exponential": {[]string{"rate"}, func(p map[string]float64) (value, error) {
		return numberLaw(laws.NewExponential(p["rate"]))
	}},
	"uniform": {[]string{"min", "max"}, func(p map[string]float64) (value, error) {
		return numberLaw(laws.NewUniform(p["min"], p["max"]))
	}},
	"bernoulli": {[]string{"p"}, func(p map[string]float64) (value, error) {
		law, err := laws.NewBernoulli(p["p"])
		if err != nil {
			return value{}, err
		}
		return boolValue(uncertain.FromVariate[bool](law)), nil
	}},
	"constant": {[]string{"value"}, func(p map[string]float64) (value, error) {
		return numberValue(uncertain.Point(p["value"])), nil
	}},
}

// numberLaw turns a validated float64 law into a leaf.
func numberLaw(law uncertain.Variate[float64], err error) (value, error) {
	if err != nil {
		return value{}, err
	}
	return numberValue(uncertain.FromVariate[float64](law)), nil
}

// buildLaw creates the leaf for a variable after checking its parameters.
func buildLaw(v Variable) (value, error) {
	entry, ok := lawRegistry[strings.ToLower(v.Law)]
	if !ok {
		return value{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownLaw, v.Law, strings.Join(LawNames(), ", "))
	}
	for _, name := range entry.params {
		if _, ok := v.Params[name]; !ok {
			return value{}, fmt.Errorf("%w: law %s needs parameter %q", ErrInvalidScenario, v.Law, name)
		}
	}
	for name := range v.Params {
		if !slices.Contains(entry.params, name) {
			return value{}, fmt.Errorf("%w: law %s has no parameter %q", ErrInvalidScenario, v.Law, name)
		}
	}
	return entry.build(v.Params)
}

// LawNames returns the supported law names, sorted.
func LawNames() []string {
	names := make([]string, 0, len(lawRegistry))
	for name := range lawRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LawParams returns the parameter names of a law, or nil if it is unknown.
func LawParams(law string) []string {
	entry, ok := lawRegistry[strings.ToLower(law)]
	if !ok {
		return nil
	}
	return append([]string(nil), entry.params...)
}
