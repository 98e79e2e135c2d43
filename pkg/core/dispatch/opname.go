// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// OperatorName identifies one overload of an operator: the base name plus an optional overload
// qualifier. E.g.: {"randint", "low_generator"}.
type OperatorName struct {
	Name     string
	Overload string
}

// Op returns the OperatorName for name and an optional overload.
func Op(name string, overload ...string) OperatorName {
	if len(overload) > 1 {
		exceptions.Panicf("dispatch.Op(%q): at most one overload allowed, got %q", name, overload)
	}
	op := OperatorName{Name: name}
	if len(overload) == 1 {
		op.Overload = overload[0]
	}
	return op
}

// ParseOperatorName parses "name" or "name.overload".
func ParseOperatorName(s string) (OperatorName, error) {
	name, overload, _ := strings.Cut(s, ".")
	if name == "" || strings.Contains(overload, ".") {
		return OperatorName{}, errors.Errorf("dispatch: invalid operator name %q, expected \"name\" or \"name.overload\"", s)
	}
	return OperatorName{Name: name, Overload: overload}, nil
}

// String returns "name" or "name.overload".
func (op OperatorName) String() string {
	if op.Overload == "" {
		return op.Name
	}
	return op.Name + "." + op.Overload
}

// Base names of the random operators.
const (
	Randn    = "randn"
	Rand     = "rand"
	RandInt  = "randint"
	RandPerm = "randperm"
	Random_  = "random_"
	Normal_  = "normal_"
)

// Overload qualifiers.
const (
	OverloadGenerator          = "generator"
	OverloadNames              = "names"
	OverloadGeneratorWithNames = "generator_with_names"
	OverloadLow                = "low"
	OverloadLowGenerator       = "low_generator"
	OverloadFrom               = "from"
	OverloadTo                 = "to"
)

// usesGenerator returns whether the overload takes an explicit generator handle.
func (op OperatorName) usesGenerator() bool {
	return strings.Contains(op.Overload, OverloadGenerator)
}

// usesNames returns whether the overload takes axis names.
func (op OperatorName) usesNames() bool {
	return op.Overload == OverloadNames || op.Overload == OverloadGeneratorWithNames
}

// usesLow returns whether the overload takes a lower bound.
func (op OperatorName) usesLow() bool {
	return op.Overload == OverloadLow || op.Overload == OverloadLowGenerator
}
