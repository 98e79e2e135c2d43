// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Family of a random operator: it defines the kernel signature, and how the operator is batched.
type Family int

const (
	// FamilyShapeGenerator operators take a target shape: randn, rand.
	FamilyShapeGenerator Family = iota

	// FamilyInPlaceMutator operators fill an existing value: random_, normal_.
	FamilyInPlaceMutator

	// FamilyBoundedInt operators take a shape and an upper bound, optionally a lower bound: randint.
	FamilyBoundedInt

	// FamilyPermutation operators take an element count: randperm.
	FamilyPermutation
)

//go:generate go tool enumer -type=Family -trimprefix=Family -output=gen_family_enumer.go family.go

type operatorSchema struct {
	family    Family
	overloads []string
}

// operatorSchemas lists every known operator with its overloads. The empty overload is the default one.
var operatorSchemas = map[string]operatorSchema{
	Randn:    {FamilyShapeGenerator, []string{"", OverloadGenerator, OverloadGeneratorWithNames, OverloadNames}},
	Rand:     {FamilyShapeGenerator, []string{"", OverloadGenerator, OverloadGeneratorWithNames, OverloadNames}},
	Random_:  {FamilyInPlaceMutator, []string{"", OverloadFrom, OverloadTo}},
	Normal_:  {FamilyInPlaceMutator, []string{""}},
	RandInt:  {FamilyBoundedInt, []string{"", OverloadGenerator, OverloadLow, OverloadLowGenerator}},
	RandPerm: {FamilyPermutation, []string{"", OverloadGenerator}},
}

// FamilyOf returns the family of a known operator overload.
func FamilyOf(op OperatorName) (Family, error) {
	schema, found := operatorSchemas[op.Name]
	if !found {
		return 0, errors.Errorf("dispatch: unknown operator %q", op.Name)
	}
	if !slices.Contains(schema.overloads, op.Overload) {
		return 0, errors.Errorf("dispatch: unknown overload %q for operator %q, valid overloads are %q",
			op.Overload, op.Name, schema.overloads)
	}
	return schema.family, nil
}

// Operators returns all known operator overloads, sorted.
func Operators() []OperatorName {
	var ops []OperatorName
	for name, schema := range operatorSchemas {
		for _, overload := range schema.overloads {
			ops = append(ops, OperatorName{Name: name, Overload: overload})
		}
	}
	slices.SortFunc(ops, func(a, b OperatorName) int {
		return strings.Compare(a.String(), b.String())
	})
	return ops
}
