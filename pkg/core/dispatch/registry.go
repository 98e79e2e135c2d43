// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"slices"
	"strings"

	"github.com/gomlx/vmaprand/backends"
	"github.com/gomlx/vmaprand/pkg/core/vmap"
	"github.com/pkg/errors"
)

// ShapeRule is the vmap batching rule of a FamilyShapeGenerator operator.
type ShapeRule func(d *Dispatcher, op OperatorName, args backends.ShapeArgs) (vmap.Value, error)

// InPlaceRule is the vmap batching rule of a FamilyInPlaceMutator operator.
// It returns self, after mutating it.
type InPlaceRule func(d *Dispatcher, op OperatorName, self vmap.Value, args backends.InPlaceArgs) (vmap.Value, error)

// BoundedIntRule is the vmap batching rule of a FamilyBoundedInt operator.
type BoundedIntRule func(d *Dispatcher, op OperatorName, args backends.BoundedIntArgs) (vmap.Value, error)

// PermutationRule is the vmap batching rule of a FamilyPermutation operator.
type PermutationRule func(d *Dispatcher, op OperatorName, args backends.PermutationArgs) (vmap.Value, error)

// Registry maps the operators of one family to their vmap rules.
type Registry[R any] struct {
	family Family
	rules  map[OperatorName]R
}

func newRegistry[R any](family Family) *Registry[R] {
	return &Registry[R]{family: family, rules: make(map[OperatorName]R)}
}

// Family of the operators in the registry.
func (r *Registry[R]) Family() Family { return r.family }

// Register the rule for op. It fails if op is not a known operator of the registry's family,
// or if it already has a rule.
func (r *Registry[R]) Register(op OperatorName, rule R) error {
	family, err := FamilyOf(op)
	if err != nil {
		return err
	}
	if family != r.family {
		return errors.Errorf("dispatch: operator %s is a %s, it cannot be registered as a %s", op, family, r.family)
	}
	if _, found := r.rules[op]; found {
		return errors.Errorf("dispatch: operator %s already has a vmap rule registered", op)
	}
	r.rules[op] = rule
	return nil
}

// Lookup the rule registered for op.
func (r *Registry[R]) Lookup(op OperatorName) (rule R, found bool) {
	rule, found = r.rules[op]
	return
}

// Operators with a registered rule, sorted.
func (r *Registry[R]) Operators() []OperatorName {
	ops := make([]OperatorName, 0, len(r.rules))
	for op := range r.rules {
		ops = append(ops, op)
	}
	slices.SortFunc(ops, func(a, b OperatorName) int {
		return strings.Compare(a.String(), b.String())
	})
	return ops
}

// Len returns the number of registered rules.
func (r *Registry[R]) Len() int { return len(r.rules) }

// Registrations holds the vmap rules of a Dispatcher, one registry per family.
type Registrations struct {
	Shape       *Registry[ShapeRule]
	InPlace     *Registry[InPlaceRule]
	BoundedInt  *Registry[BoundedIntRule]
	Permutation *Registry[PermutationRule]
}

// NewRegistrations returns empty registries.
func NewRegistrations() *Registrations {
	return &Registrations{
		Shape:       newRegistry[ShapeRule](FamilyShapeGenerator),
		InPlace:     newRegistry[InPlaceRule](FamilyInPlaceMutator),
		BoundedInt:  newRegistry[BoundedIntRule](FamilyBoundedInt),
		Permutation: newRegistry[PermutationRule](FamilyPermutation),
	}
}

// Len returns the total number of registered rules.
func (r *Registrations) Len() int {
	return r.Shape.Len() + r.InPlace.Len() + r.BoundedInt.Len() + r.Permutation.Len()
}

// Has returns whether op has a registered rule, in any family.
func (r *Registrations) Has(op OperatorName) bool {
	family, err := FamilyOf(op)
	if err != nil {
		return false
	}
	var found bool
	switch family {
	case FamilyShapeGenerator:
		_, found = r.Shape.Lookup(op)
	case FamilyInPlaceMutator:
		_, found = r.InPlace.Lookup(op)
	case FamilyBoundedInt:
		_, found = r.BoundedInt.Lookup(op)
	case FamilyPermutation:
		_, found = r.Permutation.Lookup(op)
	}
	return found
}

// Installer adds rules to the registrations. It is run once by New.
type Installer func(r *Registrations) error
