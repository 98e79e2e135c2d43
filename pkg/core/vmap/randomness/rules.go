// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package randomness implements the vmap batching rules of the random operators.
//
// Each rule reads the innermost vmap level and applies its randomness policy:
//
//   - vmap.RandomnessError: the call fails with a *PolicyViolationError.
//   - vmap.RandomnessSame: one draw is shared by all the batch slices.
//   - vmap.RandomnessDifferent: each slice gets an independent draw, and the result is batched.
//
// How a batched draw is produced depends on the operator family, see Strategy.
// The rules are added to a dispatcher with Install:
//
//	d, err := dispatch.New(backend, randomness.Install)
package randomness

import (
	"github.com/gomlx/vmaprand/pkg/core/dispatch"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Strategy is how a random operator is batched.
type Strategy string

const (
	// StrategyShapeGenerator prepends the batch axis to the requested shape.
	StrategyShapeGenerator Strategy = "ShapeGenerator"

	// StrategyInPlaceMutator fills the batched target, or copies one draw into all its slices.
	StrategyInPlaceMutator Strategy = "InPlaceMutator"

	// StrategyBoundedInt is StrategyShapeGenerator for the integer operators with an upper bound.
	StrategyBoundedInt Strategy = "BoundedInt"

	// StrategyBoundedIntLow is StrategyBoundedInt for the overloads that also take a lower bound.
	StrategyBoundedIntLow Strategy = "BoundedIntLow"

	// StrategyPermutation draws one permutation per slice and stacks them.
	StrategyPermutation Strategy = "Permutation"
)

// Rule associates an operator overload to its batching strategy.
type Rule struct {
	Op       dispatch.OperatorName
	Strategy Strategy
}

// Rules returns the batching rule of every random operator.
func Rules() []Rule {
	return []Rule{
		{dispatch.Op(dispatch.Randn), StrategyShapeGenerator},
		{dispatch.Op(dispatch.Randn, dispatch.OverloadGenerator), StrategyShapeGenerator},
		{dispatch.Op(dispatch.Randn, dispatch.OverloadGeneratorWithNames), StrategyShapeGenerator},
		{dispatch.Op(dispatch.Randn, dispatch.OverloadNames), StrategyShapeGenerator},
		{dispatch.Op(dispatch.Rand), StrategyShapeGenerator},
		{dispatch.Op(dispatch.Rand, dispatch.OverloadGenerator), StrategyShapeGenerator},
		{dispatch.Op(dispatch.Rand, dispatch.OverloadGeneratorWithNames), StrategyShapeGenerator},
		{dispatch.Op(dispatch.Rand, dispatch.OverloadNames), StrategyShapeGenerator},

		{dispatch.Op(dispatch.Random_), StrategyInPlaceMutator},
		{dispatch.Op(dispatch.Random_, dispatch.OverloadFrom), StrategyInPlaceMutator},
		{dispatch.Op(dispatch.Random_, dispatch.OverloadTo), StrategyInPlaceMutator},
		{dispatch.Op(dispatch.Normal_), StrategyInPlaceMutator},

		{dispatch.Op(dispatch.RandInt), StrategyBoundedInt},
		{dispatch.Op(dispatch.RandInt, dispatch.OverloadGenerator), StrategyBoundedInt},
		{dispatch.Op(dispatch.RandInt, dispatch.OverloadLow), StrategyBoundedIntLow},
		{dispatch.Op(dispatch.RandInt, dispatch.OverloadLowGenerator), StrategyBoundedIntLow},

		{dispatch.Op(dispatch.RandPerm), StrategyPermutation},
		{dispatch.Op(dispatch.RandPerm, dispatch.OverloadGenerator), StrategyPermutation},
	}
}

// Install registers the rules returned by Rules. It implements dispatch.Installer.
func Install(r *dispatch.Registrations) error {
	for _, rule := range Rules() {
		var err error
		switch rule.Strategy {
		case StrategyShapeGenerator:
			err = r.Shape.Register(rule.Op, shapeGenerator)
		case StrategyInPlaceMutator:
			err = r.InPlace.Register(rule.Op, inPlaceMutator)
		case StrategyBoundedInt:
			err = r.BoundedInt.Register(rule.Op, boundedInt)
		case StrategyBoundedIntLow:
			err = r.BoundedInt.Register(rule.Op, boundedIntLow)
		case StrategyPermutation:
			err = r.Permutation.Register(rule.Op, permutation)
		default:
			err = errors.Errorf("unknown strategy %q", rule.Strategy)
		}
		if err != nil {
			return errors.WithMessagef(err, "randomness.Install: rule for %s", rule.Op)
		}
	}
	klog.V(1).Infof("randomness: installed %d vmap rules", len(Rules()))
	return nil
}
