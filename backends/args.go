// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/vmaprand/pkg/core/rng"
)

// RandomOptions are the arguments shared by all random kernels.
type RandomOptions struct {
	// Generator to draw from. If nil, the backend's default generator is used.
	//
	// It is a handle passed by reference: every draw advances its state.
	Generator *rng.Generator

	// DType of the generated values. If dtypes.InvalidDType (the zero value), the backend
	// default for the kernel family is used, see Capabilities.
	DType dtypes.DType
}

// ShapeArgs are the arguments of the shape-taking generators (randn, rand).
type ShapeArgs struct {
	// Shape of the generated tensor. Dimensions must be non-negative.
	Shape []int

	// Names of the axes, for the "*names" overloads. If set, it must have one entry per axis.
	Names []string

	RandomOptions
}

// BoundedIntArgs are the arguments of the bounded integer generators (randint).
type BoundedIntArgs struct {
	// Low is the inclusive lower bound, 0 for the overloads without a lower bound.
	Low int64

	// High is the exclusive upper bound.
	High int64

	// Shape of the generated tensor.
	Shape []int

	RandomOptions
}

// PermutationArgs are the arguments of the permutation generators (randperm).
type PermutationArgs struct {
	// N is the number of elements to permute.
	N int

	RandomOptions
}

// InPlaceArgs are the arguments of the in-place mutators (random_, normal_).
//
// The in-place kernels ignore RandomOptions.DType: they always write with the dtype of the target.
type InPlaceArgs struct {
	// From is the inclusive lower bound for Random. Defaults to 0 if nil.
	From *int64

	// To is the exclusive upper bound for Random. If nil, it defaults to the largest integer
	// exactly representable by the target dtype, plus one.
	To *int64

	// Mean for Normal.
	Mean float64

	// Std is the standard deviation for Normal. It must be >= 0.
	Std float64

	RandomOptions
}
