// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape and associated tools.
//
// Shape represents the shape (dtype and axes dimensions) of a host tensor, or the shape
// requested from a tensor-generating operation. The dtype enumeration comes from
// github.com/gomlx/gopjrt/dtypes.
//
// ## Glossary
//
//   - Rank: number of axes of a Tensor.
//   - Axis: index of a dimension. Negative axes count from the end, so -1 is the last axis.
//   - Dimension: the size of a Tensor in one of its axes.
//   - Batch axis: an axis added by a vmap level, usually the leading one (axis 0).
//
// Unlike graph shapes, host shapes may have axes of dimension 0: random generators are
// allowed to be asked for empty tensors.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Shape represents the shape of a Tensor.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
//
// It panics if any of the dimensions is negative.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0", s)
		}
	}
	return s
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// AdjustAxis converts a negative axis to its positive counterpart.
// It panics for an out-of-bound axis.
func (s Shape) AdjustAxis(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("axis %d out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return adjustedAxis
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	return s.Dimensions[s.AdjustAxis(axis)]
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return s.EqualDimensions(s2)
}

// EqualDimensions compares two shapes for equality of dimensions. Dtypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// WithLeadingAxis returns a copy of the shape with a new axis of the given dimension
// inserted at position 0. This is how a vmap level materializes its batch axis.
func (s Shape) WithLeadingAxis(dim int) Shape {
	if dim < 0 {
		exceptions.Panicf("WithLeadingAxis(%d): dimension must be non-negative, shape=%s", dim, s)
	}
	s2 := Shape{DType: s.DType, Dimensions: make([]int, 0, s.Rank()+1)}
	s2.Dimensions = append(s2.Dimensions, dim)
	s2.Dimensions = append(s2.Dimensions, s.Dimensions...)
	return s2
}

// RemoveAxis returns a copy of the shape without the given axis.
func (s Shape) RemoveAxis(axis int) Shape {
	axis = s.AdjustAxis(axis)
	s2 := s.Clone()
	s2.Dimensions = slices.Delete(s2.Dimensions, axis, axis+1)
	return s2
}

// MoveAxis returns a copy of the shape with the axis `from` moved to position `to`,
// the other axes keeping their relative order.
func (s Shape) MoveAxis(from, to int) Shape {
	from = s.AdjustAxis(from)
	to = s.AdjustAxis(to)
	s2 := s.Clone()
	dim := s2.Dimensions[from]
	s2.Dimensions = slices.Delete(s2.Dimensions, from, from+1)
	s2.Dimensions = slices.Insert(s2.Dimensions, to, dim)
	return s2
}

// Strides returns the row-major strides for each axis, in number of elements.
func (s Shape) Strides() []int {
	rank := s.Rank()
	if rank == 0 {
		return nil
	}
	strides := make([]int, rank)
	stride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= s.Dimensions[axis]
	}
	return strides
}
