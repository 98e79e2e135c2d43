// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a host `Tensor`, a representation of a multi-dimensional array
// stored as a flat Go slice of its dtype, in row-major order.
//
// These are the values handled by the simplego backend and by the vmap batching rules: the
// rules never look at the contents, they only allocate, stack, move axes and copy them.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given.
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions, and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int32{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
package tensors

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/vmaprand/pkg/core/shapes"
)

// Tensor is a multidimensional array defined by its shape and its contents, stored
// as a flat slice of the Go type of its dtype.
//
// The shape is immutable. The contents may be changed in place with MutableFlatData.
type Tensor struct {
	shape shapes.Shape

	// mu protects flat, but not the shape.
	mu   sync.Mutex
	flat any
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) (t *Tensor) {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	return &Tensor{
		shape: shape.Clone(),
		flat:  flatV.Interface(),
	}
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The `DType` is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) (t *Tensor) {
	t = FromShape(shapes.Make(dtypes.FromGenericsType[T](), dimensions...))
	MutableFlatData(t, func(flat []T) {
		for ii := range flat {
			flat[ii] = value
		}
	})
	return
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) (t *Tensor) {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t = FromShape(shape)
	MutableFlatData(t, func(flat []T) {
		copy(flat, data)
	})
	return
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// AssertValid panics if the tensor is nil or has no storage.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("tensor is nil")
	}
	if t.flat == nil {
		exceptions.Panicf("tensor (shape=%s) has no storage", t.shape)
	}
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// The slice must not be changed, see MutableFlatData for that.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.AssertValid()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with a flat slice pointing to the Tensor data. The contents of the slice
// can be changed until accessFn returns. During this time the Tensor is locked.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.AssertValid()
	accessFn(t.flat)
}

// ConstFlatData is the "generics" version of Tensor.ConstFlatData.
//
// It panics if the given generic type doesn't match the DType of the tensor.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ConstFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	t.ConstFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// MutableFlatData is the "generics" version of Tensor.MutableFlatData.
//
// It panics if the given generic type doesn't match the DType of the tensor.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("MutableFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	t.MutableFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// CopyFlatData returns a copy of the flat data of the Tensor.
//
// It will panic if the given generic type doesn't match the DType of the tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	var flatCopy []T
	ConstFlatData(t, func(flat []T) {
		flatCopy = slices.Clone(flat)
	})
	return flatCopy
}

// Clone creates a deep copy of the Tensor.
func (t *Tensor) Clone() *Tensor {
	clone := FromShape(t.shape)
	t.ConstFlatData(func(flat any) {
		reflect.Copy(reflect.ValueOf(clone.flat), reflect.ValueOf(flat))
	})
	return clone
}

// Equal checks weather t == otherTensor: same shape and same values.
// If they are the same pointer they are considered equal.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	equal := true
	t.ConstFlatData(func(flat0 any) {
		otherTensor.ConstFlatData(func(flat1 any) {
			equal = reflect.DeepEqual(flat0, flat1)
		})
	})
	return equal
}

// maxStringElements is the number of elements above which String only prints the shape.
const maxStringElements = 64

// String converts to string, if not too large.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Size() > maxStringElements {
		return fmt.Sprintf("%s: (%d elements)", t.shape, t.Size())
	}
	var s string
	t.ConstFlatData(func(flat any) {
		s = fmt.Sprintf("%s: %v", t.shape, flat)
	})
	return s
}
