// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"
	"slices"

	"github.com/gomlx/vmaprand/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Stack concatenates tensors of the same shape along a new leading axis.
// The result has shape [len(values), ...values[0].Shape().Dimensions].
func Stack(values []*Tensor) (*Tensor, error) {
	if len(values) == 0 {
		return nil, errors.New("tensors.Stack requires at least one tensor")
	}
	sliceShape := values[0].Shape()
	for ii, value := range values[1:] {
		if !value.Shape().Equal(sliceShape) {
			return nil, errors.Errorf("tensors.Stack: tensor #%d has shape %s, but tensor #0 has shape %s",
				ii+1, value.Shape(), sliceShape)
		}
	}
	output := FromShape(sliceShape.WithLeadingAxis(len(values)))
	sliceSize := sliceShape.Size()
	output.MutableFlatData(func(outputFlat any) {
		outputV := reflect.ValueOf(outputFlat)
		for ii, value := range values {
			value.ConstFlatData(func(flat any) {
				reflect.Copy(outputV.Slice(ii*sliceSize, (ii+1)*sliceSize), reflect.ValueOf(flat))
			})
		}
	})
	return output, nil
}

// MoveAxis returns a new tensor with the axis `from` moved to position `to`, the
// remaining axes keeping their relative order. Negative axes count from the end.
//
// The contents are copied: host tensors have no views.
func MoveAxis(t *Tensor, from, to int) (*Tensor, error) {
	shape := t.Shape()
	if shape.Rank() == 0 {
		return nil, errors.Errorf("tensors.MoveAxis(%d, %d): cannot move axes of a scalar", from, to)
	}
	if from < -shape.Rank() || from >= shape.Rank() || to < -shape.Rank() || to >= shape.Rank() {
		return nil, errors.Errorf("tensors.MoveAxis(%d, %d): axes out of bounds for shape %s", from, to, shape)
	}
	from = shape.AdjustAxis(from)
	to = shape.AdjustAxis(to)
	if from == to {
		return t.Clone(), nil
	}

	// perm[outputAxis] = inputAxis.
	perm := make([]int, 0, shape.Rank())
	for axis := range shape.Rank() {
		if axis != from {
			perm = append(perm, axis)
		}
	}
	perm = slices.Insert(perm, to, from)

	outputShape := shape.MoveAxis(from, to)
	output := FromShape(outputShape)
	if outputShape.Size() == 0 {
		return output, nil
	}
	inputStrides := shape.Strides()
	index := make([]int, outputShape.Rank())
	output.MutableFlatData(func(outputFlat any) {
		outputV := reflect.ValueOf(outputFlat)
		t.ConstFlatData(func(inputFlat any) {
			inputV := reflect.ValueOf(inputFlat)
			for outputIdx := range outputShape.Size() {
				inputIdx := 0
				for outAxis, inAxis := range perm {
					inputIdx += index[outAxis] * inputStrides[inAxis]
				}
				outputV.Index(outputIdx).Set(inputV.Index(inputIdx))
				incrementIndex(index, outputShape.Dimensions)
			}
		})
	})
	return output, nil
}

// incrementIndex advances a row-major multi-dimensional index by one position.
func incrementIndex(index, dimensions []int) {
	for axis := len(index) - 1; axis >= 0; axis-- {
		index[axis]++
		if index[axis] < dimensions[axis] {
			return
		}
		index[axis] = 0
	}
}

// BroadcastCopy copies src into dst. The shape of src must match the trailing axes of dst,
// and src is repeated over the leading axes of dst not present in src.
//
// Example: dst of shape [5, 3, 4] and src of shape [3, 4] sets each of the 5 slices of dst
// to the contents of src.
func BroadcastCopy(dst, src *Tensor) error {
	if dst == src {
		return nil
	}
	dstShape, srcShape := dst.Shape(), src.Shape()
	if dstShape.DType != srcShape.DType {
		return errors.Errorf("tensors.BroadcastCopy: dtype mismatch, dst=%s, src=%s", dstShape, srcShape)
	}
	numLeading := dstShape.Rank() - srcShape.Rank()
	if numLeading < 0 || !shapes.Make(dstShape.DType, dstShape.Dimensions[numLeading:]...).Equal(srcShape) {
		return errors.Errorf("tensors.BroadcastCopy: cannot broadcast src %s into dst %s", srcShape, dstShape)
	}
	srcSize := srcShape.Size()
	if srcSize == 0 {
		return nil
	}
	dst.MutableFlatData(func(dstFlat any) {
		dstV := reflect.ValueOf(dstFlat)
		src.ConstFlatData(func(srcFlat any) {
			srcV := reflect.ValueOf(srcFlat)
			for start := 0; start < dstV.Len(); start += srcSize {
				reflect.Copy(dstV.Slice(start, start+srcSize), srcV)
			}
		})
	})
	return nil
}

// SliceAxis0 returns a copy of the slice `index` of t along its leading axis.
func SliceAxis0(t *Tensor, index int) (*Tensor, error) {
	shape := t.Shape()
	if shape.Rank() == 0 {
		return nil, errors.New("tensors.SliceAxis0: cannot slice a scalar")
	}
	if index < 0 || index >= shape.Dimensions[0] {
		return nil, errors.Errorf("tensors.SliceAxis0(%d): index out of bounds for shape %s", index, shape)
	}
	sliceShape := shape.RemoveAxis(0)
	output := FromShape(sliceShape)
	sliceSize := sliceShape.Size()
	output.MutableFlatData(func(outputFlat any) {
		t.ConstFlatData(func(flat any) {
			reflect.Copy(reflect.ValueOf(outputFlat), reflect.ValueOf(flat).Slice(index*sliceSize, (index+1)*sliceSize))
		})
	})
	return output, nil
}
