// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vmap

import (
	"fmt"
	"slices"

	"github.com/gomlx/vmaprand/pkg/core/shapes"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Value is anything flowing through a vmapped computation: either a plain *tensors.Tensor
// or a *Batched wrapping one.
//
// Shape returns the logical shape, the one seen by the user function (without batch axes).
type Value interface {
	Shape() shapes.Shape
}

var (
	_ Value = (*tensors.Tensor)(nil)
	_ Value = (*Batched)(nil)
)

// Batched is a value tagged as batched at a vmap level: one of its axes, the batch axis,
// enumerates the slices of the level.
//
// Values batched at several levels are nested wrappers: the outermost wrapper corresponds to
// the innermost (most recent) level.
type Batched struct {
	value    Value
	level    LevelID
	batchDim int
}

// MakeBatched tags value as batched at level, with the batch axis batchDim (an axis of value.Shape()).
func MakeBatched(value Value, batchDim int, level LevelID) (*Batched, error) {
	if value == nil {
		return nil, errors.New("vmap.MakeBatched: nil value")
	}
	if level < 1 {
		return nil, errors.Errorf("vmap.MakeBatched: invalid level %d", level)
	}
	if inner, ok := value.(*Batched); ok && inner.level >= level {
		return nil, errors.Errorf("vmap.MakeBatched: cannot tag at level %d a value already batched at level %d",
			level, inner.level)
	}
	shape := value.Shape()
	if batchDim < 0 || batchDim >= shape.Rank() {
		return nil, errors.Errorf("vmap.MakeBatched: batch axis %d out of range for shape %s", batchDim, shape)
	}
	return &Batched{value: value, level: level, batchDim: batchDim}, nil
}

// Shape returns the logical shape: the shape of the wrapped value without the batch axis.
func (b *Batched) Shape() shapes.Shape {
	return b.value.Shape().RemoveAxis(b.batchDim)
}

// Value returns the wrapped value, which includes the batch axis.
func (b *Batched) Value() Value { return b.value }

// Level at which the value is batched.
func (b *Batched) Level() LevelID { return b.level }

// BatchDim is the batch axis, in the shape of the wrapped value.
func (b *Batched) BatchDim() int { return b.batchDim }

// BatchSize is the dimension of the batch axis.
func (b *Batched) BatchSize() int { return b.value.Shape().Dimensions[b.batchDim] }

// String implements fmt.Stringer.
func (b *Batched) String() string {
	return fmt.Sprintf("Batched{level=%d, batchDim=%d, shape=%s}", b.level, b.batchDim, b.Shape())
}

// UnwrapAtLevel returns the value underneath the level tag and its batch axis, if v is batched at level.
// Otherwise it returns v itself and found=false.
func UnwrapAtLevel(v Value, level LevelID) (inner Value, batchDim int, found bool) {
	if b, ok := v.(*Batched); ok && b.level == level {
		return b.value, b.batchDim, true
	}
	return v, 0, false
}

// Physical returns the tensor holding the data of v, with all its batch axes, or nil if v is nil.
func Physical(v Value) *tensors.Tensor {
	for {
		switch x := v.(type) {
		case *tensors.Tensor:
			return x
		case *Batched:
			v = x.value
		default:
			return nil
		}
	}
}

// LayoutOps are the tensor layout operations needed to reorganize batched values.
// backends.Backend implements it.
type LayoutOps interface {
	Copy(dst, src *tensors.Tensor) error
	MoveAxis(x *tensors.Tensor, from, to int) (*tensors.Tensor, error)
}

// MoveBatchDimToFront moves the batch axis batchDim of value (as returned by UnwrapAtLevel) to
// the front. If found is false, or the batch axis is already the first, value is returned as is.
//
// Host tensors have no views, so a moved value is a copy: use CopyBack to write an in-place
// modification of the moved value back into value.
func MoveBatchDimToFront(ops LayoutOps, value Value, batchDim int, found bool) (Value, error) {
	if !found || batchDim == 0 {
		return value, nil
	}
	chain, err := describe(value)
	if err != nil {
		return nil, err
	}
	from, to, order, err := chain.planMove(batchDim, 0)
	if err != nil {
		return nil, err
	}
	moved, err := ops.MoveAxis(chain.physical, from, to)
	if err != nil {
		return nil, err
	}
	return chain.rewrap(moved, order), nil
}

// CopyBack writes moved, as returned by MoveBatchDimToFront(ops, value, batchDim, true), back into value.
func CopyBack(ops LayoutOps, value, moved Value, batchDim int) error {
	if moved == value || batchDim == 0 {
		return nil
	}
	chain, err := describe(value)
	if err != nil {
		return err
	}
	from, to, _, err := chain.planMove(batchDim, 0)
	if err != nil {
		return err
	}
	restored, err := ops.MoveAxis(Physical(moved), to, from)
	if err != nil {
		return err
	}
	return ops.Copy(chain.physical, restored)
}

// CopyInto copies src, shaped as the logical shape of target, into every slice of target,
// across all of its batch axes.
func CopyInto(ops LayoutOps, target Value, src *tensors.Tensor) error {
	if !target.Shape().Equal(src.Shape()) {
		return errors.Errorf("vmap.CopyInto: source shape %s doesn't match the target logical shape %s",
			src.Shape(), target.Shape())
	}
	chain, err := describe(target)
	if err != nil {
		return err
	}

	// Move batch axes to the front, in order, so src can be broadcast over them.
	type move struct{ from, to int }
	var moves []move
	order := identityAxes(chain.physical.Rank())
	leading := chain.physical
	for i, axis := range chain.batchAxes {
		from := slices.Index(order, axis)
		if from == i {
			continue
		}
		leading, err = ops.MoveAxis(leading, from, i)
		if err != nil {
			return err
		}
		order = slices.Insert(slices.Delete(order, from, from+1), i, axis)
		moves = append(moves, move{from, i})
	}
	if len(moves) == 0 {
		return ops.Copy(chain.physical, src)
	}
	if err = ops.Copy(leading, src); err != nil {
		return err
	}
	for _, m := range slices.Backward(moves) {
		leading, err = ops.MoveAxis(leading, m.to, m.from)
		if err != nil {
			return err
		}
	}
	return ops.Copy(chain.physical, leading)
}

// batchChain is the flattened structure of a value: the physical tensor, the batch wrappers from the
// innermost (closest to the tensor) outwards, and which physical axes are batch or logical axes.
type batchChain struct {
	physical    *tensors.Tensor
	wrappers    []*Batched
	batchAxes   []int // Physical axis of each wrapper, in the same order as wrappers.
	logicalAxes []int // Physical axes of the logical shape, in order.
}

func describe(v Value) (*batchChain, error) {
	chain := &batchChain{}
	for chain.physical == nil {
		switch x := v.(type) {
		case *tensors.Tensor:
			chain.physical = x
		case *Batched:
			chain.wrappers = append(chain.wrappers, x)
			v = x.value
		default:
			return nil, errors.Errorf("vmap: value of type %T is not backed by a tensor", v)
		}
	}
	slices.Reverse(chain.wrappers)
	chain.logicalAxes = identityAxes(chain.physical.Rank())
	for _, w := range chain.wrappers {
		axis := chain.logicalAxes[w.batchDim]
		chain.batchAxes = append(chain.batchAxes, axis)
		chain.logicalAxes = slices.Delete(chain.logicalAxes, w.batchDim, w.batchDim+1)
	}
	return chain, nil
}

// planMove returns the physical move (from, to) that moves the logical axis logicalFrom to logicalTo,
// and the resulting order of the original physical axes.
//
// The moved axis is placed physically next to its new logical neighbor, so the batch axes keep
// their relative position to the other logical axes.
func (c *batchChain) planMove(logicalFrom, logicalTo int) (from, to int, order []int, err error) {
	numLogical := len(c.logicalAxes)
	if logicalFrom < 0 || logicalFrom >= numLogical || logicalTo < 0 || logicalTo >= numLogical {
		return 0, 0, nil, errors.Errorf("vmap: cannot move axis %d to %d of a value with logical rank %d",
			logicalFrom, logicalTo, numLogical)
	}
	from = c.logicalAxes[logicalFrom]
	order = identityAxes(c.physical.Rank())
	if logicalFrom == logicalTo {
		return from, from, order, nil
	}
	newLogical := slices.Clone(c.logicalAxes)
	newLogical = slices.Insert(slices.Delete(newLogical, logicalFrom, logicalFrom+1), logicalTo, from)
	order = slices.Delete(order, from, from+1)
	if logicalTo < numLogical-1 {
		to = slices.Index(order, newLogical[logicalTo+1])
	} else {
		to = slices.Index(order, newLogical[logicalTo-1]) + 1
	}
	order = slices.Insert(order, to, from)
	return from, to, order, nil
}

// rewrap tags the physical tensor, whose axes are the original ones permuted to order, with the same
// levels as the chain.
func (c *batchChain) rewrap(physical *tensors.Tensor, order []int) Value {
	var v Value = physical
	remaining := slices.Clone(order)
	for ii, w := range c.wrappers {
		axis := c.batchAxes[ii]
		batchDim := slices.Index(remaining, axis)
		remaining = slices.Delete(remaining, batchDim, batchDim+1)
		v = &Batched{value: v, level: w.level, batchDim: batchDim}
	}
	return v
}

func identityAxes(rank int) []int {
	axes := make([]int, rank)
	for ii := range axes {
		axes[ii] = ii
	}
	return axes
}
