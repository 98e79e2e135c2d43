// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package randomness

import (
	"slices"

	"github.com/gomlx/vmaprand/backends"
	"github.com/gomlx/vmaprand/pkg/core/dispatch"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/gomlx/vmaprand/pkg/core/vmap"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// enterRule fetches the current level and checks the randomness policy.
// It must be called after excluding dispatch.KeyVmapMode.
func enterRule(d *dispatch.Dispatcher, op dispatch.OperatorName) (*vmap.Layer, error) {
	layer, err := d.CurrentLayer()
	if err != nil {
		return nil, errors.WithMessagef(err, "vmap rule for %s", op)
	}
	if err = CheckRandomness(op, layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// tag marks result as batched along its leading axis at the level.
func tag(result vmap.Value, layer *vmap.Layer) (vmap.Value, error) {
	batched, err := vmap.MakeBatched(result, 0, layer.ID())
	if err != nil {
		return nil, err
	}
	return batched, nil
}

// drawShaped runs draw once: with the batch axis prepended to shape and tagging the result for
// vmap.RandomnessDifferent, or with the shape unchanged and the result untagged for vmap.RandomnessSame.
func drawShaped(op dispatch.OperatorName, layer *vmap.Layer, shape []int,
	draw func(shape []int, batched bool) (vmap.Value, error)) (vmap.Value, error) {
	if layer.Randomness() != vmap.RandomnessDifferent {
		klog.V(2).Infof("vmap: %s at level %d (same randomness): shape %v", op, layer.ID(), shape)
		return draw(shape, false)
	}
	batchedShape := slices.Insert(slices.Clone(shape), 0, layer.BatchSize())
	klog.V(2).Infof("vmap: %s at level %d (different randomness): shape %v -> %v", op, layer.ID(), shape, batchedShape)
	result, err := draw(batchedShape, true)
	if err != nil {
		return nil, err
	}
	return tag(result, layer)
}

// shapeGenerator batches the operators that take a target shape.
func shapeGenerator(d *dispatch.Dispatcher, op dispatch.OperatorName, args backends.ShapeArgs) (vmap.Value, error) {
	defer d.Exclude(dispatch.KeyVmapMode)()
	layer, err := enterRule(d, op)
	if err != nil {
		return nil, err
	}
	return drawShaped(op, layer, args.Shape, func(shape []int, batched bool) (vmap.Value, error) {
		args.Shape = shape
		if batched && args.Names != nil {
			// The batch axis is unnamed.
			args.Names = slices.Insert(slices.Clone(args.Names), 0, "")
		}
		return d.CallShape(op, args)
	})
}

// boundedInt batches the integer operators with an upper bound.
func boundedInt(d *dispatch.Dispatcher, op dispatch.OperatorName, args backends.BoundedIntArgs) (vmap.Value, error) {
	defer d.Exclude(dispatch.KeyVmapMode)()
	layer, err := enterRule(d, op)
	if err != nil {
		return nil, err
	}
	return drawBoundedInt(d, op, layer, args)
}

// boundedIntLow batches the integer operators with both a lower and an upper bound.
func boundedIntLow(d *dispatch.Dispatcher, op dispatch.OperatorName, args backends.BoundedIntArgs) (vmap.Value, error) {
	defer d.Exclude(dispatch.KeyVmapMode)()
	layer, err := enterRule(d, op)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("vmap: %s bounds [%d, %d)", op, args.Low, args.High)
	return drawBoundedInt(d, op, layer, args)
}

func drawBoundedInt(d *dispatch.Dispatcher, op dispatch.OperatorName, layer *vmap.Layer, args backends.BoundedIntArgs) (vmap.Value, error) {
	return drawShaped(op, layer, args.Shape, func(shape []int, _ bool) (vmap.Value, error) {
		args.Shape = shape
		return d.CallBoundedInt(op, args)
	})
}

// inPlaceMutator batches the operators that fill an existing value.
//
// With different randomness the target must be batched at the current level, and it is filled with
// independent values. With same randomness a batched target gets one draw copied into every slice.
func inPlaceMutator(d *dispatch.Dispatcher, op dispatch.OperatorName, self vmap.Value, args backends.InPlaceArgs) (vmap.Value, error) {
	defer d.Exclude(dispatch.KeyVmapMode)()
	layer, err := d.CurrentLayer()
	if err != nil {
		return nil, errors.WithMessagef(err, "vmap rule for %s", op)
	}
	inner, batchDim, batched := vmap.UnwrapAtLevel(self, layer.ID())
	if err = CheckRandomness(op, layer); err != nil {
		return nil, err
	}
	randomness := layer.Randomness()
	if randomness == vmap.RandomnessDifferent && !batched {
		return nil, &UnsatisfiableBroadcastError{Op: op, Level: layer.ID()}
	}
	backend := d.Backend()

	if randomness == vmap.RandomnessSame && batched {
		klog.V(2).Infof("vmap: %s at level %d (same randomness): one draw of shape %s copied into %d slices",
			op, layer.ID(), self.Shape(), layer.BatchSize())
		scratch, err := backend.Empty(self.Shape())
		if err != nil {
			return nil, err
		}
		if _, err = d.CallInPlace(op, scratch, args); err != nil {
			return nil, err
		}
		if err = vmap.CopyInto(backend, self, scratch); err != nil {
			return nil, err
		}
		return self, nil
	}

	klog.V(2).Infof("vmap: %s at level %d (%s randomness): filling target in place (batched=%v)",
		op, layer.ID(), randomness, batched)
	selfValue, err := vmap.MoveBatchDimToFront(backend, inner, batchDim, batched)
	if err != nil {
		return nil, err
	}
	if _, err = d.CallInPlace(op, selfValue, args); err != nil {
		return nil, err
	}
	if batched {
		if err = vmap.CopyBack(backend, inner, selfValue, batchDim); err != nil {
			return nil, err
		}
	}
	return self, nil
}

// permutation batches the operators that draw a permutation of a number of elements.
//
// With different randomness it draws one permutation per slice, in order, from the same generator
// (the one given or the backend's default), and stacks them.
func permutation(d *dispatch.Dispatcher, op dispatch.OperatorName, args backends.PermutationArgs) (vmap.Value, error) {
	defer d.Exclude(dispatch.KeyVmapMode)()
	layer, err := enterRule(d, op)
	if err != nil {
		return nil, err
	}
	if layer.Randomness() != vmap.RandomnessDifferent {
		klog.V(2).Infof("vmap: %s at level %d (same randomness): one permutation of %d", op, layer.ID(), args.N)
		return d.CallPermutation(op, args)
	}

	klog.V(2).Infof("vmap: %s at level %d (different randomness): %d permutations of %d",
		op, layer.ID(), layer.BatchSize(), args.N)
	perms := make([]*tensors.Tensor, 0, layer.BatchSize())
	for range layer.BatchSize() {
		perm, err := d.CallPermutation(op, args)
		if err != nil {
			return nil, err
		}
		perms = append(perms, vmap.Physical(perm))
	}
	stacked, err := d.Backend().Stack(perms)
	if err != nil {
		return nil, err
	}
	return tag(stacked, layer)
}
