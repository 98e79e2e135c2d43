// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dispatch routes calls of the random operators either to the vmap batching rules, when a
// vmap level is active, or to the backend kernels.
//
// The vmap rules are installed explicitly when creating the Dispatcher:
//
//	d, err := dispatch.New(backend, randomness.Install)
//	err = d.Vmap(5, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
//		x, err := d.CallShape(dispatch.Op(dispatch.Randn), backends.ShapeArgs{Shape: []int{3, 4}})
//		...
//	})
//
// A rule that needs the unbatched operator excludes KeyVmapMode while it runs, so its own calls
// reach the backend instead of being routed back to the rule.
package dispatch

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/vmaprand/backends"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/gomlx/vmaprand/pkg/core/vmap"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Dispatcher routes the random operators. It is not safe for concurrent use.
type Dispatcher struct {
	backend  backends.Backend
	layers   *vmap.LayerStack
	excluded ExcludedKeys
	rules    *Registrations
}

// New creates a Dispatcher over backend, with the rules added by installers.
func New(backend backends.Backend, installers ...Installer) (*Dispatcher, error) {
	if backend == nil {
		return nil, errors.New("dispatch.New: nil backend")
	}
	d := &Dispatcher{
		backend: backend,
		layers:  vmap.NewLayerStack(),
		rules:   NewRegistrations(),
	}
	for _, install := range installers {
		if err := install(d.rules); err != nil {
			return nil, errors.WithMessage(err, "dispatch.New: failed to install vmap rules")
		}
	}
	klog.V(1).Infof("dispatch: %d vmap rules installed, backend %q", d.rules.Len(), backend.Name())
	return d, nil
}

// Backend used for the unbatched kernels.
func (d *Dispatcher) Backend() backends.Backend { return d.backend }

// Layers is the stack of active vmap levels.
func (d *Dispatcher) Layers() *vmap.LayerStack { return d.layers }

// Registrations returns the installed vmap rules.
func (d *Dispatcher) Registrations() *Registrations { return d.rules }

// CurrentLayer returns the innermost active vmap level, or vmap.ErrNoActiveLayer.
func (d *Dispatcher) CurrentLayer() (*vmap.Layer, error) { return d.layers.Current() }

// Exclude key from the routing until the returned function is called.
func (d *Dispatcher) Exclude(key Key) (release func()) { return d.excluded.Exclude(key) }

// IsExcluded returns whether key is currently excluded from the routing.
func (d *Dispatcher) IsExcluded(key Key) bool { return d.excluded.IsExcluded(key) }

// ExclusionCount returns the number of unreleased exclusions of key.
func (d *Dispatcher) ExclusionCount(key Key) int { return d.excluded.Count(key) }

// Vmap runs fn inside a new vmap level with the given batch size and randomness.
// The level is released when fn returns, or panics.
func (d *Dispatcher) Vmap(batchSize int, randomness vmap.Randomness, fn func(layer *vmap.Layer) error) error {
	layer, release, err := d.layers.Push(batchSize, randomness)
	if err != nil {
		return err
	}
	defer release()
	klog.V(2).Infof("dispatch: entering %s", layer)
	return fn(layer)
}

// VmapWithDefaultRandomness is like Vmap, using the randomness configured by vmap.DefaultRandomness.
func (d *Dispatcher) VmapWithDefaultRandomness(batchSize int, fn func(layer *vmap.Layer) error) error {
	randomness, err := vmap.DefaultRandomness()
	if err != nil {
		return err
	}
	return d.Vmap(batchSize, randomness, fn)
}

// route returns whether a call should go to the vmap rules, as opposed to the backend.
func (d *Dispatcher) route(op OperatorName, family Family) (toRule bool, err error) {
	opFamily, err := FamilyOf(op)
	if err != nil {
		return false, err
	}
	if opFamily != family {
		return false, errors.Errorf("dispatch: operator %s is a %s, not a %s", op, opFamily, family)
	}
	if d.layers.Depth() > 0 && !d.excluded.IsExcluded(KeyVmapMode) {
		klog.V(3).Infof("dispatch: %s -> vmap rule", op)
		return true, nil
	}
	if d.excluded.IsExcluded(KeyBackend) {
		return false, errors.Errorf("dispatch: %s: no kernel to dispatch to, all keys are excluded", op)
	}
	klog.V(3).Infof("dispatch: %s -> backend %q", op, d.backend.Name())
	return false, nil
}

func noRuleError(op OperatorName) error {
	return errors.Errorf("dispatch: no vmap batching rule registered for %s", op)
}

// callKernel runs a backend kernel, converting panics to errors.
func callKernel(op OperatorName, kernel func() (*tensors.Tensor, error)) (vmap.Value, error) {
	var (
		result *tensors.Tensor
		err    error
	)
	if panicErr := exceptions.TryCatch[error](func() { result, err = kernel() }); panicErr != nil {
		return nil, errors.WithMessagef(panicErr, "dispatch: backend kernel for %s panicked", op)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "dispatch: backend kernel for %s failed", op)
	}
	return result, nil
}

func checkGeneratorOverload(op OperatorName, opts backends.RandomOptions) error {
	if op.usesGenerator() && opts.Generator == nil {
		return errors.Errorf("dispatch: %s requires a generator", op)
	}
	if !op.usesGenerator() && opts.Generator != nil {
		return errors.Errorf("dispatch: %s doesn't take a generator, use the %q overload", op, OverloadGenerator)
	}
	return nil
}

// CallShape calls a FamilyShapeGenerator operator.
func (d *Dispatcher) CallShape(op OperatorName, args backends.ShapeArgs) (vmap.Value, error) {
	toRule, err := d.route(op, FamilyShapeGenerator)
	if err != nil {
		return nil, err
	}
	if err = checkGeneratorOverload(op, args.RandomOptions); err != nil {
		return nil, err
	}
	if op.usesNames() != (args.Names != nil) {
		return nil, errors.Errorf("dispatch: %s: axis names given=%v, but the overload takes names=%v",
			op, args.Names != nil, op.usesNames())
	}
	if toRule {
		rule, found := d.rules.Shape.Lookup(op)
		if !found {
			return nil, noRuleError(op)
		}
		return rule(d, op, args)
	}
	return callKernel(op, func() (*tensors.Tensor, error) {
		if op.Name == Rand {
			return d.backend.Rand(args)
		}
		return d.backend.Randn(args)
	})
}

// CallInPlace calls a FamilyInPlaceMutator operator on self, and returns self.
//
// Outside vmap the backend kernel fills the physical tensor of self, including all its batch axes.
func (d *Dispatcher) CallInPlace(op OperatorName, self vmap.Value, args backends.InPlaceArgs) (vmap.Value, error) {
	toRule, err := d.route(op, FamilyInPlaceMutator)
	if err != nil {
		return nil, err
	}
	if self == nil {
		return nil, errors.Errorf("dispatch: %s: nil target", op)
	}
	switch op.Overload {
	case "":
		if args.From != nil || args.To != nil {
			return nil, errors.Errorf("dispatch: %s doesn't take bounds, use the %q or %q overloads",
				op, OverloadFrom, OverloadTo)
		}
	case OverloadFrom:
		if args.From == nil {
			return nil, errors.Errorf("dispatch: %s requires a lower bound", op)
		}
	case OverloadTo:
		if args.To == nil || args.From != nil {
			return nil, errors.Errorf("dispatch: %s requires only an upper bound", op)
		}
	}
	if toRule {
		rule, found := d.rules.InPlace.Lookup(op)
		if !found {
			return nil, noRuleError(op)
		}
		return rule(d, op, self, args)
	}
	physical := vmap.Physical(self)
	if physical == nil {
		return nil, errors.Errorf("dispatch: %s: target of type %T is not backed by a tensor", op, self)
	}
	_, err = callKernel(op, func() (*tensors.Tensor, error) {
		if op.Name == Normal_ {
			return physical, d.backend.Normal(physical, args)
		}
		return physical, d.backend.Random(physical, args)
	})
	if err != nil {
		return nil, err
	}
	return self, nil
}

// CallBoundedInt calls a FamilyBoundedInt operator.
func (d *Dispatcher) CallBoundedInt(op OperatorName, args backends.BoundedIntArgs) (vmap.Value, error) {
	toRule, err := d.route(op, FamilyBoundedInt)
	if err != nil {
		return nil, err
	}
	if err = checkGeneratorOverload(op, args.RandomOptions); err != nil {
		return nil, err
	}
	if !op.usesLow() && args.Low != 0 {
		return nil, errors.Errorf("dispatch: %s doesn't take a lower bound (got %d), use the %q overload",
			op, args.Low, OverloadLow)
	}
	if toRule {
		rule, found := d.rules.BoundedInt.Lookup(op)
		if !found {
			return nil, noRuleError(op)
		}
		return rule(d, op, args)
	}
	return callKernel(op, func() (*tensors.Tensor, error) {
		return d.backend.RandInt(args)
	})
}

// CallPermutation calls a FamilyPermutation operator.
func (d *Dispatcher) CallPermutation(op OperatorName, args backends.PermutationArgs) (vmap.Value, error) {
	toRule, err := d.route(op, FamilyPermutation)
	if err != nil {
		return nil, err
	}
	if err = checkGeneratorOverload(op, args.RandomOptions); err != nil {
		return nil, err
	}
	if toRule {
		rule, found := d.rules.Permutation.Lookup(op)
		if !found {
			return nil, noRuleError(op)
		}
		return rule(d, op, args)
	}
	return callKernel(op, func() (*tensors.Tensor, error) {
		return d.backend.RandPerm(args)
	})
}
