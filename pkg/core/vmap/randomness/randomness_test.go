// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package randomness_test

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/vmaprand/backends"
	"github.com/gomlx/vmaprand/backends/simplego"
	"github.com/gomlx/vmaprand/pkg/core/dispatch"
	"github.com/gomlx/vmaprand/pkg/core/rng"
	"github.com/gomlx/vmaprand/pkg/core/shapes"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/gomlx/vmaprand/pkg/core/vmap"
	. "github.com/gomlx/vmaprand/pkg/core/vmap/randomness"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// kernelCall records one call to a random kernel of the countingBackend.
type kernelCall struct {
	kernel string
	shape  []int    // Requested shape, or the shape of the in-place target.
	names  []string // Axis names, for randn/rand.
	n      int      // For randperm.
}

// countingBackend records the calls to the random kernels, and forwards them to simplego.
type countingBackend struct {
	*simplego.Backend
	calls []kernelCall
}

func newCountingBackend(seed int64) *countingBackend {
	return &countingBackend{Backend: simplego.NewWithSeed(seed)}
}

func (b *countingBackend) count(kernel string) int {
	var n int
	for _, call := range b.calls {
		if call.kernel == kernel {
			n++
		}
	}
	return n
}

func (b *countingBackend) Randn(args backends.ShapeArgs) (*tensors.Tensor, error) {
	b.calls = append(b.calls, kernelCall{kernel: "randn", shape: slices.Clone(args.Shape), names: slices.Clone(args.Names)})
	return b.Backend.Randn(args)
}

func (b *countingBackend) Rand(args backends.ShapeArgs) (*tensors.Tensor, error) {
	b.calls = append(b.calls, kernelCall{kernel: "rand", shape: slices.Clone(args.Shape), names: slices.Clone(args.Names)})
	return b.Backend.Rand(args)
}

func (b *countingBackend) RandInt(args backends.BoundedIntArgs) (*tensors.Tensor, error) {
	b.calls = append(b.calls, kernelCall{kernel: "randint", shape: slices.Clone(args.Shape)})
	return b.Backend.RandInt(args)
}

func (b *countingBackend) RandPerm(args backends.PermutationArgs) (*tensors.Tensor, error) {
	b.calls = append(b.calls, kernelCall{kernel: "randperm", n: args.N})
	return b.Backend.RandPerm(args)
}

func (b *countingBackend) Random(self *tensors.Tensor, args backends.InPlaceArgs) error {
	b.calls = append(b.calls, kernelCall{kernel: "random_", shape: slices.Clone(self.Shape().Dimensions)})
	return b.Backend.Random(self, args)
}

func (b *countingBackend) Normal(self *tensors.Tensor, args backends.InPlaceArgs) error {
	b.calls = append(b.calls, kernelCall{kernel: "normal_", shape: slices.Clone(self.Shape().Dimensions)})
	return b.Backend.Normal(self, args)
}

func newDispatcher(t *testing.T, seed int64) (*dispatch.Dispatcher, *countingBackend) {
	backend := newCountingBackend(seed)
	d, err := dispatch.New(backend, Install)
	require.NoError(t, err)
	return d, backend
}

// takesGenerator returns whether the operator of rule can be given an explicit generator.
func takesGenerator(rule Rule) bool {
	return rule.Strategy == StrategyInPlaceMutator || strings.Contains(rule.Op.Overload, dispatch.OverloadGenerator)
}

// callRule calls the operator of rule with valid arguments for its overload.
// In-place operators are applied to target.
func callRule(d *dispatch.Dispatcher, rule Rule, target vmap.Value, generator *rng.Generator) (vmap.Value, error) {
	opts := backends.RandomOptions{}
	if takesGenerator(rule) {
		opts.Generator = generator
	}
	switch rule.Strategy {
	case StrategyShapeGenerator:
		args := backends.ShapeArgs{Shape: []int{3, 4}, RandomOptions: opts}
		if rule.Op.Overload == dispatch.OverloadNames || rule.Op.Overload == dispatch.OverloadGeneratorWithNames {
			args.Names = []string{"rows", "cols"}
		}
		return d.CallShape(rule.Op, args)
	case StrategyInPlaceMutator:
		args := backends.InPlaceArgs{Std: 1, RandomOptions: opts}
		from, to := int64(1), int64(100)
		switch rule.Op.Overload {
		case dispatch.OverloadFrom:
			args.From, args.To = &from, &to
		case dispatch.OverloadTo:
			args.To = &to
		}
		return d.CallInPlace(rule.Op, target, args)
	case StrategyBoundedInt:
		return d.CallBoundedInt(rule.Op, backends.BoundedIntArgs{High: 10, Shape: []int{3, 4}, RandomOptions: opts})
	case StrategyBoundedIntLow:
		return d.CallBoundedInt(rule.Op, backends.BoundedIntArgs{Low: -5, High: 5, Shape: []int{3, 4}, RandomOptions: opts})
	case StrategyPermutation:
		return d.CallPermutation(rule.Op, backends.PermutationArgs{N: 10, RandomOptions: opts})
	}
	return nil, errors.Errorf("unknown strategy %q", rule.Strategy)
}

func TestRules(t *testing.T) {
	rules := Rules()
	assert.Len(t, rules, len(dispatch.Operators()), "every random operator has a rule")
	seen := make(map[dispatch.OperatorName]bool)
	for _, rule := range rules {
		assert.False(t, seen[rule.Op], "duplicate rule for %s", rule.Op)
		seen[rule.Op] = true
		family := must.M1(dispatch.FamilyOf(rule.Op))
		switch rule.Strategy {
		case StrategyShapeGenerator:
			assert.Equal(t, dispatch.FamilyShapeGenerator, family)
		case StrategyInPlaceMutator:
			assert.Equal(t, dispatch.FamilyInPlaceMutator, family)
		case StrategyBoundedInt, StrategyBoundedIntLow:
			assert.Equal(t, dispatch.FamilyBoundedInt, family)
		case StrategyPermutation:
			assert.Equal(t, dispatch.FamilyPermutation, family)
		}
	}

	r := dispatch.NewRegistrations()
	require.NoError(t, Install(r))
	assert.Equal(t, len(rules), r.Len())
	require.Error(t, Install(r), "installing twice should fail")
}

func TestCheckRandomness(t *testing.T) {
	stack := vmap.NewLayerStack()
	layer, release := must.M2(stack.Push(2, vmap.RandomnessError))
	err := CheckRandomness(dispatch.Op(dispatch.Randn), layer)
	var policyErr *PolicyViolationError
	require.True(t, errors.As(err, &policyErr))
	assert.Equal(t, dispatch.Op(dispatch.Randn), policyErr.Op)
	assert.Contains(t, err.Error(), "randomness error mode")
	assert.Contains(t, err.Error(), "'same' or 'different'")
	release()

	for _, randomness := range []vmap.Randomness{vmap.RandomnessSame, vmap.RandomnessDifferent} {
		layer, release := must.M2(stack.Push(2, randomness))
		assert.NoError(t, CheckRandomness(dispatch.Op(dispatch.Randn), layer))
		release()
	}
}

func TestErrorMode(t *testing.T) {
	for _, rule := range Rules() {
		t.Run(rule.Op.String(), func(t *testing.T) {
			d, backend := newDispatcher(t, 1)
			generator := rng.NewGenerator(1)
			err := d.Vmap(3, vmap.RandomnessError, func(layer *vmap.Layer) error {
				target := must.M1(vmap.MakeBatched(tensors.FromShape(shapes.Make(dtypes.Float32, 3, 4)), 0, layer.ID()))
				_, err := callRule(d, rule, target, generator)
				assert.False(t, d.IsExcluded(dispatch.KeyVmapMode), "exclusion leaked after a policy violation")
				return err
			})
			var policyErr *PolicyViolationError
			require.True(t, errors.As(err, &policyErr), "expected PolicyViolationError, got %v", err)
			assert.Equal(t, rule.Op, policyErr.Op)
			assert.Empty(t, backend.calls, "no kernel should be called in error mode")
			assert.Equal(t, 0, d.ExclusionCount(dispatch.KeyVmapMode))

			// Unrelated call afterward is routed through the vmap rules normally.
			err = d.Vmap(2, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
				x, err := d.CallShape(dispatch.Op(dispatch.Rand), backends.ShapeArgs{Shape: []int{4}})
				if err != nil {
					return err
				}
				batched, ok := x.(*vmap.Batched)
				require.True(t, ok, "expected a batched result, got %T", x)
				assert.Equal(t, layer.ID(), batched.Level())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestShapeGenerator(t *testing.T) {
	t.Run("Different", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		err := d.Vmap(5, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
			x, err := d.CallShape(dispatch.Op(dispatch.Randn), backends.ShapeArgs{Shape: []int{3, 4}})
			require.NoError(t, err)
			batched, ok := x.(*vmap.Batched)
			require.True(t, ok)
			assert.Equal(t, layer.ID(), batched.Level())
			assert.Equal(t, 0, batched.BatchDim())
			assert.Equal(t, []int{3, 4}, x.Shape().Dimensions)
			assert.Equal(t, []int{5, 3, 4}, vmap.Physical(x).Shape().Dimensions)

			// Slices are different.
			physical := vmap.Physical(x)
			slice0 := must.M1(tensors.SliceAxis0(physical, 0))
			slice1 := must.M1(tensors.SliceAxis0(physical, 1))
			assert.False(t, slice0.Equal(slice1))
			return nil
		})
		require.NoError(t, err)
		require.Len(t, backend.calls, 1)
		assert.Equal(t, []int{5, 3, 4}, backend.calls[0].shape)
	})

	t.Run("Same", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		err := d.Vmap(5, vmap.RandomnessSame, func(layer *vmap.Layer) error {
			x, err := d.CallShape(dispatch.Op(dispatch.Rand), backends.ShapeArgs{Shape: []int{3, 4}})
			require.NoError(t, err)
			_, isTensor := x.(*tensors.Tensor)
			assert.True(t, isTensor, "same randomness result should be untagged")
			assert.Equal(t, []int{3, 4}, x.Shape().Dimensions)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, backend.calls, 1)
		assert.Equal(t, []int{3, 4}, backend.calls[0].shape)
	})

	t.Run("Names", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		generator := rng.NewGenerator(3)
		err := d.Vmap(2, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
			names := []string{"rows", "cols"}
			_, err := d.CallShape(dispatch.Op(dispatch.Randn, dispatch.OverloadGeneratorWithNames),
				backends.ShapeArgs{Shape: []int{3, 4}, Names: names, RandomOptions: backends.RandomOptions{Generator: generator}})
			assert.Equal(t, []string{"rows", "cols"}, names, "caller's names must not be modified")
			return err
		})
		require.NoError(t, err)
		require.Len(t, backend.calls, 1)
		assert.Equal(t, []string{"", "rows", "cols"}, backend.calls[0].names)
		assert.Equal(t, []int{2, 3, 4}, backend.calls[0].shape)
	})

	t.Run("ZeroSize", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		err := d.Vmap(3, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
			x, err := d.CallShape(dispatch.Op(dispatch.Rand), backends.ShapeArgs{Shape: []int{0, 2}})
			require.NoError(t, err)
			assert.Equal(t, []int{0, 2}, x.Shape().Dimensions)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{3, 0, 2}, backend.calls[0].shape)
	})
}

func TestBoundedInt(t *testing.T) {
	d, backend := newDispatcher(t, 1)
	err := d.Vmap(5, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
		x, err := d.CallBoundedInt(dispatch.Op(dispatch.RandInt, dispatch.OverloadLow),
			backends.BoundedIntArgs{Low: -2, High: 3, Shape: []int{2}})
		require.NoError(t, err)
		batched, ok := x.(*vmap.Batched)
		require.True(t, ok)
		assert.Equal(t, 0, batched.BatchDim())
		assert.Equal(t, []int{2}, x.Shape().Dimensions)
		for _, v := range tensors.CopyFlatData[int64](vmap.Physical(x)) {
			assert.True(t, v >= -2 && v < 3, "value %d out of bounds", v)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, backend.calls, 1)
	assert.Equal(t, []int{5, 2}, backend.calls[0].shape)

	err = d.Vmap(5, vmap.RandomnessSame, func(layer *vmap.Layer) error {
		x, err := d.CallBoundedInt(dispatch.Op(dispatch.RandInt), backends.BoundedIntArgs{High: 3, Shape: []int{2}})
		require.NoError(t, err)
		assert.IsType(t, &tensors.Tensor{}, x)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, backend.calls[1].shape)
}

func TestInPlaceMutator(t *testing.T) {
	t.Run("DifferentUnbatched", func(t *testing.T) {
		for _, opName := range []string{dispatch.Normal_, dispatch.Random_} {
			d, backend := newDispatcher(t, 1)
			target := tensors.FromShape(shapes.Make(dtypes.Float32, 3))
			err := d.Vmap(5, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
				_, err := d.CallInPlace(dispatch.Op(opName), target, backends.InPlaceArgs{Std: 1})
				return err
			})
			var broadcastErr *UnsatisfiableBroadcastError
			require.True(t, errors.As(err, &broadcastErr), "expected UnsatisfiableBroadcastError, got %v", err)
			assert.Contains(t, err.Error(), "Cannot ask for different inplace randomness on an unbatched tensor")
			assert.Empty(t, backend.calls)
			assert.Equal(t, 0, d.ExclusionCount(dispatch.KeyVmapMode))
		}
	})

	// Target batched at level along batchDim, with 5 slices of 3 elements.
	for _, batchDim := range []int{0, 1} {
		dims := []int{5, 3}
		if batchDim == 1 {
			dims = []int{3, 5}
		}
		slicesOf := func(x *tensors.Tensor) [][]float32 {
			flat := tensors.CopyFlatData[float32](x)
			result := make([][]float32, 5)
			for i := range 5 {
				for j := range 3 {
					if batchDim == 0 {
						result[i] = append(result[i], flat[i*3+j])
					} else {
						result[i] = append(result[i], flat[j*5+i])
					}
				}
			}
			return result
		}

		t.Run(fmt.Sprintf("SameBatched-batchDim=%d", batchDim), func(t *testing.T) {
			d, backend := newDispatcher(t, 1)
			physical := tensors.FromShape(shapes.Make(dtypes.Float32, dims...))
			err := d.Vmap(5, vmap.RandomnessSame, func(layer *vmap.Layer) error {
				target := must.M1(vmap.MakeBatched(physical, batchDim, layer.ID()))
				result, err := d.CallInPlace(dispatch.Op(dispatch.Normal_), target, backends.InPlaceArgs{Mean: 1, Std: 1})
				require.NoError(t, err)
				assert.Same(t, target, result)
				return nil
			})
			require.NoError(t, err)
			require.Len(t, backend.calls, 1)
			assert.Equal(t, []int{3}, backend.calls[0].shape, "scratch should have the per-slice shape")
			perSlice := slicesOf(physical)
			assert.NotEqual(t, []float32{0, 0, 0}, perSlice[0])
			for i := 1; i < 5; i++ {
				assert.Equal(t, perSlice[0], perSlice[i], "slice %d differs from slice 0", i)
			}
		})

		t.Run(fmt.Sprintf("DifferentBatched-batchDim=%d", batchDim), func(t *testing.T) {
			d, backend := newDispatcher(t, 1)
			physical := tensors.FromShape(shapes.Make(dtypes.Float32, dims...))
			err := d.Vmap(5, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
				target := must.M1(vmap.MakeBatched(physical, batchDim, layer.ID()))
				_, err := d.CallInPlace(dispatch.Op(dispatch.Normal_), target, backends.InPlaceArgs{Std: 1})
				return err
			})
			require.NoError(t, err)
			require.Len(t, backend.calls, 1)
			assert.Equal(t, []int{5, 3}, backend.calls[0].shape, "batch axis should be moved to the front")
			perSlice := slicesOf(physical)
			for i := range 5 {
				assert.NotEqual(t, []float32{0, 0, 0}, perSlice[i], "slice %d was not written", i)
				for j := range i {
					assert.NotEqual(t, perSlice[j], perSlice[i], "slices %d and %d are equal", j, i)
				}
			}
		})
	}

	t.Run("SameUnbatched", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		target := tensors.FromShape(shapes.Make(dtypes.Int64, 4))
		to := int64(1000)
		err := d.Vmap(5, vmap.RandomnessSame, func(layer *vmap.Layer) error {
			_, err := d.CallInPlace(dispatch.Op(dispatch.Random_, dispatch.OverloadTo), target, backends.InPlaceArgs{To: &to})
			return err
		})
		require.NoError(t, err)
		require.Len(t, backend.calls, 1)
		assert.Equal(t, []int{4}, backend.calls[0].shape)
		for _, v := range tensors.CopyFlatData[int64](target) {
			assert.True(t, v >= 0 && v < 1000)
		}
	})

	t.Run("NestedSame", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		physical := tensors.FromShape(shapes.Make(dtypes.Float64, 2, 3, 4))
		err := d.Vmap(2, vmap.RandomnessDifferent, func(outer *vmap.Layer) error {
			outerValue := must.M1(vmap.MakeBatched(physical, 0, outer.ID()))
			return d.Vmap(3, vmap.RandomnessSame, func(inner *vmap.Layer) error {
				target := must.M1(vmap.MakeBatched(outerValue, 0, inner.ID()))
				_, err := d.CallInPlace(dispatch.Op(dispatch.Normal_), target, backends.InPlaceArgs{Std: 1})
				return err
			})
		})
		require.NoError(t, err)
		require.Len(t, backend.calls, 1)
		assert.Equal(t, []int{4}, backend.calls[0].shape)
		flat := tensors.CopyFlatData[float64](physical)
		for start := 4; start < len(flat); start += 4 {
			assert.Equal(t, flat[0:4], flat[start:start+4])
		}
	})
}

func isPermutation(values []int64) bool {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	for ii, v := range sorted {
		if v != int64(ii) {
			return false
		}
	}
	return true
}

func TestPermutation(t *testing.T) {
	t.Run("Different", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		const seed = 42
		generator := rng.NewGenerator(seed)
		err := d.Vmap(4, vmap.RandomnessDifferent, func(layer *vmap.Layer) error {
			x, err := d.CallPermutation(dispatch.Op(dispatch.RandPerm, dispatch.OverloadGenerator),
				backends.PermutationArgs{N: 10, RandomOptions: backends.RandomOptions{Generator: generator}})
			require.NoError(t, err)
			batched, ok := x.(*vmap.Batched)
			require.True(t, ok)
			assert.Equal(t, layer.ID(), batched.Level())
			assert.Equal(t, 0, batched.BatchDim())
			physical := vmap.Physical(x)
			require.Equal(t, []int{4, 10}, physical.Shape().Dimensions)

			// Each slice consumed the shared generator in order.
			reference := rng.NewGenerator(seed)
			flat := tensors.CopyFlatData[int64](physical)
			var rows [][]int64
			for i := range 4 {
				row := flat[i*10 : (i+1)*10]
				assert.True(t, isPermutation(row), "row %d is not a permutation: %v", i, row)
				assert.Equal(t, reference.Perm(10), row, "row %d", i)
				for j, previous := range rows {
					assert.NotEqual(t, previous, row, "rows %d and %d are equal", j, i)
				}
				rows = append(rows, row)
			}
			assert.Equal(t, reference.State(), generator.State())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 4, backend.count("randperm"))
	})

	t.Run("Same", func(t *testing.T) {
		d, backend := newDispatcher(t, 1)
		err := d.Vmap(4, vmap.RandomnessSame, func(layer *vmap.Layer) error {
			x, err := d.CallPermutation(dispatch.Op(dispatch.RandPerm), backends.PermutationArgs{N: 10})
			require.NoError(t, err)
			assert.IsType(t, &tensors.Tensor{}, x)
			assert.Equal(t, []int{10}, x.Shape().Dimensions)
			assert.True(t, isPermutation(tensors.CopyFlatData[int64](vmap.Physical(x))))
			return nil
		})
		require.NoError(t, err)
		require.Len(t, backend.calls, 1)
		assert.Equal(t, 10, backend.calls[0].n)
	})
}

// TestSameIsReproducible checks that with same randomness the result is a function of the generator state.
func TestSameIsReproducible(t *testing.T) {
	for _, rule := range Rules() {
		if !takesGenerator(rule) {
			continue
		}
		t.Run(rule.Op.String(), func(t *testing.T) {
			d, _ := newDispatcher(t, 1)
			generator := rng.NewGenerator(7)
			initial := generator.State()
			draw := func() *tensors.Tensor {
				generator.SetState(initial)
				var result *tensors.Tensor
				err := d.Vmap(3, vmap.RandomnessSame, func(layer *vmap.Layer) error {
					target := tensors.FromShape(shapes.Make(dtypes.Float32, 3, 4))
					v, err := callRule(d, rule, target, generator)
					if err != nil {
						return err
					}
					result = vmap.Physical(v)
					return nil
				})
				require.NoError(t, err)
				return result
			}
			first, second := draw(), draw()
			assert.True(t, first.Equal(second), "%s: %s != %s", rule.Op, first, second)
		})
	}
}
