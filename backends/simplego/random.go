// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"math"
	"math/rand/v2"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/vmaprand/backends"
	"github.com/gomlx/vmaprand/pkg/core/rng"
	"github.com/gomlx/vmaprand/pkg/core/shapes"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// hostNumber are the Go types of the dtypes the random kernels can write.
type hostNumber interface {
	constraints.Float | constraints.Integer
}

// generatorFor returns the generator given in opts, or the backend's default one.
func (b *Backend) generatorFor(opts backends.RandomOptions) *rng.Generator {
	if opts.Generator != nil {
		return opts.Generator
	}
	return b.generator
}

// resolveDType returns the requested dtype, or the default if none was requested, after
// checking it's supported.
func resolveDType(opName string, requested, defaultDType dtypes.DType, supported map[dtypes.DType]bool) (dtypes.DType, error) {
	dtype := requested
	if dtype == dtypes.InvalidDType {
		dtype = defaultDType
	}
	if !supported[dtype] {
		return dtypes.InvalidDType, errors.Errorf("%s: dtype %s not supported by the %q backend", opName, dtype, BackendName)
	}
	return dtype, nil
}

// makeShape validates the requested dimensions and returns the corresponding shape.
func makeShape(opName string, dtype dtypes.DType, dimensions []int, names []string) (shapes.Shape, error) {
	for axis, dim := range dimensions {
		if dim < 0 {
			return shapes.Invalid(), errors.Errorf("%s: negative dimension %d for axis %d in shape %v", opName, dim, axis, dimensions)
		}
	}
	if names != nil && len(names) != len(dimensions) {
		return shapes.Invalid(), errors.Errorf("%s: %d axis names given (%q) for shape of rank %d (%v)",
			opName, len(names), names, len(dimensions), dimensions)
	}
	return shapes.Make(dtype, dimensions...), nil
}

// fillReal sets each element of flat with a value from draw.
func fillReal[T hostNumber](flat []T, r *rand.Rand, draw func(*rand.Rand) float64) {
	for ii := range flat {
		flat[ii] = T(draw(r))
	}
}

// halfFloat are the 16-bit floating point types, which are not Go numbers.
type halfFloat interface {
	float16.Float16 | bfloat16.BFloat16
}

// fillHalf is fillReal for the halfFloat types.
func fillHalf[T halfFloat](flat []T, r *rand.Rand, draw func(*rand.Rand) float64, fromFloat32 func(float32) T) {
	for ii := range flat {
		flat[ii] = fromFloat32(float32(draw(r)))
	}
}

// drawInt returns an integer uniformly drawn from [low, low+span). A span of 0 stands for 2^64.
func drawInt(r *rand.Rand, low int64, span uint64) int64 {
	if span == 0 {
		return int64(r.Uint64())
	}
	return low + int64(r.Uint64N(span))
}

// fillInt sets each element of flat with an integer uniformly drawn from [low, low+span).
// The caller checks that the range is representable by T.
func fillInt[T hostNumber](flat []T, r *rand.Rand, low int64, span uint64) {
	for ii := range flat {
		flat[ii] = T(drawInt(r, low, span))
	}
}

// fillIntHalf is fillInt for the halfFloat types.
func fillIntHalf[T halfFloat](flat []T, r *rand.Rand, low int64, span uint64, fromFloat32 func(float32) T) {
	for ii := range flat {
		flat[ii] = fromFloat32(float32(drawInt(r, low, span)))
	}
}

// fillRealTensor draws every element of t from draw, using the generator gen.
func fillRealTensor(t *tensors.Tensor, gen *rng.Generator, draw func(*rand.Rand) float64) error {
	var err error
	t.MutableFlatData(func(flatAny any) {
		gen.Draw(func(r *rand.Rand) {
			switch flat := flatAny.(type) {
			case []float32:
				fillReal(flat, r, draw)
			case []float64:
				fillReal(flat, r, draw)
			case []float16.Float16:
				fillHalf(flat, r, draw, float16.Fromfloat32)
			case []bfloat16.BFloat16:
				fillHalf(flat, r, draw, bfloat16.FromFloat32)
			default:
				err = errors.Errorf("real valued random kernels don't support dtype %s", t.DType())
			}
		})
	})
	return err
}

// fillIntTensor sets every element of t to an integer in [low, low+span), using the generator gen.
func fillIntTensor(t *tensors.Tensor, gen *rng.Generator, low int64, span uint64) error {
	var err error
	t.MutableFlatData(func(flatAny any) {
		gen.Draw(func(r *rand.Rand) {
			switch flat := flatAny.(type) {
			case []int32:
				fillInt(flat, r, low, span)
			case []int64:
				fillInt(flat, r, low, span)
			case []float32:
				fillInt(flat, r, low, span)
			case []float64:
				fillInt(flat, r, low, span)
			case []float16.Float16:
				fillIntHalf(flat, r, low, span, float16.Fromfloat32)
			case []bfloat16.BFloat16:
				fillIntHalf(flat, r, low, span, bfloat16.FromFloat32)
			default:
				err = errors.Errorf("integer random kernels don't support dtype %s", t.DType())
			}
		})
	})
	return err
}

// integerRange returns the range of integers the dtype represents exactly: the type limits for
// integer dtypes, and ±2^(mantissa bits + 1) for floating point dtypes.
func integerRange(dtype dtypes.DType) (lowest, highest int64, err error) {
	switch dtype {
	case dtypes.Int32:
		return math.MinInt32, math.MaxInt32, nil
	case dtypes.Int64:
		return math.MinInt64, math.MaxInt64, nil
	case dtypes.Float64:
		return -(1 << 53), 1 << 53, nil
	case dtypes.Float32:
		return -(1 << 24), 1 << 24, nil
	case dtypes.Float16:
		return -(1 << 11), 1 << 11, nil
	case dtypes.BFloat16:
		return -(1 << 8), 1 << 8, nil
	}
	return 0, 0, errors.Errorf("dtype %s not supported by the integer kernels of the %q backend", dtype, BackendName)
}

// checkIntBounds checks that every integer in [low, highInclusive] is exactly representable by dtype.
func checkIntBounds(opName, lowName, highName string, low, highInclusive int64, dtype dtypes.DType) error {
	lowest, highest, err := integerRange(dtype)
	if err != nil {
		return errors.WithMessage(err, opName)
	}
	if low < lowest || low > highest {
		return errors.Errorf("%s: %s=%d is out of bounds for dtype %s, valid values are in [%d, %d]",
			opName, lowName, low, dtype, lowest, highest)
	}
	if highInclusive < lowest || highInclusive > highest {
		return errors.Errorf("%s: %s=%d is out of bounds for dtype %s, valid values are in [%d, %d]",
			opName, highName, highInclusive, dtype, lowest, highest)
	}
	return nil
}

func (b *Backend) newRealTensor(opName string, args backends.ShapeArgs) (*tensors.Tensor, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	dtype, err := resolveDType(opName, args.DType, Capabilities.DefaultFloatDType, Capabilities.FloatDTypes)
	if err != nil {
		return nil, err
	}
	shape, err := makeShape(opName, dtype, args.Shape, args.Names)
	if err != nil {
		return nil, err
	}
	return tensors.FromShape(shape), nil
}

// Randn implements backends.RandomKernels.
func (b *Backend) Randn(args backends.ShapeArgs) (*tensors.Tensor, error) {
	t, err := b.newRealTensor("randn", args)
	if err != nil {
		return nil, err
	}
	if err = fillRealTensor(t, b.generatorFor(args.RandomOptions), (*rand.Rand).NormFloat64); err != nil {
		return nil, err
	}
	return t, nil
}

// Rand implements backends.RandomKernels.
func (b *Backend) Rand(args backends.ShapeArgs) (*tensors.Tensor, error) {
	t, err := b.newRealTensor("rand", args)
	if err != nil {
		return nil, err
	}
	// Rounding to a narrower dtype could yield 1.0.
	below := largestBelowOne(t.DType())
	draw := func(r *rand.Rand) float64 {
		return min(r.Float64(), below)
	}
	if err = fillRealTensor(t, b.generatorFor(args.RandomOptions), draw); err != nil {
		return nil, err
	}
	return t, nil
}

// largestBelowOne returns the largest value smaller than 1 representable by the floating point dtype.
func largestBelowOne(dtype dtypes.DType) float64 {
	switch dtype {
	case dtypes.Float32:
		return float64(math.Nextafter32(1, 0))
	case dtypes.Float16:
		return 1 - 1.0/(1<<11)
	case dtypes.BFloat16:
		return 1 - 1.0/(1<<8)
	}
	return math.Nextafter(1, 0)
}

// RandInt implements backends.RandomKernels.
func (b *Backend) RandInt(args backends.BoundedIntArgs) (*tensors.Tensor, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	if args.High <= args.Low {
		return nil, errors.Errorf("randint: expects low < high, got low=%d, high=%d", args.Low, args.High)
	}
	dtype, err := resolveDType("randint", args.DType, Capabilities.DefaultIntDType, Capabilities.IntDTypes)
	if err != nil {
		return nil, err
	}
	if err = checkIntBounds("randint", "low", "high - 1", args.Low, args.High-1, dtype); err != nil {
		return nil, err
	}
	shape, err := makeShape("randint", dtype, args.Shape, nil)
	if err != nil {
		return nil, err
	}
	t := tensors.FromShape(shape)
	span := uint64(args.High) - uint64(args.Low)
	if err = fillIntTensor(t, b.generatorFor(args.RandomOptions), args.Low, span); err != nil {
		return nil, err
	}
	return t, nil
}

// RandPerm implements backends.RandomKernels.
func (b *Backend) RandPerm(args backends.PermutationArgs) (*tensors.Tensor, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	if args.N < 0 {
		return nil, errors.Errorf("randperm: n must be non-negative, got %d", args.N)
	}
	dtype, err := resolveDType("randperm", args.DType, Capabilities.DefaultIntDType, Capabilities.IntDTypes)
	if err != nil {
		return nil, err
	}
	perm := b.generatorFor(args.RandomOptions).Perm(args.N)
	t := tensors.FromShape(shapes.Make(dtype, args.N))
	t.MutableFlatData(func(flatAny any) {
		switch flat := flatAny.(type) {
		case []int32:
			convertInto(flat, perm)
		case []int64:
			copy(flat, perm)
		case []float32:
			convertInto(flat, perm)
		case []float64:
			convertInto(flat, perm)
		}
	})
	return t, nil
}

func convertInto[T hostNumber](to []T, from []int64) {
	for ii, v := range from {
		to[ii] = T(v)
	}
}

// Random implements backends.RandomKernels.
func (b *Backend) Random(self *tensors.Tensor, args backends.InPlaceArgs) error {
	if err := b.checkValid(); err != nil {
		return err
	}
	if self == nil {
		return errors.New("random_: nil target tensor")
	}
	var low int64
	if args.From != nil {
		low = *args.From
	}
	_, highest, err := integerRange(self.DType())
	if err != nil {
		return errors.WithMessage(err, "random_")
	}
	// Without an upper bound the values go up to the largest exactly representable integer, inclusive.
	highInclusive := highest
	if args.To != nil {
		if *args.To <= low {
			return errors.Errorf("random_: expects from < to, got from=%d, to=%d", low, *args.To)
		}
		highInclusive = *args.To - 1
	}
	if err = checkIntBounds("random_", "from", "to - 1", low, highInclusive, self.DType()); err != nil {
		return err
	}
	// The span wraps to 0 (2^64) only for [math.MinInt64, math.MaxInt64].
	span := uint64(highInclusive) - uint64(low) + 1
	return fillIntTensor(self, b.generatorFor(args.RandomOptions), low, span)
}

// Normal implements backends.RandomKernels.
func (b *Backend) Normal(self *tensors.Tensor, args backends.InPlaceArgs) error {
	if err := b.checkValid(); err != nil {
		return err
	}
	if self == nil {
		return errors.New("normal_: nil target tensor")
	}
	if args.Std < 0 || math.IsNaN(args.Std) {
		return errors.Errorf("normal_: expects std >= 0, got %g", args.Std)
	}
	if !Capabilities.FloatDTypes[self.DType()] {
		return errors.Errorf("normal_: dtype %s not supported by the %q backend", self.DType(), BackendName)
	}
	draw := func(r *rand.Rand) float64 {
		return args.Mean + args.Std*r.NormFloat64()
	}
	return fillRealTensor(self, b.generatorFor(args.RandomOptions), draw)
}
