// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/vmaprand/backends"
	"github.com/gomlx/vmaprand/pkg/core/dispatch"
	"github.com/gomlx/vmaprand/pkg/core/rng"
	"github.com/gomlx/vmaprand/pkg/core/shapes"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/gomlx/vmaprand/pkg/core/vmap"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/x448/float16"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// parseShape parses a comma-separated list of dimensions. An empty string is a scalar.
func parseShape(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	dims := make([]int, len(parts))
	for ii, part := range parts {
		dim, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid dimension %q in shape %q", part, s)
		}
		dims[ii] = dim
	}
	return dims, nil
}

// drawConfig is the parsed configuration of a draw.
type drawConfig struct {
	op         dispatch.OperatorName
	family     dispatch.Family
	randomness vmap.Randomness
	shape      []int
	generator  *rng.Generator
}

func newDrawConfig() (*drawConfig, error) {
	op, err := dispatch.ParseOperatorName(*flagOp)
	if err != nil {
		return nil, err
	}
	family, err := dispatch.FamilyOf(op)
	if err != nil {
		return nil, err
	}
	var randomness vmap.Randomness
	if *flagRandomness == "" {
		randomness, err = vmap.DefaultRandomness()
	} else {
		randomness, err = vmap.RandomnessString(*flagRandomness)
	}
	if err != nil {
		return nil, err
	}
	shape, err := parseShape(*flagShape)
	if err != nil {
		return nil, err
	}
	return &drawConfig{
		op:         op,
		family:     family,
		randomness: randomness,
		shape:      shape,
		generator:  rng.NewGenerator(*flagSeed),
	}, nil
}

// call the operator inside the vmap level.
func (c *drawConfig) call(d *dispatch.Dispatcher, layer *vmap.Layer) (vmap.Value, error) {
	var opts backends.RandomOptions
	if strings.Contains(c.op.Overload, dispatch.OverloadGenerator) {
		opts.Generator = c.generator
	}
	switch c.family {
	case dispatch.FamilyShapeGenerator:
		args := backends.ShapeArgs{Shape: c.shape, RandomOptions: opts}
		if strings.Contains(c.op.Overload, dispatch.OverloadNames) {
			for axis := range c.shape {
				args.Names = append(args.Names, fmt.Sprintf("axis%d", axis))
			}
			if args.Names == nil {
				args.Names = []string{}
			}
		}
		return d.CallShape(c.op, args)

	case dispatch.FamilyBoundedInt:
		args := backends.BoundedIntArgs{High: *flagHigh, Shape: c.shape, RandomOptions: opts}
		if strings.HasPrefix(c.op.Overload, dispatch.OverloadLow) {
			args.Low = *flagLow
		}
		return d.CallBoundedInt(c.op, args)

	case dispatch.FamilyPermutation:
		return d.CallPermutation(c.op, backends.PermutationArgs{N: *flagN, RandomOptions: opts})

	case dispatch.FamilyInPlaceMutator:
		// Target batched along its leading axis, with one slice per batch element.
		opts.Generator = c.generator
		physical, err := d.Backend().Empty(shapes.Make(dtypes.Float32, append([]int{layer.BatchSize()}, c.shape...)...))
		if err != nil {
			return nil, err
		}
		target, err := vmap.MakeBatched(physical, 0, layer.ID())
		if err != nil {
			return nil, err
		}
		args := backends.InPlaceArgs{Std: 1, RandomOptions: opts}
		low, high := *flagLow, *flagHigh
		switch c.op.Overload {
		case dispatch.OverloadFrom:
			args.From, args.To = &low, &high
		case dispatch.OverloadTo:
			args.To = &high
		}
		return d.CallInPlace(c.op, target, args)
	}
	return nil, errors.Errorf("unknown family %s", c.family)
}

// drawOp draws from the operator selected by -op, and reports the values.
func drawOp(d *dispatch.Dispatcher) error {
	config, err := newDrawConfig()
	if err != nil {
		return err
	}
	repeat := max(*flagRepeat, 1)
	var bar *progressbar.ProgressBar
	if repeat > 1 {
		bar = progressbar.NewOptions(repeat,
			progressbar.OptionSetDescription(fmt.Sprintf("Drawing %s: ", config.op)),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("draws"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}

	var (
		last    vmap.Value
		samples [][]float64
	)
	for range repeat {
		err = d.Vmap(*flagBatch, config.randomness, func(layer *vmap.Layer) error {
			value, err := config.call(d, layer)
			if err != nil {
				return err
			}
			last = value
			samples = appendSlices(samples, value, layer)
			return nil
		})
		if err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	printSummary(config, last, samples, repeat)
	if *flagStats {
		if err = printStats(samples); err != nil {
			return err
		}
	}
	if *flagHistogram != "" {
		if err = saveHistogram(config, samples, *flagHistogram); err != nil {
			return err
		}
		fmt.Printf("Histogram saved to %q\n", *flagHistogram)
	}
	return nil
}

// appendSlices appends the values of each batch slice of value to samples.
// A value not batched at the level has a single slice, shared by all the batch elements.
func appendSlices(samples [][]float64, value vmap.Value, layer *vmap.Layer) [][]float64 {
	values := toFloat64s(vmap.Physical(value))
	inner, batchDim, batched := vmap.UnwrapAtLevel(value, layer.ID())
	numSlices := 1
	if batched {
		numSlices = layer.BatchSize()
		if batchDim != 0 {
			moved, err := tensors.MoveAxis(vmap.Physical(inner), batchDim, 0)
			if err == nil {
				values = toFloat64s(moved)
			}
		}
	}
	if samples == nil {
		samples = make([][]float64, numSlices)
	}
	sliceSize := len(values) / numSlices
	for ii := range numSlices {
		samples[ii] = append(samples[ii], values[ii*sliceSize:(ii+1)*sliceSize]...)
	}
	return samples
}

// toFloat64s converts the contents of a tensor of any of the backend dtypes to float64.
func toFloat64s(t *tensors.Tensor) []float64 {
	var values []float64
	t.ConstFlatData(func(flat any) {
		switch typed := flat.(type) {
		case []float16.Float16:
			for _, v := range typed {
				values = append(values, float64(v.Float32()))
			}
		case []bfloat16.BFloat16:
			for _, v := range typed {
				values = append(values, float64(v.Float32()))
			}
		default:
			flatV := reflect.ValueOf(flat)
			for ii := range flatV.Len() {
				elem := flatV.Index(ii)
				if elem.CanInt() {
					values = append(values, float64(elem.Int()))
				} else {
					values = append(values, elem.Float())
				}
			}
		}
	})
	return values
}

func printSummary(config *drawConfig, last vmap.Value, samples [][]float64, repeat int) {
	physical := vmap.Physical(last)
	result := "shared by all slices (not batched)"
	if _, isBatched := last.(*vmap.Batched); isBatched {
		result = "batched"
	}
	if config.family == dispatch.FamilyInPlaceMutator {
		result = "target filled in place, " + result
	}
	table := newPlainTable(false)
	table.Row("operator", config.op.String())
	table.Row("family", config.family.String())
	table.Row("randomness", config.randomness.String())
	table.Row("batch size", strconv.Itoa(*flagBatch))
	table.Row("result", result)
	table.Row("logical shape", last.Shape().String())
	table.Row("physical shape", physical.Shape().String())
	table.Row("# values per draw", humanize.Comma(int64(physical.Size())))
	table.Row("bytes per draw", humanize.Bytes(uint64(physical.Size()*physical.DType().Size())))
	table.Row("# draws", humanize.Comma(int64(repeat)))
	fmt.Println(table.Render())

	if repeat == 1 {
		values := newPlainTable(true)
		values.Headers("Slice", "Values")
		for ii, slice := range samples {
			values.Row(sliceName(ii, len(samples)), fmt.Sprintf("%.4g", slice))
		}
		fmt.Println(values.Render())
	}
}

func sliceName(idx, numSlices int) string {
	if numSlices == 1 {
		return "shared"
	}
	return fmt.Sprintf("slice #%d", idx)
}

// printStats prints the descriptive statistics of each slice.
func printStats(samples [][]float64) error {
	columns := make([]series.Series, len(samples))
	for ii, slice := range samples {
		columns[ii] = series.New(slice, series.Float, sliceName(ii, len(samples)))
	}
	df := dataframe.New(columns...)
	if df.Err != nil {
		return errors.Wrap(df.Err, "failed to build statistics")
	}
	stats := df.Describe()
	if stats.Err != nil {
		return errors.Wrap(stats.Err, "failed to compute statistics")
	}
	fmt.Println(stats)
	return nil
}

// saveHistogram plots the distribution of all the values drawn.
func saveHistogram(config *drawConfig, samples [][]float64, path string) error {
	var all plotter.Values
	for _, slice := range samples {
		all = append(all, slice...)
	}
	if len(all) == 0 {
		return errors.New("no values drawn, nothing to plot")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s randomness, batch size %d)", config.op, config.randomness, *flagBatch)
	p.X.Label.Text = "value"
	p.Y.Label.Text = "count"
	h, err := plotter.NewHist(all, 50)
	if err != nil {
		return errors.Wrap(err, "failed to build histogram")
	}
	p.Add(h)
	if err = p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save histogram to %q", path)
	}
	return nil
}
