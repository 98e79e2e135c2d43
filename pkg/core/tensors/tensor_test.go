// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/vmaprand/pkg/core/shapes"
	. "github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	zeros := FromShape(shapes.Make(dtypes.Float32, 2, 3))
	assert.Equal(t, make([]float32, 6), CopyFlatData[float32](zeros))

	filled := FromScalarAndDimensions(int64(7), 2, 2)
	assert.Equal(t, []int64{7, 7, 7, 7}, CopyFlatData[int64](filled))

	x := FromFlatDataAndDimensions([]int32{1, 2, 3, 4}, 2, 2)
	assert.Equal(t, []int{2, 2}, x.Shape().Dimensions)
	assert.Equal(t, dtypes.Int32, x.DType())
	require.Panics(t, func() { _ = FromFlatDataAndDimensions([]int32{1, 2, 3}, 2, 2) })
	require.Panics(t, func() { _ = CopyFlatData[float32](x) })

	empty := FromShape(shapes.Make(dtypes.Float64, 0, 3))
	assert.Equal(t, 0, empty.Size())
}

func TestCloneAndEqual(t *testing.T) {
	x := FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	clone := x.Clone()
	require.True(t, x.Equal(clone))
	MutableFlatData(clone, func(flat []float64) { flat[0] = -1 })
	require.False(t, x.Equal(clone))
	assert.Equal(t, 1.0, CopyFlatData[float64](x)[0], "Clone must not share storage")
	assert.False(t, x.Equal(FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 3, 2)))
}

func TestStack(t *testing.T) {
	a := FromFlatDataAndDimensions([]int64{0, 1, 2}, 3)
	b := FromFlatDataAndDimensions([]int64{3, 4, 5}, 3)
	stacked := must.M1(Stack([]*Tensor{a, b}))
	assert.Equal(t, []int{2, 3}, stacked.Shape().Dimensions)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, CopyFlatData[int64](stacked))

	_, err := Stack(nil)
	require.Error(t, err)
	_, err = Stack([]*Tensor{a, FromFlatDataAndDimensions([]int64{1, 2}, 2)})
	require.Error(t, err)
}

func TestMoveAxis(t *testing.T) {
	// x[i][j][k] = 100*i + 10*j + k, shape [2, 3, 4].
	data := make([]int32, 0, 24)
	for i := range 2 {
		for j := range 3 {
			for k := range 4 {
				data = append(data, int32(100*i+10*j+k))
			}
		}
	}
	x := FromFlatDataAndDimensions(data, 2, 3, 4)

	moved := must.M1(MoveAxis(x, 1, 0))
	require.Equal(t, []int{3, 2, 4}, moved.Shape().Dimensions)
	ConstFlatData(moved, func(flat []int32) {
		// moved[j][i][k] == x[i][j][k]
		assert.Equal(t, int32(0*100+2*10+3), flat[2*8+0*4+3])
		assert.Equal(t, int32(1*100+1*10+2), flat[1*8+1*4+2])
	})

	back := must.M1(MoveAxis(moved, 0, 1))
	require.True(t, x.Equal(back))

	last := must.M1(MoveAxis(x, 0, -1))
	require.Equal(t, []int{3, 4, 2}, last.Shape().Dimensions)
	require.True(t, x.Equal(must.M1(MoveAxis(last, -1, 0))))

	_, err := MoveAxis(x, 3, 0)
	require.Error(t, err)
}

func TestBroadcastCopy(t *testing.T) {
	dst := FromShape(shapes.Make(dtypes.Float32, 3, 2))
	src := FromFlatDataAndDimensions([]float32{1, 2}, 2)
	require.NoError(t, BroadcastCopy(dst, src))
	assert.Equal(t, []float32{1, 2, 1, 2, 1, 2}, CopyFlatData[float32](dst))

	same := FromFlatDataAndDimensions([]float32{6, 5, 4, 3, 2, 1}, 3, 2)
	require.NoError(t, BroadcastCopy(dst, same))
	require.True(t, dst.Equal(same))

	require.Error(t, BroadcastCopy(dst, FromFlatDataAndDimensions([]float32{1, 2, 3}, 3)))
	require.Error(t, BroadcastCopy(dst, FromFlatDataAndDimensions([]float64{1, 2}, 2)))
}

func TestSliceAxis0(t *testing.T) {
	x := FromFlatDataAndDimensions([]int64{0, 1, 2, 3, 4, 5}, 3, 2)
	slice := must.M1(SliceAxis0(x, 2))
	assert.Equal(t, []int64{4, 5}, CopyFlatData[int64](slice))
	_, err := SliceAxis0(x, 3)
	require.Error(t, err)
}
