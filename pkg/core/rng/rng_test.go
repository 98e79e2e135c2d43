// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rng

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateThreading(t *testing.T) {
	s0 := StateFromSeed(42)
	var v1, v1Again, v2 uint64
	s1 := s0.Rand(func(r *rand.Rand) { v1 = r.Uint64() })
	_ = s0.Rand(func(r *rand.Rand) { v1Again = r.Uint64() })
	assert.Equal(t, v1, v1Again, "drawing must not modify the original state")
	assert.NotEqual(t, s0, s1)
	_ = s1.Rand(func(r *rand.Rand) { v2 = r.Uint64() })
	assert.NotEqual(t, v1, v2)

	assert.NotEqual(t, StateFromSeed(42), StateFromSeed(43))
	assert.Equal(t, StateFromSeed(42).String(), s0.String())
	assert.NotEqual(t, s0.String(), s1.String())
}

func TestDistributions(t *testing.T) {
	const numSamples = 100_000
	s := StateFromSeed(7)
	var sum, sum2, sumU float64
	counts := make([]int, 6)
	s = s.Rand(func(r *rand.Rand) {
		for range numSamples {
			u := r.Float64()
			require.True(t, u >= 0 && u < 1)
			sumU += u
			n := r.NormFloat64()
			sum += n
			sum2 += n * n
			counts[r.Uint64N(6)]++
		}
	})
	assert.InDelta(t, 0.5, sumU/numSamples, 0.01)
	mean := sum / numSamples
	assert.InDelta(t, 0.0, mean, 0.02)
	assert.InDelta(t, 1.0, math.Sqrt(sum2/numSamples-mean*mean), 0.02)
	for _, count := range counts {
		assert.InDelta(t, numSamples/6, count, numSamples/60)
	}
}

func TestGenerator(t *testing.T) {
	g := NewGenerator(42)
	start := g.State()
	p1 := g.Perm(10)
	p2 := g.Perm(10)
	assert.NotEqual(t, p1, p2, "consecutive draws from a shared generator must differ")
	sorted := slices.Clone(p1)
	slices.Sort(sorted)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sorted)

	g.SetState(start)
	assert.Equal(t, p1, g.Perm(10), "resetting the state must reproduce the draws")

	forked := NewGeneratorFromState(start)
	assert.Equal(t, p1, forked.Perm(10))
	assert.Empty(t, forked.Perm(0))

	state, err := NewState()
	require.NoError(t, err)
	assert.NotEqual(t, State{}, state)
}
