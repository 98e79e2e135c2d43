// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rng implements the host pseudo-random number generator used by the simplego backend.
//
// State wraps a math/rand/v2 PCG source as a plain value, threaded explicitly: drawing from a
// State returns the updated state.
//
//	state := rng.StateFromSeed(42)
//	state = state.Rand(func(r *rand.Rand) { x = r.NormFloat64() })
//
// Generator is a mutable handle around a State, for APIs where the generator is passed around
// by reference and shared across consecutive calls (e.g. "randperm.generator").
package rng

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// SeedSize is the number of uint64 words used to seed a State.
const SeedSize = 2

// pcgIncrement is the second seed word used by StateFromSeed.
const pcgIncrement = 0x9E3779B97F4A7C15

// State of the generator. It's a value: copying it forks the sequence.
type State struct {
	src rand.PCG
}

// StateFromSeed creates a State from a static seed.
// The same seed always yields the same sequence of values.
func StateFromSeed(seed int64) State {
	return State{src: *rand.NewPCG(uint64(seed), pcgIncrement)}
}

// NewState creates a State initialized using the OS's cryptographically secure
// random number generator, if available, or the current time otherwise.
func NewState() (State, error) {
	var seed [SeedSize]uint64
	if err := initializeSeed(&seed); err != nil {
		return State{}, err
	}
	return State{src: *rand.NewPCG(seed[0], seed[1])}, nil
}

// String implements fmt.Stringer.
func (s State) String() string {
	data, err := s.src.MarshalBinary()
	if err != nil {
		return fmt.Sprintf("rng.State{invalid: %v}", err)
	}
	return fmt.Sprintf("rng.State{%x}", data)
}

// Rand calls fn with a *rand.Rand drawing from a copy of s, and returns the advanced copy.
// The *rand.Rand must not be used after fn returns.
func (s State) Rand(fn func(r *rand.Rand)) State {
	fn(rand.New(&s.src))
	return s
}

// Generator is a mutable, shareable handle to a State.
//
// Every draw advances the handle's state, so passing the same *Generator to consecutive
// calls yields a different sequence for each call. It is safe for concurrent use, but the
// order of draws across goroutines is then undefined.
type Generator struct {
	mu    sync.Mutex
	state State
}

// NewGenerator returns a generator seeded with the given static seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{state: StateFromSeed(seed)}
}

// NewGeneratorFromState returns a generator starting at the given state.
func NewGeneratorFromState(state State) *Generator {
	return &Generator{state: state}
}

// State returns the current state of the generator.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetState resets the generator to the given state.
func (g *Generator) SetState(state State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
}

// Draw runs fn with a *rand.Rand over the generator's state, and keeps the advanced state.
// It's how batch draws fill many values while holding the handle once.
func (g *Generator) Draw(fn func(r *rand.Rand)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = g.state.Rand(fn)
}

// Perm returns a uniform random permutation of [0, n).
func (g *Generator) Perm(n int) []int64 {
	perm := make([]int64, n)
	for ii := range perm {
		perm[ii] = int64(ii)
	}
	g.Draw(func(r *rand.Rand) {
		r.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	})
	return perm
}
