// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vmap

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// LevelID identifies one active vmap level. IDs are positive and never reused by a LayerStack,
// so a value tagged by a level that has been released can never be confused with a newer level.
type LevelID int

// Layer is the batching context of one vmap level: read-only for everything but the LayerStack.
type Layer struct {
	id         LevelID
	batchSize  int
	randomness Randomness
}

// ID of the level.
func (l *Layer) ID() LevelID { return l.id }

// BatchSize is the number of slices the level replicates the computation over. Always >= 1.
func (l *Layer) BatchSize() int { return l.batchSize }

// Randomness policy configured for the level.
func (l *Layer) Randomness() Randomness { return l.randomness }

// String implements fmt.Stringer.
func (l *Layer) String() string {
	return fmt.Sprintf("vmap.Layer{level=%d, batchSize=%d, randomness=%s}", l.id, l.batchSize, l.randomness)
}

// ErrNoActiveLayer is returned by LayerStack.Current when no vmap level is active.
var ErrNoActiveLayer = errors.New("vmap: no active vmap level")

// LayerStack is the stack of nested vmap levels. The innermost level is the current one.
//
// It is not safe for concurrent use: each computation (goroutine) should have its own stack.
type LayerStack struct {
	layers []*Layer
	lastID LevelID
}

// NewLayerStack returns an empty stack.
func NewLayerStack() *LayerStack {
	return &LayerStack{}
}

// Push creates a new innermost level, and returns it along with the function that releases it.
//
// Levels must be released in reverse order of creation, usually with a defer:
//
//	layer, release, err := stack.Push(batchSize, vmap.RandomnessDifferent)
//	if err != nil { ... }
//	defer release()
func (s *LayerStack) Push(batchSize int, randomness Randomness) (layer *Layer, release func(), err error) {
	if batchSize < 1 {
		return nil, nil, errors.Errorf("vmap: batch size must be >= 1, got %d", batchSize)
	}
	if !randomness.IsARandomness() {
		return nil, nil, errors.Errorf("vmap: invalid randomness %s, valid values are %q", randomness, RandomnessStrings())
	}
	s.lastID++
	layer = &Layer{id: s.lastID, batchSize: batchSize, randomness: randomness}
	s.layers = append(s.layers, layer)
	released := false
	release = func() {
		if released {
			return
		}
		if len(s.layers) == 0 || s.layers[len(s.layers)-1] != layer {
			exceptions.Panicf("vmap: level %d released out of order, levels must be released innermost first", layer.id)
		}
		s.layers = s.layers[:len(s.layers)-1]
		released = true
	}
	return layer, release, nil
}

// Current returns the innermost active level, or ErrNoActiveLayer.
func (s *LayerStack) Current() (*Layer, error) {
	if len(s.layers) == 0 {
		return nil, errors.WithStack(ErrNoActiveLayer)
	}
	return s.layers[len(s.layers)-1], nil
}

// Depth is the number of active levels.
func (s *LayerStack) Depth() int {
	return len(s.layers)
}
