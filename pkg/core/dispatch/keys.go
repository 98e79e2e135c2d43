// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"github.com/gomlx/exceptions"
)

// Key of the dispatcher: each one is a stage a call may be routed through, in order of priority.
type Key int

const (
	// KeyVmapMode routes calls made inside an active vmap level to the vmap batching rules.
	KeyVmapMode Key = iota

	// KeyBackend routes calls to the backend kernels.
	KeyBackend
)

//go:generate go tool enumer -type=Key -trimprefix=Key -output=gen_key_enumer.go keys.go

// ExcludedKeys is the set of keys the dispatcher currently skips.
//
// Exclusions are counted: a key stays excluded until every Exclude call on it has been released.
// The zero value has nothing excluded and is ready to use.
type ExcludedKeys struct {
	counts [KeyBackend + 1]int
}

// Exclude key until the returned release function is called. Release is idempotent.
//
// Typical use, so the exclusion is lifted on every exit path:
//
//	defer excluded.Exclude(dispatch.KeyVmapMode)()
func (e *ExcludedKeys) Exclude(key Key) (release func()) {
	if !key.IsAKey() {
		exceptions.Panicf("dispatch: cannot exclude invalid key %s", key)
	}
	e.counts[key]++
	released := false
	return func() {
		if released {
			return
		}
		released = true
		e.counts[key]--
	}
}

// IsExcluded returns whether key is currently excluded.
func (e *ExcludedKeys) IsExcluded(key Key) bool {
	return key.IsAKey() && e.counts[key] > 0
}

// Count returns how many unreleased exclusions key has.
func (e *ExcludedKeys) Count(key Key) int {
	if !key.IsAKey() {
		return 0
	}
	return e.counts[key]
}
