//go:build !linux && !darwin && !windows && !freebsd && !openbsd && !netbsd && !dragonfly && !solaris

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rng

import (
	"time"
)

// initializeSeed seeds from the current time, on systems without a known
// strong entropy source. It is NOT cryptographically secure.
func initializeSeed(seed *[SeedSize]uint64) error {
	now := uint64(time.Now().UnixNano())
	seed[0], seed[1] = now, now^pcgIncrement
	return nil
}
