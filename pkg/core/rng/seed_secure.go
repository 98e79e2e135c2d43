//go:build linux || darwin || windows || freebsd || openbsd || netbsd || dragonfly || solaris

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rng

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
)

// initializeSeed uses the OS's cryptographically secure random number
// generator to initialize the seed.
func initializeSeed(seed *[SeedSize]uint64) error {
	randomBytes := make([]byte, SeedSize*8)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return errors.Wrapf(err, "could not read random bytes from OS")
	}
	for ii := range seed {
		seed[ii] = binary.BigEndian.Uint64(randomBytes[ii*8 : (ii+1)*8])
	}
	return nil
}
