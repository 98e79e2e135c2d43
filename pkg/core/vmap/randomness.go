// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vmap

import (
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Randomness is the policy of a vmap level for random operations executed inside it.
type Randomness int

const (
	// RandomnessError makes any random operation inside the level fail.
	RandomnessError Randomness = iota

	// RandomnessSame draws once and shares the values across all the batch slices.
	RandomnessSame

	// RandomnessDifferent draws independent values for each batch slice.
	RandomnessDifferent
)

//go:generate go tool enumer -type=Randomness -trimprefix=Randomness -transform=snake -values -text -output=gen_randomness_enumer.go randomness.go

// RandomnessEnvVar is the environment variable with the default randomness for new levels,
// one of RandomnessStrings(). If not set, the default is "error".
const RandomnessEnvVar = "VMAPRAND_RANDOMNESS"

// DefaultRandomness returns the randomness used by levels created without an explicit one.
//
// It is read from $VMAPRAND_RANDOMNESS, and defaults to RandomnessError.
func DefaultRandomness() (Randomness, error) {
	value, found := os.LookupEnv(RandomnessEnvVar)
	if !found || value == "" {
		return RandomnessError, nil
	}
	randomness, err := RandomnessString(value)
	if err != nil {
		return RandomnessError, errors.Wrapf(err, "invalid $%s=%q, valid values are %q",
			RandomnessEnvVar, value, RandomnessStrings())
	}
	klog.V(2).Infof("vmap: default randomness %s from $%s", randomness, RandomnessEnvVar)
	return randomness, nil
}
