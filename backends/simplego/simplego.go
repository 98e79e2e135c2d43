// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simplego implements a simple, and not very fast, but very portable host backend.
//
// All tensors live in host memory (see package tensors) and random values are drawn from the
// generator in package rng, a math/rand/v2 PCG source.
//
// Configuration (the part after "go:" in $VMAPRAND_BACKEND) is a comma-separated list of options:
//
//   - "seed=<int>": seed of the default generator. If not given, it's seeded from the OS entropy source.
package simplego

import (
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/vmaprand/backends"
	"github.com/gomlx/vmaprand/pkg/core/rng"
	"github.com/pkg/errors"
)

// BackendName to be used in VMAPRAND_BACKEND to specify this backend.
const BackendName = "go"

// Registers New() as the default constructor for "go" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new SimpleGo Backend.
func New(config string) (backends.Backend, error) {
	b := &Backend{}
	seeded := false
	for _, option := range strings.Split(config, ",") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, _ := strings.Cut(option, "=")
		switch key {
		case "seed":
			seed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "simplego: invalid seed in option %q", option)
			}
			b.generator = rng.NewGenerator(seed)
			seeded = true
		default:
			return nil, errors.Errorf("simplego: unknown configuration option %q in %q", key, config)
		}
	}
	if !seeded {
		state, err := rng.NewState()
		if err != nil {
			return nil, err
		}
		b.generator = rng.NewGeneratorFromState(state)
	}
	return b, nil
}

// NewWithSeed returns a backend whose default generator is seeded with seed.
func NewWithSeed(seed int64) *Backend {
	return &Backend{generator: rng.NewGenerator(seed)}
}

// Backend implements the backends.Backend interface.
type Backend struct {
	// generator is the default generator, used when the caller doesn't provide one.
	generator *rng.Generator

	finalized bool
}

// Compile-time check that simplego.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// Name implements backends.Backend.
func (b *Backend) Name() string {
	return "SimpleGo (go)"
}

// String returns the name the backend is registered with.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	return "Simple Go Portable Backend"
}

// DefaultGenerator returns the generator used when the caller doesn't provide one.
func (b *Backend) DefaultGenerator() *rng.Generator {
	return b.generator
}

// Capabilities of the SimpleGo backend: the supported data types.
var Capabilities = backends.Capabilities{
	FloatDTypes: map[dtypes.DType]bool{
		dtypes.Float16:  true,
		dtypes.BFloat16: true,
		dtypes.Float32:  true,
		dtypes.Float64:  true,
	},
	IntDTypes: map[dtypes.DType]bool{
		dtypes.Int32:   true,
		dtypes.Int64:   true,
		dtypes.Float32: true,
		dtypes.Float64: true,
	},
	DefaultFloatDType: dtypes.Float32,
	DefaultIntDType:   dtypes.Int64,
}

// Capabilities returns information about what is supported by this backend.
func (b *Backend) Capabilities() backends.Capabilities {
	return Capabilities
}

// Finalize releases all the associated resources immediately, and makes the backend invalid.
func (b *Backend) Finalize() {
	b.finalized = true
}

func (b *Backend) checkValid() error {
	if b.finalized {
		return errors.New("simplego backend was already finalized")
	}
	return nil
}
