// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"maps"

	"github.com/gomlx/gopjrt/dtypes"
)

// Capabilities holds mappings of what is supported by a backend.
type Capabilities struct {
	// FloatDTypes lists the data types supported by the real valued kernels (Randn, Rand, Normal).
	// If not listed, it's assumed to be false, hence not supported.
	FloatDTypes map[dtypes.DType]bool

	// IntDTypes lists the data types supported by the integer kernels (RandInt, RandPerm, Random).
	IntDTypes map[dtypes.DType]bool

	// DefaultFloatDType is used by real valued kernels when RandomOptions.DType is not set.
	DefaultFloatDType dtypes.DType

	// DefaultIntDType is used by integer kernels when RandomOptions.DType is not set.
	DefaultIntDType dtypes.DType
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	c2 := c
	c2.FloatDTypes = maps.Clone(c.FloatDTypes)
	c2.IntDTypes = maps.Clone(c.IntDTypes)
	return c2
}
