// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package randomness

import (
	"fmt"

	"github.com/gomlx/vmaprand/pkg/core/dispatch"
	"github.com/gomlx/vmaprand/pkg/core/vmap"
)

// PolicyViolationError is returned when a random operator is called inside a vmap level
// with vmap.RandomnessError.
type PolicyViolationError struct {
	Op    dispatch.OperatorName
	Level vmap.LevelID
}

// Error implements error.
func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("vmap: called random operation %s while in randomness error mode (level %d). "+
		"Please either use the 'same' or 'different' randomness flags on vmap or perform the randomness "+
		"operation out of vmap", e.Op, e.Level)
}

// UnsatisfiableBroadcastError is returned when different randomness is requested for an in-place
// operator whose target is not batched at the current level.
type UnsatisfiableBroadcastError struct {
	Op    dispatch.OperatorName
	Level vmap.LevelID
}

// Error implements error.
func (e *UnsatisfiableBroadcastError) Error() string {
	return fmt.Sprintf("vmap: %s: Cannot ask for different inplace randomness on an unbatched tensor (level %d). "+
		"This will appear like same randomness. If this is necessary for your usage, please file an issue "+
		"asking for broadcasting of in-place random operations into unbatched tensors", e.Op, e.Level)
}

// CheckRandomness fails with a *PolicyViolationError if random operations are not allowed in layer.
func CheckRandomness(op dispatch.OperatorName, layer *vmap.Layer) error {
	if layer.Randomness() == vmap.RandomnessError {
		return &PolicyViolationError{Op: op, Level: layer.ID()}
	}
	return nil
}
