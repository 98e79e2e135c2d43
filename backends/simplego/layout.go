// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"github.com/gomlx/vmaprand/pkg/core/shapes"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Empty implements backends.Backend. Host tensors are always zero initialized.
func (b *Backend) Empty(shape shapes.Shape) (*tensors.Tensor, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	if !shape.Ok() {
		return nil, errors.Errorf("Empty: invalid shape %s", shape)
	}
	return tensors.FromShape(shape), nil
}

// Copy implements backends.Backend.
func (b *Backend) Copy(dst, src *tensors.Tensor) error {
	if err := b.checkValid(); err != nil {
		return err
	}
	return tensors.BroadcastCopy(dst, src)
}

// Stack implements backends.Backend.
func (b *Backend) Stack(values []*tensors.Tensor) (*tensors.Tensor, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	return tensors.Stack(values)
}

// MoveAxis implements backends.Backend.
func (b *Backend) MoveAxis(x *tensors.Tensor, from, to int) (*tensors.Tensor, error) {
	if err := b.checkValid(); err != nil {
		return nil, err
	}
	return tensors.MoveAxis(x, from, to)
}
