// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tenalg provides the tensor-algebra building blocks used by the
// decomposition engines: Kronecker and Khatri-Rao products, n-mode products,
// batched outer products and generalized inner products, together with the
// SVD subsystem (truncated SVD, deterministic sign flipping, NNDSVD and the
// mask-imputing SVD front end).
package tenalg

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/facto-ml/facto/tensor"
)

// Sentinel errors wrapped by the functions in this package (and reused by
// decomp and linalg).
var (
	// ErrShape reports operand ranks or sizes that disagree.
	ErrShape = errors.New("shape mismatch")
	// ErrInvalidArg reports an unrecognized enumerated option value.
	ErrInvalidArg = errors.New("invalid argument")
)

var logger = zap.NewNop()

// SetLogger installs the logger used for non-fatal warnings (rank clamping,
// vector reinterpretation, and similar). The default discards everything.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// ShapeErrorf builds an error wrapping ErrShape.
func ShapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}

// InvalidArgf builds an error wrapping ErrInvalidArg.
func InvalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArg, fmt.Sprintf(format, args...))
}

func shapeErrorf(format string, args ...any) error { return ShapeErrorf(format, args...) }
func invalidArgf(format string, args ...any) error { return InvalidArgf(format, args...) }

// sliceRows returns the first n rows of a matrix.
func sliceRows(m *tensor.Dense, n int) *tensor.Dense {
	s := m.Shape()
	if n >= s[0] {
		return m
	}
	out := tensor.Zeros(tensor.Shape{n, s[1]})
	copy(out.Data(), m.Data()[:n*s[1]])
	return out
}

// sliceCols returns the first n columns of a matrix.
func sliceCols(m *tensor.Dense, n int) *tensor.Dense {
	s := m.Shape()
	if n >= s[1] {
		return m
	}
	out := tensor.Zeros(tensor.Shape{s[0], n})
	for i := 0; i < s[0]; i++ {
		copy(out.Data()[i*n:(i+1)*n], m.Data()[i*s[1]:i*s[1]+n])
	}
	return out
}

// sliceVec returns the first n entries of a vector.
func sliceVec(v *tensor.Dense, n int) *tensor.Dense {
	if n >= v.Shape()[0] {
		return v
	}
	out := tensor.Zeros(tensor.Shape{n})
	copy(out.Data(), v.Data()[:n])
	return out
}
