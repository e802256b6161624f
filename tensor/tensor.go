// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for dense tensors in Facto.
//
// The package defines the core types used throughout the library:
//   - Dense: a dense n-dimensional float64 array
//   - Shape: ordered tuple of dimension sizes
//   - Backend: interface for the linear-algebra primitives
//
// Example:
//
//	x := tensor.Zeros(tensor.Shape{2, 3})
//	y := tensor.Ones(tensor.Shape{2, 3})
//	z := tensor.Add(x, y)
package tensor

import (
	"math/rand"

	"github.com/facto-ml/facto/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Dense is a dense n-dimensional array of float64 values in row-major order.
type Dense = tensor.Dense

// Backend is the interface for the linear-algebra primitives the
// decomposition engines consume. See backend/cpu for the gonum-backed
// implementation.
type Backend = tensor.Backend

// Creation functions

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Dense { return tensor.Zeros(shape) }

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Dense { return tensor.Ones(shape) }

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float64) *Dense { return tensor.Full(shape, value) }

// Eye creates an r x c matrix with ones on the main diagonal.
func Eye(r, c int) *Dense { return tensor.Eye(r, c) }

// Diag creates a square matrix with v on the k-th diagonal.
func Diag(v []float64, k int) *Dense { return tensor.Diag(v, k) }

// Rand creates a tensor of uniform draws from [0, 1) using rng.
func Rand(shape Shape, rng *rand.Rand) *Dense { return tensor.Rand(shape, rng) }

// FromSlice creates a tensor backed by a copy of data.
func FromSlice(data []float64, shape Shape) (*Dense, error) {
	return tensor.FromSlice(data, shape)
}

// Scalar creates a 0-dimensional tensor holding a single value.
func Scalar(v float64) *Dense { return tensor.Scalar(v) }

// Manipulation functions

// Unfold returns the mode-`mode` matricization of the tensor.
func Unfold(t *Dense, mode int) *Dense { return tensor.Unfold(t, mode) }

// Fold refolds a mode-`mode` unfolding back into a tensor of the given shape.
func Fold(unfolded *Dense, mode int, shape Shape) *Dense {
	return tensor.Fold(unfolded, mode, shape)
}

// Concat concatenates tensors along the given dimension.
func Concat(tensors []*Dense, dim int) *Dense { return tensor.Concat(tensors, dim) }

// Stack stacks tensors of identical shape along a new leading dimension.
func Stack(tensors []*Dense) *Dense { return tensor.Stack(tensors) }

// Elementwise operations and reductions

// Add returns the elementwise sum a + b.
func Add(a, b *Dense) *Dense { return tensor.Add(a, b) }

// Sub returns the elementwise difference a - b.
func Sub(a, b *Dense) *Dense { return tensor.Sub(a, b) }

// Mul returns the elementwise (Hadamard) product a * b.
func Mul(a, b *Dense) *Dense { return tensor.Mul(a, b) }

// Div returns the elementwise quotient a / b.
func Div(a, b *Dense) *Dense { return tensor.Div(a, b) }

// Scale returns a * s elementwise.
func Scale(a *Dense, s float64) *Dense { return tensor.Scale(a, s) }

// AddScalar returns a + s elementwise.
func AddScalar(a *Dense, s float64) *Dense { return tensor.AddScalar(a, s) }

// Abs returns |a| elementwise.
func Abs(a *Dense) *Dense { return tensor.Abs(a) }

// Sqrt returns the elementwise square root.
func Sqrt(a *Dense) *Dense { return tensor.Sqrt(a) }

// Sign returns the elementwise sign: -1, 0 or 1.
func Sign(a *Dense) *Dense { return tensor.Sign(a) }

// Apply returns a new tensor with f applied to every element.
func Apply(a *Dense, f func(float64) float64) *Dense { return tensor.Apply(a, f) }

// Sum returns the sum of all elements.
func Sum(a *Dense) float64 { return tensor.Sum(a) }

// Mean returns the arithmetic mean of all elements.
func Mean(a *Dense) float64 { return tensor.Mean(a) }

// MeanAxis returns the mean along the given axis; the result drops that axis.
func MeanAxis(a *Dense, axis int) *Dense { return tensor.MeanAxis(a, axis) }

// Norm returns the Frobenius norm.
func Norm(a *Dense) float64 { return tensor.Norm(a) }
