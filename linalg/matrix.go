// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package linalg

import (
	"math"

	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

// Cond computes the condition number of a square matrix in the given norm.
// p = 2 (or 0) uses the ratio of extreme singular values, p = -2 its
// inverse; p = 1, -1, +Inf and -Inf multiply the matrix norm by the norm of
// the inverse.
func Cond(bk tensor.Backend, x *tensor.Dense, p float64) (float64, error) {
	if err := checkSquare(x); err != nil {
		return 0, err
	}

	switch {
	case p == 2 || p == 0:
		s := bk.SVDValues(x).Data()
		return s[0] / s[len(s)-1], nil
	case p == -2:
		s := bk.SVDValues(x).Data()
		return s[len(s)-1] / s[0], nil
	case p == 1 || p == -1 || math.IsInf(p, 1) || math.IsInf(p, -1):
		n := x.Shape()[0]
		inv, err := bk.Solve(x, tensor.Eye(n, n))
		if err != nil {
			return 0, err
		}
		return matrixNorm(x, p) * matrixNorm(inv, p), nil
	default:
		return 0, tenalg.InvalidArgf("unsupported norm order %v for cond", p)
	}
}

// matrixNorm computes the induced 1- or infinity-norm (max absolute
// column/row sum) or their min variants for negative orders.
func matrixNorm(x *tensor.Dense, p float64) float64 {
	r, c := x.Shape()[0], x.Shape()[1]
	d := x.Data()

	sums := func(overRows bool) []float64 {
		n := c
		if overRows {
			n = r
		}
		out := make([]float64, n)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if overRows {
					out[i] += math.Abs(d[i*c+j])
				} else {
					out[j] += math.Abs(d[i*c+j])
				}
			}
		}
		return out
	}

	var s []float64
	if p == 1 || p == -1 {
		s = sums(false)
	} else {
		s = sums(true)
	}
	best := s[0]
	for _, v := range s[1:] {
		if (p > 0 && v > best) || (p < 0 && v < best) {
			best = v
		}
	}
	return best
}

// Adjoint returns the conjugate transpose of x taken over its last two
// dimensions, batching over any leading dimensions. For real tensors this is
// a plain transpose.
func Adjoint(x *tensor.Dense) (*tensor.Dense, error) {
	if x.NDim() < 2 {
		return nil, tenalg.ShapeErrorf("adjoint requires at least 2 dimensions, got %d", x.NDim())
	}
	axes := make([]int, x.NDim())
	for i := range axes {
		axes[i] = i
	}
	axes[len(axes)-2], axes[len(axes)-1] = axes[len(axes)-1], axes[len(axes)-2]
	return x.Permute(axes...), nil
}

// Diagflat builds a matrix with the flattened input on the offset-th
// diagonal. Off-diagonal entries take paddingValue. numRows and numCols
// override the output dimensions; pass -1 for the default square size.
func Diagflat(x *tensor.Dense, offset int, paddingValue float64, numRows, numCols int) *tensor.Dense {
	v := x.Data()
	side := len(v)
	if offset > 0 {
		side += offset
	} else {
		side -= offset
	}
	if numRows < 0 {
		numRows = side
	}
	if numCols < 0 {
		numCols = side
	}

	out := tensor.Full(tensor.Shape{numRows, numCols}, paddingValue)
	d := out.Data()
	for i, val := range v {
		r, c := i, i+offset
		if offset < 0 {
			r, c = i-offset, i
		}
		if r < numRows && c < numCols {
			d[r*numCols+c] = val
		}
	}
	return out
}

// MultiDot computes the product of two or more matrices in the
// multiplication order that minimizes the scalar operation count, found by
// dynamic programming over the dimension chain.
func MultiDot(bk tensor.Backend, matrices []*tensor.Dense) (*tensor.Dense, error) {
	n := len(matrices)
	if n < 2 {
		return nil, tenalg.InvalidArgf("multi_dot expects at least 2 matrices, got %d", n)
	}
	for i, m := range matrices {
		if m.NDim() != 2 {
			return nil, tenalg.ShapeErrorf("multi_dot operand %d has %d dimensions, expected a matrix",
				i, m.NDim())
		}
		if i > 0 && matrices[i-1].Shape()[1] != m.Shape()[0] {
			return nil, tenalg.ShapeErrorf("multi_dot operands %d and %d are not aligned: %v x %v",
				i-1, i, matrices[i-1].Shape(), m.Shape())
		}
	}
	if n == 2 {
		return bk.MatMul(matrices[0], matrices[1]), nil
	}

	// Matrix-chain ordering.
	dims := make([]int, n+1)
	for i, m := range matrices {
		dims[i] = m.Shape()[0]
	}
	dims[n] = matrices[n-1].Shape()[1]

	cost := make([][]float64, n)
	split := make([][]int, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		split[i] = make([]int, n)
	}
	for length := 2; length <= n; length++ {
		for i := 0; i+length-1 < n; i++ {
			j := i + length - 1
			cost[i][j] = math.Inf(1)
			for k := i; k < j; k++ {
				c := cost[i][k] + cost[k+1][j] +
					float64(dims[i])*float64(dims[k+1])*float64(dims[j+1])
				if c < cost[i][j] {
					cost[i][j] = c
					split[i][j] = k
				}
			}
		}
	}

	var multiply func(i, j int) *tensor.Dense
	multiply = func(i, j int) *tensor.Dense {
		if i == j {
			return matrices[i]
		}
		k := split[i][j]
		return bk.MatMul(multiply(i, k), multiply(k+1, j))
	}
	return multiply(0, n-1), nil
}

// MatrixExp computes the matrix exponential of a square matrix, batching
// over any leading dimensions.
func MatrixExp(bk tensor.Backend, x *tensor.Dense) (*tensor.Dense, error) {
	if x.NDim() < 2 {
		return nil, tenalg.ShapeErrorf("matrix_exp requires at least 2 dimensions, got %d", x.NDim())
	}
	s := x.Shape()
	m, c := s[len(s)-2], s[len(s)-1]
	if m != c {
		return nil, tenalg.ShapeErrorf("matrix_exp requires square matrices, got %v", s)
	}
	if x.NDim() == 2 {
		return bk.Exp(x), nil
	}

	batch := x.NumElements() / (m * m)
	out := tensor.Zeros(s)
	for b := 0; b < batch; b++ {
		slab, err := tensor.FromSlice(x.Data()[b*m*m:(b+1)*m*m], tensor.Shape{m, m})
		if err != nil {
			return nil, err
		}
		copy(out.Data()[b*m*m:(b+1)*m*m], bk.Exp(slab).Data())
	}
	return out, nil
}

// Dot computes the dot product of a and b: the scalar product for two
// vectors, and otherwise the contraction of the last dimension of a with the
// leading dimension of b (b must be a vector or a matrix).
func Dot(bk tensor.Backend, a, b *tensor.Dense) (*tensor.Dense, error) {
	if a.NDim() == 0 || b.NDim() == 0 {
		return nil, tenalg.ShapeErrorf("dot is not defined for 0-dimensional operands")
	}
	if a.NDim() == 1 && b.NDim() == 1 {
		if a.Shape()[0] != b.Shape()[0] {
			return nil, tenalg.ShapeErrorf("dot of vectors with lengths %d and %d",
				a.Shape()[0], b.Shape()[0])
		}
		return tensor.Scalar(tensor.Sum(tensor.Mul(a, b))), nil
	}
	if b.NDim() > 2 {
		return nil, tenalg.ShapeErrorf("dot supports vector and matrix right operands, got %dD", b.NDim())
	}

	k := a.Shape()[a.NDim()-1]
	if b.Shape()[0] != k {
		return nil, tenalg.ShapeErrorf("dot operands are not aligned: %v and %v", a.Shape(), b.Shape())
	}
	left := a.Reshape(tensor.Shape{a.NumElements() / k, k})

	if b.NDim() == 1 {
		res := bk.MatMul(left, b.Reshape(tensor.Shape{k, 1}))
		outShape := a.Shape()[:a.NDim()-1].Clone()
		if len(outShape) == 0 {
			return tensor.Scalar(res.Data()[0]), nil
		}
		return res.Reshape(outShape), nil
	}

	res := bk.MatMul(left, b)
	outShape := append(a.Shape()[:a.NDim()-1].Clone(), b.Shape()[1])
	return res.Reshape(outShape), nil
}
