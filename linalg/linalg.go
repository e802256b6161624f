// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package linalg provides analytic matrix routines built on the backend
// kernels: tridiagonal and general eigendecompositions, condition numbers,
// batched adjoints, matrix chain products, matrix exponentials and the
// TT-matrix reconstruction.
package linalg

import (
	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

// Eigenvalue selection modes for EighTridiagonal.
const (
	SelectAll        = "a" // all eigenvalues
	SelectValueRange = "v" // eigenvalues in the interval (min, max]
	SelectIndexRange = "i" // eigenvalues with indices min <= i <= max
)

// EighTridiagonal computes the eigenvalues and eigenvectors of the real
// symmetric tridiagonal matrix with diagonal alpha (length n) and
// off-diagonal beta (length n-1). Eigenvalues are returned in non-decreasing
// order with the corresponding eigenvectors as columns. sel restricts the
// output: SelectValueRange keeps eigenvalues in (selRange[0], selRange[1]],
// SelectIndexRange keeps indices selRange[0] through selRange[1] inclusive.
func EighTridiagonal(bk tensor.Backend, alpha, beta *tensor.Dense, sel string, selRange [2]float64) (*tensor.Dense, *tensor.Dense, error) {
	if alpha.NDim() != 1 || beta.NDim() != 1 {
		return nil, nil, tenalg.ShapeErrorf("alpha and beta must be vectors, got %dD and %dD",
			alpha.NDim(), beta.NDim())
	}
	n := alpha.Shape()[0]
	if beta.Shape()[0] != n-1 {
		return nil, nil, tenalg.ShapeErrorf(
			"beta must have length n-1 = %d for diagonal of length %d, got %d",
			n-1, n, beta.Shape()[0])
	}

	w := tensor.Add(
		tensor.Diag(alpha.Data(), 0),
		tensor.Add(tensor.Diag(beta.Data(), 1), tensor.Diag(beta.Data(), -1)),
	)
	values, vectors := bk.Eigh(w)

	switch sel {
	case SelectAll, "":
		return values, vectors, nil
	case SelectIndexRange:
		lo, hi := int(selRange[0]), int(selRange[1])
		if lo < 0 || hi >= n || lo > hi {
			return nil, nil, tenalg.InvalidArgf("index range [%d, %d] out of bounds for %d eigenvalues",
				lo, hi, n)
		}
		keep := make([]int, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			keep = append(keep, i)
		}
		return selectEigen(values, vectors, keep)
	case SelectValueRange:
		vd := values.Data()
		var keep []int
		for i, v := range vd {
			if v > selRange[0] && v <= selRange[1] {
				keep = append(keep, i)
			}
		}
		return selectEigen(values, vectors, keep)
	default:
		return nil, nil, tenalg.InvalidArgf("unknown eigenvalue selection %q", sel)
	}
}

// selectEigen keeps the eigenpairs at the given indices.
func selectEigen(values, vectors *tensor.Dense, keep []int) (*tensor.Dense, *tensor.Dense, error) {
	n := values.Shape()[0]
	outVals := tensor.Zeros(tensor.Shape{len(keep)})
	outVecs := tensor.Zeros(tensor.Shape{n, len(keep)})
	vd, wd := values.Data(), vectors.Data()
	ov, ow := outVals.Data(), outVecs.Data()
	for j, idx := range keep {
		ov[j] = vd[idx]
		for i := 0; i < n; i++ {
			ow[i*len(keep)+j] = wd[i*n+idx]
		}
	}
	return outVals, outVecs, nil
}

// Eig computes the eigenvalues and right eigenvectors of a general square
// matrix. The eigenvectors are returned as the columns of a row-major n x n
// complex matrix.
func Eig(bk tensor.Backend, x *tensor.Dense) ([]complex128, []complex128, error) {
	if err := checkSquare(x); err != nil {
		return nil, nil, err
	}
	values, vectors := bk.Eig(x)
	return values, vectors, nil
}

// Eigvals computes only the eigenvalues of a general square matrix.
func Eigvals(bk tensor.Backend, x *tensor.Dense) ([]complex128, error) {
	if err := checkSquare(x); err != nil {
		return nil, err
	}
	values, _ := bk.Eig(x)
	return values, nil
}

func checkSquare(x *tensor.Dense) error {
	if x.NDim() != 2 {
		return tenalg.ShapeErrorf("expected a matrix, got %dD tensor", x.NDim())
	}
	if x.Shape()[0] != x.Shape()[1] {
		return tenalg.ShapeErrorf("expected a square matrix, got shape %v", x.Shape())
	}
	return nil
}
