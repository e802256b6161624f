// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package linalg

import (
	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

// TTMatrixToTensor reassembles the full tensor whose TT-Matrix decomposition
// is given by cores. Core k must have shape (rank_k, in_k, out_k, rank_k+1)
// with unit boundary ranks; the result has shape
// (in_0, ..., in_N, out_0, ..., out_N).
func TTMatrixToTensor(bk tensor.Backend, cores []*tensor.Dense) (*tensor.Dense, error) {
	if len(cores) == 0 {
		return nil, tenalg.InvalidArgf("tt_matrix_to_tensor of an empty core list")
	}
	for i, c := range cores {
		if c.NDim() != 4 {
			return nil, tenalg.ShapeErrorf("TT-Matrix core %d has %d dimensions, expected 4", i, c.NDim())
		}
		if i > 0 && cores[i-1].Shape()[3] != c.Shape()[0] {
			return nil, tenalg.ShapeErrorf("TT-Matrix cores %d and %d have mismatched ranks %d and %d",
				i-1, i, cores[i-1].Shape()[3], c.Shape()[0])
		}
	}
	if cores[0].Shape()[0] != 1 || cores[len(cores)-1].Shape()[3] != 1 {
		return nil, tenalg.ShapeErrorf("TT-Matrix boundary ranks must be 1, got %d and %d",
			cores[0].Shape()[0], cores[len(cores)-1].Shape()[3])
	}

	res := cores[0]
	for _, c := range cores[1:] {
		var err error
		res, err = tenalg.GeneralInnerProduct(bk, res, c, 1)
		if err != nil {
			return nil, err
		}
	}

	ndim := len(cores)
	interleaved := make(tensor.Shape, 0, 2*ndim)
	for _, c := range cores {
		interleaved = append(interleaved, c.Shape()[1], c.Shape()[2])
	}
	res = res.Reshape(interleaved)

	// Gather the input dimensions first, then the output dimensions.
	order := make([]int, 0, 2*ndim)
	for i := 0; i < 2*ndim; i += 2 {
		order = append(order, i)
	}
	for i := 1; i < 2*ndim; i += 2 {
		order = append(order, i)
	}
	return res.Permute(order...), nil
}
