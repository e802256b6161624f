// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package decomp

import (
	"go.uber.org/zap"

	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

// TuckerTensor is a tensor in Tucker form: a core tensor and one factor
// matrix of shape (dim_i, rank_i) per mode. A decomposition restricted to a
// subset of modes carries factors for those modes only.
type TuckerTensor struct {
	Core    *tensor.Dense
	Factors []*tensor.Dense
}

// Clone returns a deep copy.
func (tt *TuckerTensor) Clone() *TuckerTensor {
	factors := make([]*tensor.Dense, len(tt.Factors))
	for i, f := range tt.Factors {
		factors[i] = f.Clone()
	}
	return &TuckerTensor{Core: tt.Core.Clone(), Factors: factors}
}

// ToTensor reassembles the full tensor by applying every factor to the core
// along its mode.
func (tt *TuckerTensor) ToTensor(bk tensor.Backend) (*tensor.Dense, error) {
	return tenalg.MultiModeDot(bk, tt.Core, tt.Factors, nil, -1, false)
}

// toTensorAt reassembles along an explicit mode subset, used when the
// decomposition covers only some modes.
func (tt *TuckerTensor) toTensorAt(bk tensor.Backend, modes []int) (*tensor.Dense, error) {
	return tenalg.MultiModeDot(bk, tt.Core, tt.Factors, modes, -1, false)
}

// ValidateTuckerRank resolves the multilinear rank for a Tucker
// decomposition of a tensor with the given shape, considered along modes. A
// nil rank preserves the mode sizes; a single value is broadcast to every
// mode. Both defaulting paths log a warning.
func ValidateTuckerRank(shape tensor.Shape, rank []int, modes []int) ([]int, error) {
	if modes == nil {
		modes = allModes(len(shape))
	}
	switch {
	case rank == nil:
		logger.Warn("no value given for rank; the decomposition will preserve the original size")
		rank = make([]int, len(modes))
		for i, mode := range modes {
			rank[i] = shape[mode]
		}
	case len(rank) == 1 && len(modes) > 1:
		logger.Warn("given only one rank value; using it for all modes",
			zap.Int("rank", rank[0]), zap.Int("n_modes", len(modes)))
		r := rank[0]
		rank = make([]int, len(modes))
		for i := range rank {
			rank[i] = r
		}
	case len(rank) != len(modes):
		return nil, shapeErrorf("got %d rank values for %d modes", len(rank), len(modes))
	}
	return rank, nil
}

func allModes(n int) []int {
	modes := make([]int, n)
	for i := range modes {
		modes[i] = i
	}
	return modes
}
