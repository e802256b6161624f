// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package decomp

import (
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

// CPTensor is a tensor in CP (Kruskal) form: a weight vector of length rank
// and one factor matrix of shape (dim_i, rank) per mode.
type CPTensor struct {
	Weights *tensor.Dense
	Factors []*tensor.Dense
}

// NewCPTensor validates and assembles a CP tensor. A nil weights vector
// defaults to all ones.
func NewCPTensor(weights *tensor.Dense, factors []*tensor.Dense) (*CPTensor, error) {
	if len(factors) == 0 {
		return nil, tenalg.ErrShape
	}
	rank := -1
	for i, f := range factors {
		if f.NDim() != 2 {
			return nil, shapeErrorf("CP factor %d has %d dimensions, expected a matrix", i, f.NDim())
		}
		if rank < 0 {
			rank = f.Shape()[1]
		} else if f.Shape()[1] != rank {
			return nil, shapeErrorf("CP factor %d has %d columns, previous factors had %d",
				i, f.Shape()[1], rank)
		}
	}
	if weights == nil {
		weights = tensor.Ones(tensor.Shape{rank})
	} else if weights.NumElements() != rank {
		return nil, shapeErrorf("CP weights have length %d, factors have rank %d",
			weights.NumElements(), rank)
	}
	return &CPTensor{Weights: weights, Factors: factors}, nil
}

// Rank returns the number of rank-one components.
func (cp *CPTensor) Rank() int { return cp.Factors[0].Shape()[1] }

// Shape returns the shape of the full tensor the CP form represents.
func (cp *CPTensor) Shape() tensor.Shape {
	s := make(tensor.Shape, len(cp.Factors))
	for i, f := range cp.Factors {
		s[i] = f.Shape()[0]
	}
	return s
}

// Clone returns a deep copy.
func (cp *CPTensor) Clone() *CPTensor {
	factors := make([]*tensor.Dense, len(cp.Factors))
	for i, f := range cp.Factors {
		factors[i] = f.Clone()
	}
	return &CPTensor{Weights: cp.Weights.Clone(), Factors: factors}
}

// ToTensor reassembles the full tensor: the weighted first factor times the
// transposed Khatri-Rao product of the remaining factors, folded back along
// mode 0.
func (cp *CPTensor) ToTensor(bk tensor.Backend) (*tensor.Dense, error) {
	shape := cp.Shape()
	if len(cp.Factors) == 1 {
		return scaleColumns(cp.Factors[0], cp.Weights.Data()), nil
	}
	kr, err := tenalg.KhatriRao(cp.Factors, nil, 0, nil)
	if err != nil {
		return nil, err
	}
	head := scaleColumns(cp.Factors[0], cp.Weights.Data())
	full := bk.MatMul(head, kr.T())
	return tensor.Fold(full, 0, shape), nil
}

// Norm computes the l2 norm of the full tensor directly from the CP form,
// via the Hadamard product of the factor Gram matrices.
func (cp *CPTensor) Norm(bk tensor.Backend) float64 {
	rank := cp.Rank()
	coef := tensor.Ones(tensor.Shape{rank, rank})
	for _, f := range cp.Factors {
		coef = tensor.Mul(coef, bk.MatMul(f.T(), f))
	}
	w := cp.Weights.Data()
	cd := coef.Data()
	var total float64
	for i := 0; i < rank; i++ {
		for j := 0; j < rank; j++ {
			total += w[i] * w[j] * cd[i*rank+j]
		}
	}
	return math.Sqrt(math.Abs(total))
}

// Normalize returns an equivalent CP tensor whose factor columns have unit
// l2 norm, with the norms absorbed into the weights. Zero columns are left
// untouched.
func (cp *CPTensor) Normalize() *CPTensor {
	rank := cp.Rank()
	weights := cp.Weights.Clone()
	wd := weights.Data()
	factors := make([]*tensor.Dense, len(cp.Factors))
	for i, f := range cp.Factors {
		rows := f.Shape()[0]
		out := f.Clone()
		d := out.Data()
		for c := 0; c < rank; c++ {
			var n float64
			for r := 0; r < rows; r++ {
				n += d[r*rank+c] * d[r*rank+c]
			}
			n = math.Sqrt(n)
			wd[c] *= n
			if n == 0 {
				n = 1
			}
			for r := 0; r < rows; r++ {
				d[r*rank+c] /= n
			}
		}
		factors[i] = out
	}
	return &CPTensor{Weights: weights, Factors: factors}
}

// UnfoldingDotKhatriRao computes the matricised-tensor-times-Khatri-Rao
// product (MTTKRP) of x with the CP factors at the given mode: the mode-th
// unfolding of x times the Khatri-Rao product of all other factors, weighted.
func UnfoldingDotKhatriRao(bk tensor.Backend, x *tensor.Dense, cp *CPTensor, mode int) (*tensor.Dense, error) {
	kr, err := tenalg.KhatriRao(cp.Factors, cp.Weights, mode, nil)
	if err != nil {
		return nil, err
	}
	return bk.MatMul(tensor.Unfold(x, mode), kr), nil
}

// ValidateCPRank resolves the rank for a CP decomposition of a tensor with
// the given shape. rank <= 0 requests the rank that keeps roughly the same
// number of parameters as the tensor itself, with a warning.
func ValidateCPRank(shape tensor.Shape, rank int) int {
	if rank > 0 {
		return rank
	}
	var sum int
	for _, d := range shape {
		sum += d
	}
	same := int(math.Round(float64(shape.NumElements()) / float64(sum)))
	if same < 1 {
		same = 1
	}
	logger.Warn("no valid rank given; using the rank that preserves the parameter count",
		zap.Int("rank", same))
	return same
}

// RandomCP generates a random CP tensor of the given shape and rank with
// factors drawn uniformly from [0, 1). With normalizeFactors the factor
// columns are rescaled to unit norm and the weights carry the scale.
func RandomCP(shape tensor.Shape, rank int, rng *rand.Rand, normalizeFactors bool) *CPTensor {
	factors := make([]*tensor.Dense, len(shape))
	for i, d := range shape {
		factors[i] = tensor.Rand(tensor.Shape{d, rank}, rng)
	}
	cp := &CPTensor{Weights: tensor.Ones(tensor.Shape{rank}), Factors: factors}
	if normalizeFactors {
		cp = cp.Normalize()
	}
	return cp
}

// SparsifyTensor zeroes out all but the card largest-magnitude entries of x.
// card >= the number of elements returns a plain copy.
func SparsifyTensor(x *tensor.Dense, card int) *tensor.Dense {
	out := x.Clone()
	d := out.Data()
	if card >= len(d) {
		return out
	}
	if card < 0 {
		card = 0
	}
	idx := make([]int, len(d))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return math.Abs(d[idx[a]]) > math.Abs(d[idx[b]])
	})
	for _, i := range idx[card:] {
		d[i] = 0
	}
	return out
}

func shapeErrorf(format string, args ...any) error {
	return tenalg.ShapeErrorf(format, args...)
}

func invalidArgf(format string, args ...any) error {
	return tenalg.InvalidArgf(format, args...)
}

// scaleColumns multiplies column c of a matrix by w[c].
func scaleColumns(m *tensor.Dense, w []float64) *tensor.Dense {
	s := m.Shape()
	out := m.Clone()
	d := out.Data()
	for i := 0; i < s[0]; i++ {
		row := i * s[1]
		for c := 0; c < s[1]; c++ {
			d[row+c] *= w[c]
		}
	}
	return out
}
