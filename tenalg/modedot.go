package tenalg

import (
	"sort"

	"github.com/facto-ml/facto/tensor"
)

// ModeDot computes the n-mode product of a tensor with a matrix or vector at
// the given mode.
//
// For a matrix operand of shape (J, I_mode) the result replaces dimension
// `mode` with J. With transpose the operand is transposed before the
// contraction (conjugate-transpose in the complex case; plain transpose
// here). For a vector operand of length I_mode the contracted mode is
// removed from the result.
func ModeDot(bk tensor.Backend, x, matrixOrVector *tensor.Dense, mode int, transpose bool) (*tensor.Dense, error) {
	if mode < 0 || mode >= x.NDim() {
		return nil, shapeErrorf("mode %d out of range for %dD tensor", mode, x.NDim())
	}
	newShape := x.Shape().Clone()

	switch matrixOrVector.NDim() {
	case 2:
		dim := 1
		if transpose {
			dim = 0
		}
		if matrixOrVector.Shape()[dim] != x.Shape()[mode] {
			return nil, shapeErrorf(
				"shapes %v and %v not aligned in mode-%d multiplication: %d (mode %d) != %d (dim %d of matrix)",
				x.Shape(), matrixOrVector.Shape(), mode, x.Shape()[mode], mode,
				matrixOrVector.Shape()[dim], dim)
		}
		m := matrixOrVector
		if transpose {
			m = m.T()
		}
		newShape[mode] = m.Shape()[0]
		res := bk.MatMul(m, tensor.Unfold(x, mode))
		return tensor.Fold(res, mode, newShape), nil

	case 1:
		if matrixOrVector.Shape()[0] != x.Shape()[mode] {
			return nil, shapeErrorf(
				"shapes %v and %v not aligned for mode-%d multiplication: %d (mode %d) != %d (vector size)",
				x.Shape(), matrixOrVector.Shape(), mode, x.Shape()[mode], mode,
				matrixOrVector.Shape()[0])
		}
		row := matrixOrVector.Reshape(tensor.Shape{1, matrixOrVector.Shape()[0]})
		res := bk.MatMul(row, tensor.Unfold(x, mode))
		out := make(tensor.Shape, 0, x.NDim()-1)
		for i, d := range x.Shape() {
			if i != mode {
				out = append(out, d)
			}
		}
		if len(out) == 0 {
			return tensor.Scalar(res.Data()[0]), nil
		}
		return res.Reshape(out), nil

	default:
		return nil, shapeErrorf(
			"can only take an n-mode product with a vector or a matrix; got operand of dimension %d",
			matrixOrVector.NDim())
	}
}

// MultiModeDot computes the n-mode product of a tensor with several matrices
// or vectors over several modes. If modes is nil, operand i is applied at
// mode i. skip (when >= 0) names an operand to leave out. Products are
// applied in increasing-mode order regardless of the input ordering, with
// mode indices decremented as vector contractions remove dimensions.
func MultiModeDot(bk tensor.Backend, x *tensor.Dense, operands []*tensor.Dense, modes []int, skip int, transpose bool) (*tensor.Dense, error) {
	if modes == nil {
		modes = make([]int, len(operands))
		for i := range modes {
			modes[i] = i
		}
	}
	if len(modes) != len(operands) {
		return nil, shapeErrorf("got %d operands for %d modes", len(operands), len(modes))
	}

	type pair struct {
		op   *tensor.Dense
		mode int
	}
	pairs := make([]pair, len(operands))
	for i := range operands {
		pairs[i] = pair{operands[i], modes[i]}
	}
	// Stable so equal modes keep their input order.
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].mode < pairs[j].mode })

	res := x
	decrement := 0 // Vector contractions shrink the tensor, shifting later modes.
	for i, p := range pairs {
		if i == skip {
			continue
		}
		var err error
		res, err = ModeDot(bk, res, p.op, p.mode-decrement, transpose && p.op.NDim() == 2)
		if err != nil {
			return nil, err
		}
		if p.op.NDim() == 1 {
			decrement++
		}
	}
	return res, nil
}
