package tenalg

import "github.com/facto-ml/facto/tensor"

// Kron computes the Kronecker product of a and b: a composite array made of
// blocks of b scaled by the entries of a. Inputs may be vectors or matrices;
// two vectors produce a vector, otherwise both operands are promoted to
// matrices.
func Kron(a, b *tensor.Dense) (*tensor.Dense, error) {
	if a.NDim() > 2 || b.NDim() > 2 || a.NDim() == 0 || b.NDim() == 0 {
		return nil, shapeErrorf("kron operands must be vectors or matrices, got %dD and %dD",
			a.NDim(), b.NDim())
	}
	if a.IsVector() && b.IsVector() {
		na, nb := a.Shape()[0], b.Shape()[0]
		out := tensor.Zeros(tensor.Shape{na * nb})
		ad, bd, od := a.Data(), b.Data(), out.Data()
		for i, av := range ad {
			for j, bv := range bd {
				od[i*nb+j] = av * bv
			}
		}
		return out, nil
	}

	am, bm := asMatrix(a), asMatrix(b)
	ar, ac := am.Shape()[0], am.Shape()[1]
	br, bc := bm.Shape()[0], bm.Shape()[1]
	out := tensor.Zeros(tensor.Shape{ar * br, ac * bc})
	od := out.Data()
	cols := ac * bc
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			av := am.At(i, j)
			for p := 0; p < br; p++ {
				row := (i*br + p) * cols
				for q := 0; q < bc; q++ {
					od[row+j*bc+q] = av * bm.At(p, q)
				}
			}
		}
	}
	return out, nil
}

// Kronecker computes the Kronecker product of a list of matrices, in order.
// skipMatrix (when >= 0) names a matrix to leave out; reverse processes the
// list back to front.
func Kronecker(matrices []*tensor.Dense, skipMatrix int, reverse bool) (*tensor.Dense, error) {
	ms := make([]*tensor.Dense, 0, len(matrices))
	for i, m := range matrices {
		if i != skipMatrix {
			ms = append(ms, m)
		}
	}
	if len(ms) == 0 {
		return nil, invalidArgf("kronecker of an empty matrix list")
	}
	if reverse {
		for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
			ms[i], ms[j] = ms[j], ms[i]
		}
	}

	res := ms[0]
	for _, m := range ms[1:] {
		var err error
		res, err = Kron(res, m)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// asMatrix reinterprets a vector as a single-row matrix, leaving matrices
// untouched.
func asMatrix(t *tensor.Dense) *tensor.Dense {
	if t.IsVector() {
		return t.Reshape(tensor.Shape{1, t.Shape()[0]})
	}
	return t
}
