package tenalg

import "github.com/facto-ml/facto/tensor"

// KhatriRao computes the Khatri-Rao (column-wise Kronecker) product of a
// sequence of matrices sharing the same column count m. The result has shape
// (prod of row counts, m).
//
// If a single matrix is given it is returned unchanged. Vectors are
// reinterpreted as single-column matrices with a warning. weights (length m)
// scales the columns of the first matrix before combination; mask (length m)
// zeroes out selected columns of the final result. skipMatrix (when >= 0)
// names a matrix to leave out.
func KhatriRao(matrices []*tensor.Dense, weights *tensor.Dense, skipMatrix int, mask *tensor.Dense) (*tensor.Dense, error) {
	ms := make([]*tensor.Dense, 0, len(matrices))
	for i, m := range matrices {
		if i != skipMatrix {
			ms = append(ms, m)
		}
	}
	if len(ms) == 0 {
		return nil, invalidArgf("khatri-rao of an empty matrix list")
	}
	if len(ms) == 1 {
		return ms[0], nil
	}

	var nColumns int
	if ms[0].NDim() == 2 {
		nColumns = ms[0].Shape()[1]
	} else {
		nColumns = 1
		logger.Warn("khatri-rao of a series of vectors instead of matrices; " +
			"considering each as a matrix with 1 column")
		for i, m := range ms {
			ms[i] = m.Reshape(tensor.Shape{m.NumElements(), 1})
		}
	}

	for i, m := range ms {
		if m.NDim() != 2 {
			return nil, shapeErrorf("all khatri-rao inputs must have exactly 2 dimensions; "+
				"matrix %d has dimension %d != 2", i, m.NDim())
		}
		if m.Shape()[1] != nColumns {
			return nil, shapeErrorf("all khatri-rao inputs must have the same number of columns; "+
				"matrix %d has %d columns != %d", i, m.Shape()[1], nColumns)
		}
	}

	res := ms[0]
	if weights != nil {
		if weights.NumElements() != nColumns {
			return nil, shapeErrorf("khatri-rao weights must have length %d, got %d",
				nColumns, weights.NumElements())
		}
		res = scaleColumns(res, weights.Data())
	}

	for _, m := range ms[1:] {
		s1 := res.Shape()[0]
		s3 := m.Shape()[0]
		next := tensor.Zeros(tensor.Shape{s1 * s3, nColumns})
		rd, md, nd := res.Data(), m.Data(), next.Data()
		for i := 0; i < s1; i++ {
			for j := 0; j < s3; j++ {
				row := (i*s3 + j) * nColumns
				for c := 0; c < nColumns; c++ {
					nd[row+c] = rd[i*nColumns+c] * md[j*nColumns+c]
				}
			}
		}
		res = next
	}

	if mask != nil {
		if mask.NumElements() != nColumns {
			return nil, shapeErrorf("khatri-rao mask must have length %d, got %d",
				nColumns, mask.NumElements())
		}
		res = scaleColumns(res, mask.Data())
	}
	return res, nil
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

// scaleRows multiplies row r of a matrix by w[r].
func scaleRows(m *tensor.Dense, w []float64) *tensor.Dense {
	s := m.Shape()
	out := m.Clone()
	d := out.Data()
	for i := 0; i < s[0]; i++ {
		row := i * s[1]
		for c := 0; c < s[1]; c++ {
			d[row+c] *= w[i]
		}
	}
	return out
}
