package tenalg

import "github.com/facto-ml/facto/tensor"

// BatchedOuter computes a generalized outer product of the given tensors,
// preserving a shared leading batch dimension. For inputs of shapes
// (n, J1, ..., Jp), (n, K1, ..., Kq), ... the result has shape
// (n, J1, ..., Jp, K1, ..., Kq, ...).
func BatchedOuter(tensors []*tensor.Dense) (*tensor.Dense, error) {
	if len(tensors) == 0 {
		return nil, invalidArgf("batched outer of an empty tensor list")
	}

	result := tensors[0]
	for i, t := range tensors[1:] {
		nSamples := t.Shape()[0]
		if nSamples != result.Shape()[0] {
			return nil, shapeErrorf(
				"tensor %d has a batch-size of %d but those before had a batch-size of %d; "+
					"all tensors should have the same batch-size", i+1, nSamples, result.Shape()[0])
		}

		resInner := result.NumElements() / result.Shape()[0]
		tInner := t.NumElements() / nSamples

		outShape := make(tensor.Shape, 0, result.NDim()+t.NDim()-1)
		outShape = append(outShape, result.Shape()...)
		outShape = append(outShape, t.Shape()[1:]...)

		out := tensor.Zeros(outShape)
		rd, td, od := result.Data(), t.Data(), out.Data()
		for b := 0; b < nSamples; b++ {
			rOff, tOff, oOff := b*resInner, b*tInner, b*resInner*tInner
			for p := 0; p < resInner; p++ {
				rv := rd[rOff+p]
				row := oOff + p*tInner
				for q := 0; q < tInner; q++ {
					od[row+q] = rv * td[tOff+q]
				}
			}
		}
		result = out
	}
	return result, nil
}

// HigherOrderMoment computes the empirical order-th moment tensor of a
// sample batch x of shape (n_samples, D1, ..., DN): the batched outer
// product of x with itself order-1 times, averaged over the batch.
func HigherOrderMoment(x *tensor.Dense, order int) (*tensor.Dense, error) {
	if order < 1 {
		return nil, invalidArgf("moment order must be >= 1, got %d", order)
	}
	if x.NDim() < 1 {
		return nil, shapeErrorf("higher-order moment needs a leading sample dimension")
	}
	moment := x.Clone()
	for i := 1; i < order; i++ {
		var err error
		moment, err = BatchedOuter([]*tensor.Dense{moment, x})
		if err != nil {
			return nil, err
		}
	}
	return tensor.MeanAxis(moment, 0), nil
}
