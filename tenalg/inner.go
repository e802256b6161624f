package tenalg

import "github.com/facto-ml/facto/tensor"

// GeneralInnerProduct contracts the last nModes dimensions of a against the
// first nModes dimensions of b. With nModes <= 0 the traditional inner
// product is computed, which requires a and b to share their full shape and
// yields a scalar tensor.
func GeneralInnerProduct(bk tensor.Backend, a, b *tensor.Dense, nModes int) (*tensor.Dense, error) {
	if nModes <= 0 {
		if !a.Shape().Equal(b.Shape()) {
			return nil, shapeErrorf(
				"inner product without common modes requires a.shape == b.shape; got %v and %v",
				a.Shape(), b.Shape())
		}
		return tensor.Scalar(tensor.Sum(tensor.Mul(a, b))), nil
	}
	if nModes > a.NDim() || nModes > b.NDim() {
		return nil, shapeErrorf("cannot contract %d modes between %dD and %dD tensors",
			nModes, a.NDim(), b.NDim())
	}

	common := a.Shape()[a.NDim()-nModes:]
	if !common.Equal(b.Shape()[:nModes]) {
		return nil, shapeErrorf("incorrect shapes for inner product along %d common modes: %v and %v",
			nModes, a.Shape(), b.Shape())
	}

	commonSize := common.NumElements()
	outShape := make(tensor.Shape, 0, a.NDim()+b.NDim()-2*nModes)
	outShape = append(outShape, a.Shape()[:a.NDim()-nModes]...)
	outShape = append(outShape, b.Shape()[nModes:]...)

	prod := bk.MatMul(
		a.Reshape(tensor.Shape{a.NumElements() / commonSize, commonSize}),
		b.Reshape(tensor.Shape{commonSize, b.NumElements() / commonSize}),
	)
	if len(outShape) == 0 {
		return tensor.Scalar(prod.Data()[0]), nil
	}
	return prod.Reshape(outShape), nil
}
