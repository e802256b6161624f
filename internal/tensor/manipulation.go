package tensor

import "fmt"

// Permute returns a tensor with dimensions reordered according to axes.
// axes must be a permutation of [0, ndim).
func (t *Dense) Permute(axes ...int) *Dense {
	ndim := len(t.shape)
	if len(axes) != ndim {
		panic(fmt.Sprintf("tensor: permute axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	newShape := make(Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("tensor: permute: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("tensor: permute: duplicate axis %d", ax))
		}
		seen[ax] = true
		newShape[i] = t.shape[ax]
	}

	result := NewDense(newShape)
	if t.NumElements() == 0 {
		return result
	}

	// Walk the destination in row-major order, pulling from the permuted
	// source offset.
	srcStride := make([]int, ndim)
	for i, ax := range axes {
		srcStride[i] = t.stride[ax]
	}
	idx := make([]int, ndim)
	for pos := range result.data {
		off := 0
		for i := range idx {
			off += idx[i] * srcStride[i]
		}
		result.data[pos] = t.data[off]
		for i := ndim - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < newShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return result
}

// T returns the matrix transpose. Panics if the tensor is not 2-dimensional.
func (t *Dense) T() *Dense {
	if !t.IsMatrix() {
		panic(fmt.Sprintf("tensor: T on %d-dimensional tensor", t.NDim()))
	}
	return t.Permute(1, 0)
}

// MoveAxis moves the dimension at src to position dst, keeping the relative
// order of the remaining dimensions.
func (t *Dense) MoveAxis(src, dst int) *Dense {
	ndim := len(t.shape)
	if src < 0 || src >= ndim || dst < 0 || dst >= ndim {
		panic(fmt.Sprintf("tensor: moveaxis: axes (%d, %d) out of range for %dD tensor",
			src, dst, ndim))
	}
	axes := make([]int, 0, ndim)
	for i := 0; i < ndim; i++ {
		if i != src {
			axes = append(axes, i)
		}
	}
	axes = append(axes[:dst], append([]int{src}, axes[dst:]...)...)
	return t.Permute(axes...)
}

// Unfold returns the mode-`mode` matricization of the tensor: the given mode
// becomes the rows and all remaining modes are flattened into the columns.
func Unfold(t *Dense, mode int) *Dense {
	if mode < 0 || mode >= t.NDim() {
		panic(fmt.Sprintf("tensor: unfold: mode %d out of range for %dD tensor", mode, t.NDim()))
	}
	moved := t.MoveAxis(mode, 0)
	return moved.Reshape(Shape{t.shape[mode], t.NumElements() / t.shape[mode]})
}

// Fold refolds a mode-`mode` unfolding back into a tensor of the given shape.
// It is the inverse of Unfold.
func Fold(unfolded *Dense, mode int, shape Shape) *Dense {
	if mode < 0 || mode >= len(shape) {
		panic(fmt.Sprintf("tensor: fold: mode %d out of range for shape %v", mode, shape))
	}
	full := make(Shape, 0, len(shape))
	full = append(full, shape[mode])
	for i, d := range shape {
		if i != mode {
			full = append(full, d)
		}
	}
	return unfolded.Reshape(full).MoveAxis(0, mode)
}

// Stack stacks tensors of identical shape along a new leading dimension.
func Stack(tensors []*Dense) *Dense {
	if len(tensors) == 0 {
		panic("tensor: stack: at least one tensor required")
	}
	first := tensors[0]
	for _, t := range tensors[1:] {
		if !t.shape.Equal(first.shape) {
			panic(fmt.Sprintf("tensor: stack: shape mismatch %v vs %v", first.shape, t.shape))
		}
	}
	outShape := append(Shape{len(tensors)}, first.Shape().Clone()...)
	result := NewDense(outShape)
	n := first.NumElements()
	for i, t := range tensors {
		copy(result.data[i*n:(i+1)*n], t.data)
	}
	return result
}

// Concat concatenates tensors along the given dimension. All inputs must
// share every other dimension.
func Concat(tensors []*Dense, dim int) *Dense {
	if len(tensors) == 0 {
		panic("tensor: concat: at least one tensor required")
	}
	first := tensors[0]
	ndim := first.NDim()
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("tensor: concat: dim %d out of range for %dD tensor", dim, ndim))
	}
	outShape := first.Shape().Clone()
	for _, t := range tensors[1:] {
		if t.NDim() != ndim {
			panic(fmt.Sprintf("tensor: concat: rank mismatch %d != %d", t.NDim(), ndim))
		}
		for i := 0; i < ndim; i++ {
			if i != dim && t.shape[i] != first.shape[i] {
				panic(fmt.Sprintf("tensor: concat: shapes %v and %v differ outside dim %d",
					first.shape, t.shape, dim))
			}
		}
		outShape[dim] += t.shape[dim]
	}

	result := NewDense(outShape)
	// Copy contiguous runs: everything after dim is one block.
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= outShape[i]
	}
	inner := 1
	for i := dim + 1; i < ndim; i++ {
		inner *= outShape[i]
	}
	rowLen := outShape[dim] * inner
	offset := 0
	for _, t := range tensors {
		block := t.shape[dim] * inner
		for o := 0; o < outer; o++ {
			copy(result.data[o*rowLen+offset:o*rowLen+offset+block],
				t.data[o*block:(o+1)*block])
		}
		offset += block
	}
	return result
}
