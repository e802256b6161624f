// Package tensor implements the dense n-dimensional array the decomposition
// engines operate on, together with the Backend interface naming the
// linear-algebra primitives they consume.
package tensor

import "fmt"

// Dense is a dense n-dimensional array of float64 values in row-major order.
//
// Dense values are treated as immutable by the algebra routines: operations
// allocate fresh results unless documented otherwise. Callers that need
// in-place semantics work through Data() on values they own.
type Dense struct {
	data   []float64
	shape  Shape
	stride []int
}

// NewDense creates a zero-filled tensor with the given shape.
func NewDense(shape Shape) *Dense {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: invalid shape: %v", err))
	}
	return &Dense{
		data:   make([]float64, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}
}

// FromSlice creates a tensor backed by a copy of data.
func FromSlice(data []float64, shape Shape) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	t := NewDense(shape)
	copy(t.data, data)
	return t, nil
}

// Scalar creates a 0-dimensional tensor holding a single value.
func Scalar(v float64) *Dense {
	return &Dense{data: []float64{v}, shape: Shape{}, stride: []int{}}
}

// Shape returns the tensor's shape. The returned slice must not be modified.
func (t *Dense) Shape() Shape { return t.shape }

// Strides returns the tensor's row-major memory strides.
func (t *Dense) Strides() []int { return t.stride }

// NDim returns the number of dimensions.
func (t *Dense) NDim() int { return len(t.shape) }

// NumElements returns the total number of elements.
func (t *Dense) NumElements() int { return t.shape.NumElements() }

// Data returns the underlying value slice in row-major order.
// Mutating it mutates the tensor.
func (t *Dense) Data() []float64 { return t.data }

// At returns the element at the given multi-index.
func (t *Dense) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set assigns the element at the given multi-index.
func (t *Dense) Set(v float64, indices ...int) {
	t.data[t.offset(indices)] = v
}

func (t *Dense) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: got %d indices for %d-dimensional tensor",
			len(indices), len(t.shape)))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d (size %d)",
				idx, i, t.shape[i]))
		}
		off += idx * t.stride[i]
	}
	return off
}

// Clone returns a deep copy of the tensor.
func (t *Dense) Clone() *Dense {
	c := NewDense(t.shape)
	copy(c.data, t.data)
	return c
}

// Reshape returns a tensor with the same elements and a new shape.
// The number of elements must be preserved. The result shares no storage
// with the receiver.
func (t *Dense) Reshape(shape Shape) *Dense {
	if shape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("tensor: reshape %v -> %v changes element count", t.shape, shape))
	}
	r, err := FromSlice(t.data, shape)
	if err != nil {
		panic(fmt.Sprintf("tensor: reshape: %v", err))
	}
	return r
}

// IsMatrix reports whether the tensor has exactly two dimensions.
func (t *Dense) IsMatrix() bool { return len(t.shape) == 2 }

// IsVector reports whether the tensor has exactly one dimension.
func (t *Dense) IsVector() bool { return len(t.shape) == 1 }
