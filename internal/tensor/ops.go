package tensor

import (
	"fmt"
	"math"

	"github.com/facto-ml/facto/internal/parallel"
)

var parCfg = parallel.DefaultConfig()

func sameShape(op string, a, b *Dense) {
	if !a.shape.Equal(b.shape) {
		panic(fmt.Sprintf("tensor: %s: shape mismatch %v vs %v", op, a.shape, b.shape))
	}
}

func binaryOp(op string, a, b *Dense, f func(x, y float64) float64) *Dense {
	sameShape(op, a, b)
	result := NewDense(a.shape)
	parallel.ForChunks(len(result.data), func(start, end int) {
		for i := start; i < end; i++ {
			result.data[i] = f(a.data[i], b.data[i])
		}
	}, parCfg)
	return result
}

// Add returns the elementwise sum a + b.
func Add(a, b *Dense) *Dense {
	return binaryOp("add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub returns the elementwise difference a - b.
func Sub(a, b *Dense) *Dense {
	return binaryOp("sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul returns the elementwise (Hadamard) product a * b.
func Mul(a, b *Dense) *Dense {
	return binaryOp("mul", a, b, func(x, y float64) float64 { return x * y })
}

// Div returns the elementwise quotient a / b.
func Div(a, b *Dense) *Dense {
	return binaryOp("div", a, b, func(x, y float64) float64 { return x / y })
}

// Apply returns a new tensor with f applied to every element.
func Apply(a *Dense, f func(float64) float64) *Dense {
	result := NewDense(a.shape)
	parallel.ForChunks(len(result.data), func(start, end int) {
		for i := start; i < end; i++ {
			result.data[i] = f(a.data[i])
		}
	}, parCfg)
	return result
}

// Scale returns a * s elementwise.
func Scale(a *Dense, s float64) *Dense {
	return Apply(a, func(x float64) float64 { return x * s })
}

// AddScalar returns a + s elementwise.
func AddScalar(a *Dense, s float64) *Dense {
	return Apply(a, func(x float64) float64 { return x + s })
}

// Abs returns |a| elementwise.
func Abs(a *Dense) *Dense { return Apply(a, math.Abs) }

// Sqrt returns the elementwise square root.
func Sqrt(a *Dense) *Dense { return Apply(a, math.Sqrt) }

// Sign returns the elementwise sign: -1, 0 or 1.
func Sign(a *Dense) *Dense {
	return Apply(a, func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	})
}

// Sum returns the sum of all elements.
func Sum(a *Dense) float64 {
	s := 0.0
	for _, v := range a.data {
		s += v
	}
	return s
}

// Mean returns the arithmetic mean of all elements.
func Mean(a *Dense) float64 {
	return Sum(a) / float64(len(a.data))
}

// Norm returns the Frobenius norm (the l2 norm of the flattened tensor).
func Norm(a *Dense) float64 {
	s := 0.0
	for _, v := range a.data {
		s += v * v
	}
	return math.Sqrt(s)
}

// MeanAxis returns the mean along the given axis; the result drops that axis.
func MeanAxis(a *Dense, axis int) *Dense {
	ndim := a.NDim()
	if axis < 0 || axis >= ndim {
		panic(fmt.Sprintf("tensor: mean: axis %d out of range for %dD tensor", axis, ndim))
	}
	moved := a.MoveAxis(axis, 0)
	n := a.shape[axis]
	rest := a.NumElements() / n

	outShape := make(Shape, 0, ndim-1)
	for i, d := range a.shape {
		if i != axis {
			outShape = append(outShape, d)
		}
	}
	if len(outShape) == 0 {
		return Scalar(Mean(a))
	}
	result := NewDense(outShape)
	for i := 0; i < n; i++ {
		row := moved.data[i*rest : (i+1)*rest]
		for j, v := range row {
			result.data[j] += v
		}
	}
	inv := 1.0 / float64(n)
	for j := range result.data {
		result.data[j] *= inv
	}
	return result
}
