package tensor

import "math/rand"

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Dense {
	return NewDense(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Dense {
	return Full(shape, 1)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float64) *Dense {
	t := NewDense(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Eye creates an r x c matrix with ones on the main diagonal.
func Eye(r, c int) *Dense {
	t := NewDense(Shape{r, c})
	for i := 0; i < r && i < c; i++ {
		t.data[i*c+i] = 1
	}
	return t
}

// Diag creates a square matrix with v on the k-th diagonal.
// Positive k selects a superdiagonal, negative k a subdiagonal.
func Diag(v []float64, k int) *Dense {
	n := len(v)
	if k < 0 {
		n -= k
	} else {
		n += k
	}
	t := NewDense(Shape{n, n})
	for i, x := range v {
		r, c := i, i+k
		if k < 0 {
			r, c = i-k, i
		}
		t.data[r*n+c] = x
	}
	return t
}

// Rand creates a tensor of uniform draws from [0, 1) using rng.
func Rand(shape Shape, rng *rand.Rand) *Dense {
	t := NewDense(shape)
	for i := range t.data {
		t.data[i] = rng.Float64()
	}
	return t
}
