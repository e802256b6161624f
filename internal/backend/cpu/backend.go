// Package cpu implements the CPU backend on top of gonum's dense
// linear-algebra kernels.
package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/facto-ml/facto/internal/tensor"
)

// CPUBackend implements tensor.Backend using gonum/mat.
type CPUBackend struct{}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// asMat wraps a 2-D Dense as a gonum matrix without copying.
func asMat(op string, t *tensor.Dense) *mat.Dense {
	if !t.IsMatrix() {
		panic(fmt.Sprintf("%s: expected a matrix, got %dD tensor of shape %v",
			op, t.NDim(), t.Shape()))
	}
	s := t.Shape()
	return mat.NewDense(s[0], s[1], t.Data())
}

// fromMat copies a gonum matrix into a fresh Dense.
func fromMat(m mat.Matrix) *tensor.Dense {
	r, c := m.Dims()
	out := tensor.NewDense(tensor.Shape{r, c})
	data := out.Data()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[i*c+j] = m.At(i, j)
		}
	}
	return out
}

// MatMul computes the matrix product of two 2-D tensors.
func (cpu *CPUBackend) MatMul(a, b *tensor.Dense) *tensor.Dense {
	am, bm := asMat("matmul", a), asMat("matmul", b)
	ar, _ := am.Dims()
	_, bc := bm.Dims()
	out := tensor.NewDense(tensor.Shape{ar, bc})
	res := mat.NewDense(ar, bc, out.Data())
	res.Mul(am, bm)
	return out
}

// SVD computes a singular value decomposition a = U diag(S) Vh.
func (cpu *CPUBackend) SVD(a *tensor.Dense, fullMatrices bool) (u, s, vh *tensor.Dense) {
	var svd mat.SVD
	kind := mat.SVDThin
	if fullMatrices {
		kind = mat.SVDFull
	}
	if ok := svd.Factorize(asMat("svd", a), kind); !ok {
		panic(fmt.Sprintf("svd: factorization failed for shape %v", a.Shape()))
	}

	var um, vm mat.Dense
	svd.UTo(&um)
	svd.VTo(&vm)

	values := svd.Values(nil)
	s, err := tensor.FromSlice(values, tensor.Shape{len(values)})
	if err != nil {
		panic(fmt.Sprintf("svd: %v", err))
	}
	return fromMat(&um), s, fromMat(vm.T())
}

// SVDValues computes only the singular values of a.
func (cpu *CPUBackend) SVDValues(a *tensor.Dense) *tensor.Dense {
	var svd mat.SVD
	if ok := svd.Factorize(asMat("svd", a), mat.SVDNone); !ok {
		panic(fmt.Sprintf("svd: factorization failed for shape %v", a.Shape()))
	}
	values := svd.Values(nil)
	s, err := tensor.FromSlice(values, tensor.Shape{len(values)})
	if err != nil {
		panic(fmt.Sprintf("svd: %v", err))
	}
	return s
}

// QR computes the thin QR factorization a = Q R.
func (cpu *CPUBackend) QR(a *tensor.Dense) (q, r *tensor.Dense) {
	var qr mat.QR
	qr.Factorize(asMat("qr", a))

	var qm, rm mat.Dense
	qr.QTo(&qm)
	qr.RTo(&rm)

	// Thin factors: Q keeps min(m, n) columns, R the matching rows.
	s := a.Shape()
	k := min(s[0], s[1])
	qThin := fromMat(&qm)
	rFull := fromMat(&rm)
	return slice2DCols(qThin, k), slice2DRows(rFull, k)
}

// Eigh computes the eigendecomposition of a symmetric matrix, eigenvalues
// ascending.
func (cpu *CPUBackend) Eigh(a *tensor.Dense) (values, vectors *tensor.Dense) {
	am := asMat("eigh", a)
	n, c := am.Dims()
	if n != c {
		panic(fmt.Sprintf("eigh: matrix must be square, got %v", a.Shape()))
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, am.At(i, j))
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		panic(fmt.Sprintf("eigh: factorization failed for shape %v", a.Shape()))
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	values, err := tensor.FromSlice(vals, tensor.Shape{n})
	if err != nil {
		panic(fmt.Sprintf("eigh: %v", err))
	}
	return values, fromMat(&vecs)
}

// Eig computes the eigendecomposition of a general square matrix.
func (cpu *CPUBackend) Eig(a *tensor.Dense) (values, vectors []complex128) {
	am := asMat("eig", a)
	n, c := am.Dims()
	if n != c {
		panic(fmt.Sprintf("eig: matrix must be square, got %v", a.Shape()))
	}
	var eig mat.Eigen
	if ok := eig.Factorize(am, mat.EigenRight); !ok {
		panic(fmt.Sprintf("eig: factorization failed for shape %v", a.Shape()))
	}
	values = eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	vectors = make([]complex128, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			vectors[i*n+j] = vecs.At(i, j)
		}
	}
	return values, vectors
}

// Exp computes the matrix exponential of a square matrix by scaling and
// squaring with a Pade approximation.
func (cpu *CPUBackend) Exp(a *tensor.Dense) *tensor.Dense {
	am := asMat("exp", a)
	n, c := am.Dims()
	if n != c {
		panic(fmt.Sprintf("exp: matrix must be square, got %v", a.Shape()))
	}
	var out mat.Dense
	out.Exp(am)
	return fromMat(&out)
}

// Solve solves the linear system a x = b for x.
func (cpu *CPUBackend) Solve(a, b *tensor.Dense) (*tensor.Dense, error) {
	am, bm := asMat("solve", a), asMat("solve", b)
	var x mat.Dense
	if err := x.Solve(am, bm); err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	return fromMat(&x), nil
}

func slice2DRows(t *tensor.Dense, n int) *tensor.Dense {
	s := t.Shape()
	if n == s[0] {
		return t
	}
	out := tensor.NewDense(tensor.Shape{n, s[1]})
	copy(out.Data(), t.Data()[:n*s[1]])
	return out
}

func slice2DCols(t *tensor.Dense, n int) *tensor.Dense {
	s := t.Shape()
	if n == s[1] {
		return t
	}
	out := tensor.NewDense(tensor.Shape{s[0], n})
	for i := 0; i < s[0]; i++ {
		copy(out.Data()[i*n:(i+1)*n], t.Data()[i*s[1]:i*s[1]+n])
	}
	return out
}
