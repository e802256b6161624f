package tensor

// Backend defines the linear-algebra primitives the decomposition engines
// consume. Engines receive a Backend explicitly; there is no process-wide
// active backend.
//
// Implementations:
//   - backend/cpu: gonum-backed CPU implementation
//
// All matrix arguments are 2-dimensional Dense tensors. Implementations
// panic on malformed shapes and on factorization failure, mirroring the
// contract of the elementwise kernels in this package; Solve returns an
// error because singularity is data-dependent.
type Backend interface {
	// MatMul computes the matrix product of two 2-D tensors.
	MatMul(a, b *Dense) *Dense

	// SVD computes a singular value decomposition a = U diag(S) Vh.
	// With fullMatrices, U is (m, m) and Vh is (n, n); otherwise both are
	// truncated to min(m, n). S is 1-D in non-increasing order.
	SVD(a *Dense, fullMatrices bool) (u, s, vh *Dense)

	// SVDValues computes only the singular values of a, non-increasing.
	SVDValues(a *Dense) *Dense

	// QR computes the thin QR factorization a = Q R.
	QR(a *Dense) (q, r *Dense)

	// Eigh computes the eigendecomposition of a symmetric matrix.
	// Eigenvalues are returned in ascending order; vectors holds the
	// corresponding eigenvectors as columns.
	Eigh(a *Dense) (values, vectors *Dense)

	// Eig computes the eigendecomposition of a general square matrix.
	// values has length n; vectors is row-major n x n with eigenvectors
	// as columns.
	Eig(a *Dense) (values, vectors []complex128)

	// Solve solves the linear system a x = b for x.
	Solve(a, b *Dense) (*Dense, error)

	// Exp computes the matrix exponential of a square matrix.
	Exp(a *Dense) *Dense

	// Name returns the backend name (e.g. "CPU").
	Name() string
}
