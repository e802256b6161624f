package tenalg

import (
	"math"

	"go.uber.org/zap"

	"github.com/facto-ml/facto/tensor"
)

// SVDTruncated names the default SVD method accepted by SVDInterface.
const SVDTruncated = "truncated_svd"

// svdChecks clamps the requested number of eigenvectors to the matrix
// dimensions. n <= 0 requests the maximum dimension.
func svdChecks(x *tensor.Dense, nEigenvecs int) (n, minDim, maxDim int) {
	s := x.Shape()
	dim1, dim2 := s[len(s)-2], s[len(s)-1]
	minDim, maxDim = min(dim1, dim2), max(dim1, dim2)

	if nEigenvecs <= 0 {
		nEigenvecs = maxDim
	}
	if nEigenvecs > maxDim {
		logger.Warn("n_eigenvecs larger than the largest matrix dimension; clamping",
			zap.Int("n_eigenvecs", nEigenvecs), zap.Int("max_dim", maxDim))
		nEigenvecs = maxDim
	}
	return nEigenvecs, minDim, maxDim
}

// TruncatedSVD computes a truncated SVD of a matrix using the backend's
// standard SVD, keeping the first nEigenvecs singular triplets. nEigenvecs
// <= 0 keeps everything; values above the largest matrix dimension are
// clamped with a warning. With computeUV false only the singular values are
// computed and u, vh are nil.
func TruncatedSVD(bk tensor.Backend, x *tensor.Dense, computeUV bool, nEigenvecs int) (u, s, vh *tensor.Dense) {
	n, minDim, _ := svdChecks(x, nEigenvecs)
	fullMatrices := n > minDim

	if !computeUV {
		return nil, sliceVec(bk.SVDValues(x), n), nil
	}
	u, s, vh = bk.SVD(x, fullMatrices)
	return sliceCols(u, n), sliceVec(s, n), sliceRows(vh, n)
}

// SVDFlip applies a deterministic sign correction to an SVD factor pair so
// the output does not depend on solver-specific sign conventions. With
// uBasedDecision the columns of u whose largest-magnitude entry is negative
// are negated (together with the matching rows of v); otherwise the rows of
// v drive the decision.
func SVDFlip(u, v *tensor.Dense, uBasedDecision bool) (*tensor.Dense, *tensor.Dense) {
	ur, uc := u.Shape()[0], u.Shape()[1]
	vr, vc := v.Shape()[0], v.Shape()[1]
	uOut, vOut := u.Clone(), v.Clone()
	ud, vd := uOut.Data(), vOut.Data()

	if uBasedDecision {
		// Columns of U, rows of V.
		signs := make([]float64, uc)
		for j := 0; j < uc; j++ {
			maxAbs, sign := -1.0, 1.0
			for i := 0; i < ur; i++ {
				if a := math.Abs(ud[i*uc+j]); a > maxAbs {
					maxAbs = a
					sign = sgn(ud[i*uc+j])
				}
			}
			signs[j] = sign
			for i := 0; i < ur; i++ {
				ud[i*uc+j] *= sign
			}
		}
		for i := 0; i < vr; i++ {
			s := 1.0
			if i < len(signs) {
				s = signs[i]
			}
			for j := 0; j < vc; j++ {
				vd[i*vc+j] *= s
			}
		}
	} else {
		// Rows of V, columns of U.
		signs := make([]float64, vr)
		for i := 0; i < vr; i++ {
			maxAbs, sign := -1.0, 1.0
			for j := 0; j < vc; j++ {
				if a := math.Abs(vd[i*vc+j]); a > maxAbs {
					maxAbs = a
					sign = sgn(vd[i*vc+j])
				}
			}
			signs[i] = sign
			for j := 0; j < vc; j++ {
				vd[i*vc+j] *= sign
			}
		}
		for j := 0; j < uc; j++ {
			s := 1.0
			if j < len(signs) {
				s = signs[j]
			}
			for i := 0; i < ur; i++ {
				ud[i*uc+j] *= s
			}
		}
	}
	return uOut, vOut
}

func sgn(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// Valid nntype values for MakeSVDNonNegative.
const (
	NNDSVD  = "nndsvd"  // zero-fill small values
	NNDSVDA = "nndsvda" // fill small values with the tensor mean
)

// MakeSVDNonNegative transforms an SVD of x into a non-negative pair (W, H)
// using the NNDSVD method of Boutsidis & Gallopoulos (2008). u, s, vh are
// the factors returned by TruncatedSVD. nntype selects how small values are
// filled in afterwards; the empty string defaults to NNDSVD.
func MakeSVDNonNegative(x, u, s, vh *tensor.Dense, nntype string) (*tensor.Dense, *tensor.Dense, error) {
	if nntype == "" {
		nntype = NNDSVD
	}
	if nntype != NNDSVD && nntype != NNDSVDA {
		return nil, nil, invalidArgf("invalid nntype parameter: got %q instead of one of (%q, %q)",
			nntype, NNDSVD, NNDSVDA)
	}

	ur, uc := u.Shape()[0], u.Shape()[1]
	vr, vc := vh.Shape()[0], vh.Shape()[1]
	w := tensor.Zeros(tensor.Shape{ur, uc})
	h := tensor.Zeros(tensor.Shape{vr, vc})
	ud, vd, wd, hd := u.Data(), vh.Data(), w.Data(), h.Data()
	sd := s.Data()

	// The leading singular triplet is non-negative, so it can be used as is.
	s0 := math.Sqrt(sd[0])
	for i := 0; i < ur; i++ {
		wd[i*uc] = s0 * math.Abs(ud[i*uc])
	}
	for j := 0; j < vc; j++ {
		hd[j] = s0 * math.Abs(vd[j])
	}

	for j := 1; j < len(sd); j++ {
		// Positive and negative parts of the j-th singular pair, with norms.
		var apNrm, anNrm, bpNrm, bnNrm float64
		for i := 0; i < ur; i++ {
			v := ud[i*uc+j]
			if v >= 0 {
				apNrm += v * v
			} else {
				anNrm += v * v
			}
		}
		for c := 0; c < vc; c++ {
			v := vd[j*vc+c]
			if v >= 0 {
				bpNrm += v * v
			} else {
				bnNrm += v * v
			}
		}
		apNrm, anNrm = math.Sqrt(apNrm), math.Sqrt(anNrm)
		bpNrm, bnNrm = math.Sqrt(bpNrm), math.Sqrt(bnNrm)

		mp, mn := apNrm*bpNrm, anNrm*bnNrm

		// Keep whichever pairing carries more energy.
		positive := mp > mn
		var uNrm, vNrm, sigma float64
		if positive {
			uNrm, vNrm, sigma = apNrm, bpNrm, mp
		} else {
			uNrm, vNrm, sigma = anNrm, bnNrm, mn
		}
		lbd := math.Sqrt(sd[j] * sigma)

		for i := 0; i < ur; i++ {
			v := ud[i*uc+j]
			switch {
			case positive && v >= 0:
				wd[i*uc+j] = lbd * v / uNrm
			case !positive && v < 0:
				wd[i*uc+j] = lbd * -v / uNrm
			}
		}
		for c := 0; c < vc; c++ {
			v := vd[j*vc+c]
			switch {
			case positive && v >= 0:
				hd[j*vc+c] = lbd * v / vNrm
			case !positive && v < 0:
				hd[j*vc+c] = lbd * -v / vNrm
			}
		}
	}

	const eps = 2.220446049250313e-16
	switch nntype {
	case NNDSVD:
		zeroSmall(wd, eps)
		zeroSmall(hd, eps)
	case NNDSVDA:
		avg := tensor.Mean(x)
		fillSmall(wd, eps, avg)
		fillSmall(hd, eps, avg)
	}
	return w, h, nil
}

func zeroSmall(d []float64, eps float64) {
	for i, v := range d {
		if v < eps {
			d[i] = 0
		}
	}
}

func fillSmall(d []float64, eps, fill float64) {
	for i, v := range d {
		if v < eps {
			d[i] = fill
		}
	}
}

// SVDFunc is the signature SVDInterface accepts for custom SVD methods,
// matching TruncatedSVD.
type SVDFunc func(bk tensor.Backend, x *tensor.Dense, computeUV bool, nEigenvecs int) (u, s, vh *tensor.Dense)

// SVDOptions configures SVDInterface.
type SVDOptions struct {
	// Method selects the SVD routine by name. Only SVDTruncated is known;
	// the empty string defaults to it. Fn, when non-nil, overrides Method.
	Method string
	Fn     SVDFunc

	// NEigenvecs is the number of singular triplets to keep (<= 0 keeps
	// everything).
	NEigenvecs int

	// FlipSign applies SVDFlip to the result; UBasedFlipSign selects the
	// flip basis.
	FlipSign       bool
	UBasedFlipSign bool

	// NonNegative post-processes the factors with MakeSVDNonNegative using
	// NNType.
	NonNegative bool
	NNType      string

	// Mask marks missing entries of the matrix (0 missing, 1 observed).
	// When set together with NEigenvecs, the missing entries are imputed by
	// MaskRepeats rounds of SVD reconstruction blending.
	Mask        *tensor.Dense
	MaskRepeats int
}

// DefaultSVDOptions returns the options used by the decomposition engines:
// truncated SVD, u-based sign flipping, 5 mask-imputation rounds.
func DefaultSVDOptions() SVDOptions {
	return SVDOptions{
		Method:         SVDTruncated,
		FlipSign:       true,
		UBasedFlipSign: true,
		MaskRepeats:    5,
	}
}

// SVDInterface is the orchestration entry point the decomposition engines
// use for every SVD: it dispatches to the configured method, optionally
// imputes masked entries, then applies sign flipping and the non-negative
// transform.
func SVDInterface(bk tensor.Backend, matrix *tensor.Dense, opts SVDOptions) (u, s, vh *tensor.Dense, err error) {
	svdFun := opts.Fn
	if svdFun == nil {
		switch opts.Method {
		case "", SVDTruncated:
			svdFun = TruncatedSVD
		default:
			return nil, nil, nil, invalidArgf("unknown SVD method %q", opts.Method)
		}
	}

	u, s, vh = svdFun(bk, matrix, true, opts.NEigenvecs)

	if opts.Mask != nil && opts.NEigenvecs > 0 {
		if !opts.Mask.Shape().Equal(matrix.Shape()) {
			return nil, nil, nil, shapeErrorf("mask shape %v does not match matrix shape %v",
				opts.Mask.Shape(), matrix.Shape())
		}
		repeats := opts.MaskRepeats
		for range repeats {
			approx := bk.MatMul(bk.MatMul(u, diagMatrix(s, u.Shape()[1], vh.Shape()[0])), vh)
			matrix = blend(matrix, approx, opts.Mask)
			u, s, vh = svdFun(bk, matrix, true, opts.NEigenvecs)
		}
	}

	if opts.FlipSign {
		u, vh = SVDFlip(u, vh, opts.UBasedFlipSign)
	}

	if opts.NonNegative {
		u, vh, err = MakeSVDNonNegative(matrix, u, s, vh, opts.NNType)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return u, s, vh, nil
}

// diagMatrix builds an r x c matrix with s on the main diagonal.
func diagMatrix(s *tensor.Dense, r, c int) *tensor.Dense {
	out := tensor.Zeros(tensor.Shape{r, c})
	d := out.Data()
	sd := s.Data()
	for i := 0; i < r && i < c && i < len(sd); i++ {
		d[i*c+i] = sd[i]
	}
	return out
}

// blend combines observed entries of x with reconstructed entries where the
// mask marks values missing: x*mask + approx*(1-mask).
func blend(x, approx, mask *tensor.Dense) *tensor.Dense {
	out := x.Clone()
	od, ad, md := out.Data(), approx.Data(), mask.Data()
	for i := range od {
		od[i] = od[i]*md[i] + ad[i]*(1-md[i])
	}
	return out
}
