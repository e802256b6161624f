// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package decomp

import (
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

// ParafacCallback is invoked once after initialization and once per ALS
// iteration with the current decomposition, the sparse component (nil unless
// Sparsity is set) and the current relative reconstruction error. Returning
// true stops the iteration.
type ParafacCallback func(cp *CPTensor, sparse *tensor.Dense, recError float64) bool

// ParafacOptions configures the CP-ALS engines. Use DefaultParafacOptions
// and override fields as needed.
type ParafacOptions struct {
	// NIterMax bounds the number of ALS iterations.
	NIterMax int

	// Init selects the initialization scheme (InitSVD or InitRandom).
	// InitTensor, when non-nil, is used directly instead; its weights are
	// absorbed into the factors.
	Init       string
	InitTensor *CPTensor

	// SVDMethod names the SVD routine used for initialization; the empty
	// string uses truncated SVD.
	SVDMethod string

	// NormalizeFactors renormalizes the factor columns after every
	// iteration, aggregating the norms in the weight vector.
	NormalizeFactors bool

	// Orthogonalise, when positive, orthogonalises the factors by QR during
	// the first Orthogonalise iterations.
	Orthogonalise int

	// Tol is the reconstruction-error variation threshold; zero disables
	// the convergence check.
	Tol float64

	// Seed drives random initialization.
	Seed int64

	// Verbose logs per-iteration errors through the package logger.
	Verbose bool

	// Sparsity, when positive, models the tensor as a low-rank component
	// plus a sparse component with the given fraction (< 1) or count (>= 1)
	// of non-zero entries.
	Sparsity float64

	// L2Reg adds an l2 (ridge) penalty to the least-squares subproblems.
	L2Reg float64

	// Mask marks missing entries of the tensor (0 missing, 1 observed).
	// SVDMaskRepeats controls imputation rounds during SVD initialization.
	Mask           *tensor.Dense
	SVDMaskRepeats int

	// CvgCriterion selects the stopping rule: CvgAbsRecError (default)
	// stops when |variation| < Tol, CvgRecError when variation < Tol.
	CvgCriterion string

	// FixedModes lists modes whose factors are not updated. The last mode
	// cannot be fixed.
	FixedModes []int

	// Linesearch enables the extrapolation scheme of Bro, jumping ahead
	// along the update direction every other iteration.
	Linesearch bool

	// NonNegative makes the initialization non-negative.
	NonNegative bool

	Callback ParafacCallback
}

// DefaultParafacOptions returns the standard engine settings.
func DefaultParafacOptions() ParafacOptions {
	return ParafacOptions{
		NIterMax:       100,
		Init:           InitSVD,
		Tol:            1e-8,
		CvgCriterion:   CvgAbsRecError,
		SVDMaskRepeats: 5,
	}
}

// InitializeCP builds the starting factors for a CP decomposition of x.
// With SVD initialization, factor m holds the rank leading left singular
// vectors of the mode-m unfolding, with the singular values folded into the
// first factor so the initialization matches the tensor's scale. Modes
// smaller than the rank are padded with random columns.
func InitializeCP(bk tensor.Backend, x *tensor.Dense, rank int, opts ParafacOptions) (*CPTensor, error) {
	var cp *CPTensor

	switch {
	case opts.InitTensor != nil:
		if opts.NormalizeFactors {
			logger.Warn("it is not recommended to initialize a tensor with normalizing; " +
				"consider normalizing the tensor before using this function")
		}
		init := opts.InitTensor.Clone()
		allOnes := true
		for _, w := range init.Weights.Data() {
			if w != 1 {
				allOnes = false
				break
			}
		}
		if !allOnes {
			// Spread the weights evenly across the factors.
			prod := 1.0
			wd := init.Weights.Data()
			for _, w := range wd {
				prod *= w
			}
			avg := math.Pow(prod, 1.0/float64(len(wd)))
			for i, f := range init.Factors {
				init.Factors[i] = tensor.Scale(f, avg)
			}
		}
		cp = &CPTensor{Weights: tensor.Ones(tensor.Shape{init.Rank()}), Factors: init.Factors}
		return cp, nil

	case opts.Init == InitRandom:
		rng := rand.New(rand.NewSource(opts.Seed))
		cp = RandomCP(x.Shape(), rank, rng, false)

	case opts.Init == InitSVD || opts.Init == "":
		rng := rand.New(rand.NewSource(opts.Seed))
		factors := make([]*tensor.Dense, x.NDim())
		for mode := 0; mode < x.NDim(); mode++ {
			svdOpts := tenalg.DefaultSVDOptions()
			svdOpts.Method = opts.SVDMethod
			svdOpts.NEigenvecs = rank
			svdOpts.NonNegative = opts.NonNegative
			if opts.Mask != nil {
				svdOpts.Mask = tensor.Unfold(opts.Mask, mode)
				svdOpts.MaskRepeats = opts.SVDMaskRepeats
			}
			u, s, _, err := tenalg.SVDInterface(bk, tensor.Unfold(x, mode), svdOpts)
			if err != nil {
				return nil, err
			}

			// Put the SVD initialization on the same scaling as the tensor
			// in case the factors are not normalized afterwards.
			if mode == 0 {
				u = u.Clone()
				sd := s.Data()
				idx := min(rank, len(sd))
				ud := u.Data()
				cols := u.Shape()[1]
				for r := 0; r < u.Shape()[0]; r++ {
					for c := 0; c < idx && c < cols; c++ {
						ud[r*cols+c] *= sd[c]
					}
				}
			}

			if x.Shape()[mode] < rank {
				randomPart := tensor.Rand(tensor.Shape{u.Shape()[0], rank - x.Shape()[mode]}, rng)
				u = tensor.Concat([]*tensor.Dense{u, randomPart}, 1)
			}
			factors[mode] = firstColumns(u, rank)
		}
		cp = &CPTensor{Weights: tensor.Ones(tensor.Shape{rank}), Factors: factors}

	default:
		return nil, invalidArgf("initialization method %q not recognized", opts.Init)
	}

	if opts.NonNegative {
		for i, f := range cp.Factors {
			cp.Factors[i] = tensor.Abs(f)
		}
	}
	if opts.NormalizeFactors {
		cp = cp.Normalize()
	}
	return cp, nil
}

// errorCalc computes the unnormalized reconstruction error. When a mask is
// in play or no MTTKRP is available the full tensor is reconstructed;
// otherwise the error follows from the norm identity
// ||x - rec||^2 = ||x||^2 + ||rec||^2 - 2<x, rec> using the MTTKRP of the
// last mode. The possibly mask-updated tensor and its norm are returned.
func errorCalc(bk tensor.Backend, x *tensor.Dense, normX float64, cp *CPTensor, sparsityCard int, mask, mttkrp *tensor.Dense) (float64, *tensor.Dense, float64, error) {
	if mask != nil || mttkrp == nil {
		lowRank, err := cp.ToTensor(bk)
		if err != nil {
			return 0, nil, 0, err
		}
		if mask != nil {
			x = blendMasked(x, lowRank, mask)
			normX = tensor.Norm(x)
		}
		residual := tensor.Sub(x, lowRank)
		if sparsityCard > 0 {
			residual = tensor.Sub(residual, SparsifyTensor(residual, sparsityCard))
		}
		return tensor.Norm(residual), x, normX, nil
	}

	if sparsityCard > 0 {
		lowRank, err := cp.ToTensor(bk)
		if err != nil {
			return 0, nil, 0, err
		}
		residual := tensor.Sub(x, lowRank)
		residual = tensor.Sub(residual, SparsifyTensor(residual, sparsityCard))
		return tensor.Norm(residual), x, normX, nil
	}

	factorsNorm := cp.Norm(bk)
	// The MTTKRP against the last factor equals the inner product of the
	// tensor with its reconstruction.
	var iprod float64
	md, fd := mttkrp.Data(), cp.Factors[len(cp.Factors)-1].Data()
	for i := range md {
		iprod += md[i] * fd[i]
	}
	unnorml := math.Sqrt(math.Abs(normX*normX + factorsNorm*factorsNorm - 2*iprod))
	return unnorml, x, normX, nil
}

// Parafac computes a rank-`rank` CANDECOMP/PARAFAC decomposition of x via
// alternating least squares, so that x ~ [|weights; factors[0], ...,
// factors[N-1]|]. It returns the decomposition, the sparse component (nil
// unless Sparsity is set) and the relative reconstruction error of each
// iteration.
func Parafac(bk tensor.Backend, x *tensor.Dense, rank int, opts ParafacOptions) (*CPTensor, *tensor.Dense, []float64, error) {
	rank = ValidateCPRank(x.Shape(), rank)

	accPow := 2.0 // extrapolate to the iteration^(1/accPow) ahead
	accFail := 0  // consecutive line-search failures
	const maxFail = 4

	cp, err := InitializeCP(bk, x, rank, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	weights, factors := cp.Weights, cp.Factors

	var recErrors []float64
	normX := tensor.Norm(x)

	fixed := make(map[int]bool, len(opts.FixedModes))
	for _, m := range opts.FixedModes {
		fixed[m] = true
	}
	// Every mode fixed: nothing to optimize, hand the initialization back.
	// This must precede the last-mode downgrade below.
	if len(fixed) == x.NDim() {
		return &CPTensor{Weights: weights, Factors: factors}, nil, nil, nil
	}
	if fixed[x.NDim()-1] {
		logger.Warn("fixing the last mode is not supported due to the error computation; " +
			"it will be updated like any other mode")
		delete(fixed, x.NDim()-1)
	}
	var modesList []int
	for mode := 0; mode < x.NDim(); mode++ {
		if !fixed[mode] {
			modesList = append(modesList, mode)
		}
	}

	sparsityCard := 0
	if opts.Sparsity > 0 {
		if opts.Sparsity < 1 {
			sparsityCard = int(opts.Sparsity * float64(x.NumElements()))
		} else {
			sparsityCard = int(opts.Sparsity)
		}
	}

	if opts.Callback != nil {
		unnorml, _, newNorm, err := errorCalc(bk, x, normX, &CPTensor{Weights: weights, Factors: factors}, sparsityCard, opts.Mask, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		normX = newNorm
		sparse, err := sparseComponent(bk, x, weights, factors, sparsityCard)
		if err != nil {
			return nil, nil, nil, err
		}
		opts.Callback(&CPTensor{Weights: weights, Factors: factors}, sparse, unnorml/normX)
	}

	var (
		unnorml  float64
		recError float64
		mttkrp   *tensor.Dense
	)
	for iteration := 0; iteration < opts.NIterMax; iteration++ {
		if opts.Orthogonalise > 0 && iteration <= opts.Orthogonalise {
			for i, f := range factors {
				if min(f.Shape()[0], f.Shape()[1]) >= rank {
					q, _ := bk.QR(f)
					factors[i] = q
				}
			}
		}

		var factorsLast []*tensor.Dense
		var weightsLast *tensor.Dense
		if opts.Linesearch && iteration%2 == 0 {
			factorsLast = make([]*tensor.Dense, len(factors))
			for i, f := range factors {
				factorsLast[i] = f.Clone()
			}
			weightsLast = weights.Clone()
		}

		if opts.Verbose {
			logger.Info("starting ALS iteration", zap.Int("iteration", iteration+1))
		}
		for _, mode := range modesList {
			pseudoInverse := tensor.Ones(tensor.Shape{rank, rank})
			for i, factor := range factors {
				if i != mode {
					pseudoInverse = tensor.Mul(pseudoInverse, bk.MatMul(factor.T(), factor))
				}
			}
			if opts.L2Reg > 0 {
				pd := pseudoInverse.Data()
				for i := 0; i < rank; i++ {
					pd[i*rank+i] += opts.L2Reg
				}
			}
			pseudoInverse = scaleColumns(pseudoInverse, weights.Data())
			pseudoInverse = scaleRows(pseudoInverse, weights.Data())

			mttkrp, err = UnfoldingDotKhatriRao(bk, x, &CPTensor{Weights: weights, Factors: factors}, mode)
			if err != nil {
				return nil, nil, nil, err
			}

			solved, err := bk.Solve(pseudoInverse.T(), mttkrp.T())
			if err != nil {
				return nil, nil, nil, err
			}
			factors[mode] = solved.T()
		}

		lineIter := opts.Linesearch && iteration%2 == 0 && iteration > 5

		if !lineIter {
			unnorml, x, normX, err = errorCalc(bk, x, normX,
				&CPTensor{Weights: weights, Factors: factors}, sparsityCard, opts.Mask, mttkrp)
			if err != nil {
				return nil, nil, nil, err
			}
		} else if opts.Mask != nil {
			lowRank, err := (&CPTensor{Weights: weights, Factors: factors}).ToTensor(bk)
			if err != nil {
				return nil, nil, nil, err
			}
			x = blendMasked(x, lowRank, opts.Mask)
		}

		if lineIter {
			jump := math.Pow(float64(iteration), 1.0/accPow)

			newWeights := extrapolate(weightsLast, weights, jump)
			newFactors := make([]*tensor.Dense, len(factors))
			for i := range factors {
				newFactors[i] = extrapolate(factorsLast[i], factors[i], jump)
			}

			newRecError, newTensor, newNorm, err := errorCalc(bk, x, normX,
				&CPTensor{Weights: newWeights, Factors: newFactors}, sparsityCard, opts.Mask, nil)
			if err != nil {
				return nil, nil, nil, err
			}

			if len(recErrors) > 0 && newRecError/newNorm < recErrors[len(recErrors)-1] {
				factors, weights = newFactors, newWeights
				x, normX = newTensor, newNorm
				unnorml = newRecError
				accFail = 0
				if opts.Verbose {
					logger.Info("accepted line search jump", zap.Float64("jump", jump))
				}
			} else {
				unnorml, _, normX, err = errorCalc(bk, x, normX,
					&CPTensor{Weights: weights, Factors: factors}, sparsityCard, opts.Mask, mttkrp)
				if err != nil {
					return nil, nil, nil, err
				}
				accFail++
				if opts.Verbose {
					logger.Info("line search failed", zap.Float64("jump", jump))
				}
				if accFail == maxFail {
					accPow++
					accFail = 0
					if opts.Verbose {
						logger.Info("reducing line search acceleration")
					}
				}
			}
		}

		if !lineIter {
			recError = unnorml / normX
			recErrors = append(recErrors, recError)
		}

		if opts.Callback != nil {
			sparse, err := sparseComponent(bk, x, weights, factors, sparsityCard)
			if err != nil {
				return nil, nil, nil, err
			}
			if opts.Callback(&CPTensor{Weights: weights, Factors: factors}, sparse, recError) {
				if opts.Verbose {
					logger.Info("stopping on callback request")
				}
				break
			}
		}

		if opts.Tol > 0 {
			if iteration >= 1 && len(recErrors) >= 2 {
				decrease := recErrors[len(recErrors)-2] - recErrors[len(recErrors)-1]
				if opts.Verbose {
					logger.Info("ALS iteration",
						zap.Int("iteration", iteration),
						zap.Float64("reconstruction_error", recError),
						zap.Float64("decrease", decrease),
						zap.Float64("unnormalized", unnorml))
				}

				var stop bool
				switch opts.CvgCriterion {
				case CvgAbsRecError, "":
					stop = math.Abs(decrease) < opts.Tol
				case CvgRecError:
					stop = decrease < opts.Tol
				default:
					return nil, nil, nil, invalidArgf("unknown convergence criterion %q", opts.CvgCriterion)
				}
				if stop {
					if opts.Verbose {
						logger.Info("PARAFAC converged", zap.Int("iterations", iteration))
					}
					break
				}
			} else if opts.Verbose && len(recErrors) > 0 {
				logger.Info("ALS iteration",
					zap.Float64("reconstruction_error", recErrors[len(recErrors)-1]))
			}
		}

		if opts.NormalizeFactors {
			normalized := (&CPTensor{Weights: weights, Factors: factors}).Normalize()
			weights, factors = normalized.Weights, normalized.Factors
		}
	}

	result := &CPTensor{Weights: weights, Factors: factors}
	sparse, err := sparseComponent(bk, x, weights, factors, sparsityCard)
	if err != nil {
		return nil, nil, nil, err
	}
	return result, sparse, recErrors, nil
}

// sparseComponent extracts the sparse residual component, or nil when the
// sparse model is disabled.
func sparseComponent(bk tensor.Backend, x *tensor.Dense, weights *tensor.Dense, factors []*tensor.Dense, card int) (*tensor.Dense, error) {
	if card <= 0 {
		return nil, nil
	}
	lowRank, err := (&CPTensor{Weights: weights, Factors: factors}).ToTensor(bk)
	if err != nil {
		return nil, err
	}
	return SparsifyTensor(tensor.Sub(x, lowRank), card), nil
}

// extrapolate computes prev + (cur - prev) * jump.
func extrapolate(prev, cur *tensor.Dense, jump float64) *tensor.Dense {
	out := prev.Clone()
	od, cd := out.Data(), cur.Data()
	for i := range od {
		od[i] += (cd[i] - od[i]) * jump
	}
	return out
}

// firstColumns returns the first n columns of a matrix.
func firstColumns(m *tensor.Dense, n int) *tensor.Dense {
	s := m.Shape()
	if n >= s[1] {
		return m
	}
	out := tensor.Zeros(tensor.Shape{s[0], n})
	for i := 0; i < s[0]; i++ {
		copy(out.Data()[i*n:(i+1)*n], m.Data()[i*s[1]:i*s[1]+n])
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
