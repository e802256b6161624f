// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package decomp

import (
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/facto-ml/facto/tensor"
)

// sampleKhatriRao computes a random row subsample of the Khatri-Rao product
// of the given matrices. indicesList gives, per matrix, the row indices to
// sample; when nil, nSamples indices are drawn uniformly per matrix from
// rng. skipMatrix (when >= 0) names a matrix to leave out. It returns the
// sampled product of shape (nSamples, rank) and the indices used.
func sampleKhatriRao(matrices []*tensor.Dense, nSamples, skipMatrix int, indicesList [][]int, rng *rand.Rand) (*tensor.Dense, [][]int, error) {
	ms := make([]*tensor.Dense, 0, len(matrices))
	for i, m := range matrices {
		if i != skipMatrix {
			ms = append(ms, m)
		}
	}
	if len(ms) == 0 {
		return nil, nil, invalidArgf("sampled khatri-rao of an empty matrix list")
	}

	rank := ms[0].Shape()[1]
	if indicesList == nil {
		if rng == nil {
			logger.Warn("creating a new random number generator at each call; " +
				"pass one in to avoid this inside loops")
			rng = rand.New(rand.NewSource(0))
		}
		indicesList = make([][]int, len(ms))
		for i, m := range ms {
			rows := m.Shape()[0]
			idx := make([]int, nSamples)
			for s := range idx {
				idx[s] = rng.Intn(rows)
			}
			indicesList[i] = idx
		}
	}
	if len(indicesList) != len(ms) {
		return nil, nil, shapeErrorf("got %d index lists for %d matrices", len(indicesList), len(ms))
	}

	sampled := tensor.Ones(tensor.Shape{nSamples, rank})
	sd := sampled.Data()
	for i, m := range ms {
		md := m.Data()
		for s, row := range indicesList[i] {
			for c := 0; c < rank; c++ {
				sd[s*rank+c] *= md[row*rank+c]
			}
		}
	}
	return sampled, indicesList, nil
}

// sampledUnfolding gathers the fibers of x along the given mode at the
// sampled coordinates: row s of the result is x[..., :, ...] with every
// other mode fixed to its s-th sampled index. The result has shape
// (nSamples, x.Shape()[mode]).
func sampledUnfolding(x *tensor.Dense, mode int, indicesList [][]int) *tensor.Dense {
	shape := x.Shape()
	strides := x.Strides()
	nSamples := len(indicesList[0])

	out := tensor.Zeros(tensor.Shape{nSamples, shape[mode]})
	od, xd := out.Data(), x.Data()
	for s := 0; s < nSamples; s++ {
		base := 0
		li := 0
		for d := 0; d < len(shape); d++ {
			if d == mode {
				continue
			}
			base += indicesList[li][s] * strides[d]
			li++
		}
		for k := 0; k < shape[mode]; k++ {
			od[s*shape[mode]+k] = xd[base+k*strides[mode]]
		}
	}
	return out
}

// RandomisedCallback is invoked once after initialization and once per
// iteration; returning true stops the iteration.
type RandomisedCallback func(cp *CPTensor, recError float64) bool

// RandomisedOptions configures RandomisedParafac.
type RandomisedOptions struct {
	// NIterMax bounds the number of sampled-ALS iterations.
	NIterMax int

	// Init selects the initialization scheme; SVDMethod the SVD routine.
	Init      string
	SVDMethod string

	// MaxStagnation is the number of iterations without a new error minimum
	// tolerated before stopping. The check is active whenever error tracking
	// is on (Tol or MaxStagnation set).
	MaxStagnation int

	// Tol is the reconstruction-error variation threshold; zero disables
	// the convergence check.
	Tol float64

	// Seed drives both initialization and row sampling.
	Seed int64

	// Verbose logs per-iteration errors through the package logger.
	Verbose bool

	Callback RandomisedCallback
}

// DefaultRandomisedOptions returns the standard engine settings.
func DefaultRandomisedOptions() RandomisedOptions {
	return RandomisedOptions{
		NIterMax: 100,
		Init:     InitSVD,
		Tol:      1e-8,
	}
}

// RandomisedParafac computes a CP decomposition of x via sampled
// alternating least squares: each least-squares subproblem is solved on
// nSamples randomly sampled rows of the Khatri-Rao product instead of the
// full matricised tensor. It returns the decomposition and the relative
// reconstruction error of each iteration.
func RandomisedParafac(bk tensor.Backend, x *tensor.Dense, rank, nSamples int, opts RandomisedOptions) (*CPTensor, []float64, error) {
	rank = ValidateCPRank(x.Shape(), rank)

	initOpts := DefaultParafacOptions()
	initOpts.Init = opts.Init
	initOpts.SVDMethod = opts.SVDMethod
	initOpts.Seed = opts.Seed
	cp, err := InitializeCP(bk, x, rank, initOpts)
	if err != nil {
		return nil, nil, err
	}
	weights := tensor.Ones(tensor.Shape{rank})
	factors := cp.Factors

	var recErrors []float64
	normX := tensor.Norm(x)
	minError := 0.0
	stagnation := 0
	rng := rand.New(rand.NewSource(opts.Seed))

	relError := func() (float64, error) {
		full, err := (&CPTensor{Weights: weights, Factors: factors}).ToTensor(bk)
		if err != nil {
			return 0, err
		}
		return tensor.Norm(tensor.Sub(x, full)) / normX, nil
	}

	if opts.Callback != nil {
		recError, err := relError()
		if err != nil {
			return nil, nil, err
		}
		opts.Callback(&CPTensor{Weights: weights, Factors: factors}, recError)
	}

	track := opts.MaxStagnation > 0 || opts.Tol > 0 || opts.Callback != nil
	for iteration := 0; iteration < opts.NIterMax; iteration++ {
		for mode := 0; mode < x.NDim(); mode++ {
			krProd, indices, err := sampleKhatriRao(factors, nSamples, mode, nil, rng)
			if err != nil {
				return nil, nil, err
			}
			unfolding := sampledUnfolding(x, mode, indices)

			pseudoInverse := bk.MatMul(krProd.T(), krProd)
			rhs := bk.MatMul(krProd.T(), unfolding)
			solved, err := bk.Solve(pseudoInverse, rhs)
			if err != nil {
				return nil, nil, err
			}
			factors[mode] = solved.T()
		}

		var recError float64
		if track {
			recError, err = relError()
			if err != nil {
				return nil, nil, err
			}
		}

		if opts.Callback != nil {
			if opts.Callback(&CPTensor{Weights: weights, Factors: factors}, recError) {
				if opts.Verbose {
					logger.Info("stopping on callback request")
				}
				break
			}
		}

		if opts.MaxStagnation > 0 || opts.Tol > 0 {
			if minError == 0 || recError < minError {
				minError = recError
				stagnation = -1
			}
			stagnation++

			recErrors = append(recErrors, recError)

			if iteration > 1 {
				variation := recErrors[len(recErrors)-2] - recErrors[len(recErrors)-1]
				if opts.Verbose {
					logger.Info("sampled ALS iteration",
						zap.Int("iteration", iteration),
						zap.Float64("reconstruction_error", recError),
						zap.Float64("variation", variation))
				}
				if (opts.Tol > 0 && math.Abs(variation) < opts.Tol) ||
					(stagnation > 0 && stagnation > opts.MaxStagnation) {
					if opts.Verbose {
						logger.Info("converged", zap.Int("iterations", iteration))
					}
					break
				}
			}
		}
	}
	return &CPTensor{Weights: weights, Factors: factors}, recErrors, nil
}
