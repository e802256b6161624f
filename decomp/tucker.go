// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package decomp

import (
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

// TuckerOptions configures the Tucker decomposition engines. Use
// DefaultTuckerOptions and override fields as needed.
type TuckerOptions struct {
	// NIterMax bounds the number of HOOI sweeps.
	NIterMax int

	// Init selects the initialization scheme (InitSVD or InitRandom).
	// InitTensor, when non-nil, is used directly instead.
	Init       string
	InitTensor *TuckerTensor

	// SVDMethod names the SVD routine used for initialization and factor
	// updates; the empty string uses truncated SVD.
	SVDMethod string

	// Seed drives random initialization.
	Seed int64

	// Mask marks missing entries of the tensor (0 missing, 1 observed).
	// Missing values are imputed from the running reconstruction.
	// SVDMaskRepeats controls imputation rounds during SVD initialization.
	Mask           *tensor.Dense
	SVDMaskRepeats int

	// Tol stops the iteration when the reconstruction-error variation drops
	// below it; zero disables the check.
	Tol float64

	// Verbose logs per-iteration errors through the package logger.
	Verbose bool

	// NonNegative makes the initialization non-negative.
	NonNegative bool

	// FixedFactors lists modes whose factors are kept fixed. Requires
	// InitTensor. Only honored by Tucker.
	FixedFactors []int
}

// DefaultTuckerOptions returns the standard engine settings.
func DefaultTuckerOptions() TuckerOptions {
	return TuckerOptions{
		NIterMax:       100,
		Init:           InitSVD,
		SVDMaskRepeats: 5,
		Tol:            1e-4,
	}
}

// InitializeTucker builds the starting core and factors for a Tucker
// decomposition of x along the given modes. With SVD initialization, factor
// m holds the rank[m] leading left singular vectors of the mode-m unfolding;
// random initialization draws factors uniformly.
func InitializeTucker(bk tensor.Backend, x *tensor.Dense, rank []int, modes []int, opts TuckerOptions) (*TuckerTensor, error) {
	if x.NDim() < 2 {
		return nil, shapeErrorf("expected x to have at least 2 dimensions but it has only %d", x.NDim())
	}
	if len(rank) != len(modes) {
		return nil, shapeErrorf("got %d rank values for %d modes", len(rank), len(modes))
	}

	var (
		core    *tensor.Dense
		factors []*tensor.Dense
		err     error
	)
	switch {
	case opts.InitTensor != nil:
		core = opts.InitTensor.Core.Clone()
		factors = make([]*tensor.Dense, len(opts.InitTensor.Factors))
		for i, f := range opts.InitTensor.Factors {
			factors[i] = f.Clone()
		}

	case opts.Init == InitSVD || opts.Init == "":
		factors = make([]*tensor.Dense, len(modes))
		for index, mode := range modes {
			svdOpts := tenalg.DefaultSVDOptions()
			svdOpts.Method = opts.SVDMethod
			svdOpts.NEigenvecs = rank[index]
			svdOpts.NonNegative = opts.NonNegative
			if opts.Mask != nil {
				svdOpts.Mask = tensor.Unfold(opts.Mask, mode)
				svdOpts.MaskRepeats = opts.SVDMaskRepeats
			}
			u, _, _, err := tenalg.SVDInterface(bk, tensor.Unfold(x, mode), svdOpts)
			if err != nil {
				return nil, err
			}
			factors[index] = u
		}
		// The initial core approximation is needed here for the masking step.
		core, err = tenalg.MultiModeDot(bk, x, factors, modes, -1, true)
		if err != nil {
			return nil, err
		}

	case opts.Init == InitRandom:
		rng := rand.New(rand.NewSource(opts.Seed))
		core = tensor.AddScalar(tensor.Rand(tensor.Shape(append([]int(nil), rank...)), rng), 0.01)
		factors = make([]*tensor.Dense, len(modes))
		for index, mode := range modes {
			factors[index] = tensor.Rand(tensor.Shape{x.Shape()[mode], rank[index]}, rng)
		}

	default:
		return nil, invalidArgf("initialization method %q not recognized", opts.Init)
	}

	if opts.NonNegative {
		for i, f := range factors {
			factors[i] = tensor.Abs(f)
		}
		core = tensor.Abs(core)
	}
	return &TuckerTensor{Core: core, Factors: factors}, nil
}

// PartialTucker decomposes x into a Tucker form exclusively along the
// provided modes, via higher-order orthogonal iteration. A nil modes slice
// covers every mode; rank defaulting follows ValidateTuckerRank. It returns
// the decomposition together with the reconstruction error of each sweep.
func PartialTucker(bk tensor.Backend, x *tensor.Dense, rank []int, modes []int, opts TuckerOptions) (*TuckerTensor, []float64, error) {
	if modes == nil {
		modes = allModes(x.NDim())
	}
	rank, err := ValidateTuckerRank(x.Shape(), rank, modes)
	if err != nil {
		return nil, nil, err
	}

	tt, err := InitializeTucker(bk, x, rank, modes, opts)
	if err != nil {
		return nil, nil, err
	}
	core, factors := tt.Core, tt.Factors

	var recErrors []float64
	normX := tensor.Norm(x)

	for iteration := 0; iteration < opts.NIterMax; iteration++ {
		if opts.Mask != nil {
			approx, err := (&TuckerTensor{Core: core, Factors: factors}).toTensorAt(bk, modes)
			if err != nil {
				return nil, nil, err
			}
			x = blendMasked(x, approx, opts.Mask)
		}

		for index, mode := range modes {
			coreApprox, err := tenalg.MultiModeDot(bk, x, factors, modes, index, true)
			if err != nil {
				return nil, nil, err
			}
			svdOpts := tenalg.DefaultSVDOptions()
			svdOpts.Method = opts.SVDMethod
			svdOpts.NEigenvecs = rank[index]
			eigenvecs, _, _, err := tenalg.SVDInterface(bk, tensor.Unfold(coreApprox, mode), svdOpts)
			if err != nil {
				return nil, nil, err
			}
			factors[index] = eigenvecs
		}

		core, err = tenalg.MultiModeDot(bk, x, factors, modes, -1, true)
		if err != nil {
			return nil, nil, err
		}

		// The factors are orthonormal and therefore do not affect the
		// reconstructed tensor's norm.
		normCore := tensor.Norm(core)
		recError := math.Sqrt(math.Abs(normX*normX-normCore*normCore)) / normX
		recErrors = append(recErrors, recError)

		if iteration > 1 {
			variation := recErrors[len(recErrors)-2] - recErrors[len(recErrors)-1]
			if opts.Verbose {
				logger.Info("tucker sweep",
					zap.Int("iteration", iteration),
					zap.Float64("reconstruction_error", recError),
					zap.Float64("variation", variation))
			}
			if opts.Tol > 0 && math.Abs(variation) < opts.Tol {
				if opts.Verbose {
					logger.Info("tucker converged", zap.Int("iterations", iteration))
				}
				break
			}
		}
	}
	return &TuckerTensor{Core: core, Factors: factors}, recErrors, nil
}

// Tucker decomposes x into a full Tucker form over every mode. With
// FixedFactors set (requires InitTensor), the named factors are kept as
// given and the iteration only updates the remaining modes.
func Tucker(bk tensor.Backend, x *tensor.Dense, rank []int, opts TuckerOptions) (*TuckerTensor, []float64, error) {
	if len(opts.FixedFactors) == 0 {
		return PartialTucker(bk, x, rank, nil, opts)
	}

	if opts.InitTensor == nil {
		return nil, nil, invalidArgf(
			"got fixed_factors=%v but no Tucker tensor was passed for initialization",
			opts.FixedFactors)
	}
	init := opts.InitTensor
	if len(opts.FixedFactors) == len(init.Factors) {
		if err := validateTuckerInit(x, init); err != nil {
			return nil, nil, err
		}
		return init.Clone(), nil, nil
	}

	fixed := append([]int(nil), opts.FixedFactors...)
	sort.Ints(fixed)
	isFixed := make(map[int]bool, len(fixed))
	for _, m := range fixed {
		isFixed[m] = true
	}

	var (
		fixedFactors, freeFactors []*tensor.Dense
		freeModes                 []int
	)
	for i, f := range init.Factors {
		if isFixed[i] {
			fixedFactors = append(fixedFactors, f)
		} else {
			freeFactors = append(freeFactors, f)
			freeModes = append(freeModes, i)
		}
	}

	// Absorb the fixed factors into the core so the free modes see the
	// right subproblem.
	core, err := tenalg.MultiModeDot(bk, init.Core, fixedFactors, fixed, -1, false)
	if err != nil {
		return nil, nil, err
	}

	fullRank, err := ValidateTuckerRank(x.Shape(), rank, nil)
	if err != nil {
		return nil, nil, err
	}
	freeRank := make([]int, len(freeModes))
	for i, m := range freeModes {
		freeRank[i] = fullRank[m]
	}

	sub := opts
	sub.InitTensor = &TuckerTensor{Core: core, Factors: freeFactors}
	sub.FixedFactors = nil
	partial, recErrors, err := PartialTucker(bk, x, freeRank, freeModes, sub)
	if err != nil {
		return nil, nil, err
	}

	factors := make([]*tensor.Dense, len(init.Factors))
	for i, m := range freeModes {
		factors[m] = partial.Factors[i]
	}
	for i, m := range fixed {
		factors[m] = fixedFactors[i]
	}
	core, err = tenalg.MultiModeDot(bk, partial.Core, fixedFactors, fixed, -1, true)
	if err != nil {
		return nil, nil, err
	}
	return &TuckerTensor{Core: core, Factors: factors}, recErrors, nil
}

// validateTuckerInit checks that a warm-start decomposition matches the
// tensor it claims to decompose.
func validateTuckerInit(x *tensor.Dense, tt *TuckerTensor) error {
	if len(tt.Factors) != x.NDim() {
		return shapeErrorf("got %d factors for a %dD tensor", len(tt.Factors), x.NDim())
	}
	if tt.Core.NDim() != x.NDim() {
		return shapeErrorf("core has %d dimensions for a %dD tensor", tt.Core.NDim(), x.NDim())
	}
	for mode, f := range tt.Factors {
		if f.NDim() != 2 {
			return shapeErrorf("factor %d has %d dimensions, expected a matrix", mode, f.NDim())
		}
		if f.Shape()[0] != x.Shape()[mode] {
			return shapeErrorf("factor %d has %d rows for mode of size %d",
				mode, f.Shape()[0], x.Shape()[mode])
		}
		if f.Shape()[1] != tt.Core.Shape()[mode] {
			return shapeErrorf("factor %d has %d columns for core dimension %d",
				mode, f.Shape()[1], tt.Core.Shape()[mode])
		}
	}
	return nil
}

// blendMasked combines observed entries of x with reconstructed entries
// where the mask marks values missing.
func blendMasked(x, approx, mask *tensor.Dense) *tensor.Dense {
	out := x.Clone()
	od, ad, md := out.Data(), approx.Data(), mask.Data()
	for i := range od {
		od[i] = od[i]*md[i] + ad[i]*(1-md[i])
	}
	return out
}
