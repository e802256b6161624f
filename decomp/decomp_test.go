// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package decomp_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facto-ml/facto/backend/cpu"
	"github.com/facto-ml/facto/decomp"
	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

func fromSlice(t *testing.T, data []float64, shape tensor.Shape) *tensor.Dense {
	t.Helper()
	x, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return x
}

// randomCPTensor builds an exact low-rank tensor for recovery tests.
func randomCPTensor(t *testing.T, bk tensor.Backend, shape tensor.Shape, rank int, seed int64) *tensor.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	cp := decomp.RandomCP(shape, rank, rng, false)
	full, err := cp.ToTensor(bk)
	require.NoError(t, err)
	return full
}

func TestNewCPTensor_Validation(t *testing.T) {
	a := tensor.Ones(tensor.Shape{3, 2})
	b := tensor.Ones(tensor.Shape{4, 2})

	cp, err := decomp.NewCPTensor(nil, []*tensor.Dense{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Rank())
	assert.Equal(t, tensor.Shape{3, 4}, cp.Shape())
	assert.Equal(t, []float64{1, 1}, cp.Weights.Data())

	_, err = decomp.NewCPTensor(nil, []*tensor.Dense{a, tensor.Ones(tensor.Shape{4, 3})})
	require.ErrorIs(t, err, tenalg.ErrShape)

	_, err = decomp.NewCPTensor(tensor.Ones(tensor.Shape{3}), []*tensor.Dense{a, b})
	require.ErrorIs(t, err, tenalg.ErrShape)
}

func TestCPToTensor_RankOne(t *testing.T) {
	bk := cpu.New()
	a := fromSlice(t, []float64{1, 2}, tensor.Shape{2, 1})
	b := fromSlice(t, []float64{3, 4, 5}, tensor.Shape{3, 1})
	w := fromSlice(t, []float64{2}, tensor.Shape{1})

	cp, err := decomp.NewCPTensor(w, []*tensor.Dense{a, b})
	require.NoError(t, err)
	full, err := cp.ToTensor(bk)
	require.NoError(t, err)

	require.Equal(t, tensor.Shape{2, 3}, full.Shape())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, 2*a.At(i, 0)*b.At(j, 0), full.At(i, j), 1e-12)
		}
	}
}

func TestCPNorm_MatchesFullTensor(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(30))
	cp := decomp.RandomCP(tensor.Shape{4, 5, 3}, 3, rng, false)

	full, err := cp.ToTensor(bk)
	require.NoError(t, err)
	assert.InDelta(t, tensor.Norm(full), cp.Norm(bk), 1e-8)
}

func TestCPNormalize(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(31))
	cp := decomp.RandomCP(tensor.Shape{4, 3}, 2, rng, false)
	for i := range cp.Weights.Data() {
		cp.Weights.Data()[i] = float64(i + 2)
	}

	normalized := cp.Normalize()
	for _, f := range normalized.Factors {
		rank := f.Shape()[1]
		for c := 0; c < rank; c++ {
			var n float64
			for r := 0; r < f.Shape()[0]; r++ {
				n += f.At(r, c) * f.At(r, c)
			}
			assert.InDelta(t, 1.0, math.Sqrt(n), 1e-12)
		}
	}

	// Reconstruction is unchanged.
	before, err := cp.ToTensor(bk)
	require.NoError(t, err)
	after, err := normalized.ToTensor(bk)
	require.NoError(t, err)
	for i := range before.Data() {
		assert.InDelta(t, before.Data()[i], after.Data()[i], 1e-12)
	}
}

func TestUnfoldingDotKhatriRao_MatchesDirect(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(32))
	x := tensor.Rand(tensor.Shape{3, 4, 5}, rng)
	cp := decomp.RandomCP(tensor.Shape{3, 4, 5}, 2, rng, false)

	for mode := 0; mode < 3; mode++ {
		got, err := decomp.UnfoldingDotKhatriRao(bk, x, cp, mode)
		require.NoError(t, err)

		kr, err := tenalg.KhatriRao(cp.Factors, cp.Weights, mode, nil)
		require.NoError(t, err)
		want := bk.MatMul(tensor.Unfold(x, mode), kr)
		require.Equal(t, want.Shape(), got.Shape())
		for i := range want.Data() {
			assert.InDelta(t, want.Data()[i], got.Data()[i], 1e-12)
		}
	}
}

func TestValidateCPRank_Default(t *testing.T) {
	// prod/sum = 125/15 rounds to 8.
	assert.Equal(t, 8, decomp.ValidateCPRank(tensor.Shape{5, 5, 5}, 0))
	assert.Equal(t, 3, decomp.ValidateCPRank(tensor.Shape{5, 5, 5}, 3))
}

func TestSparsifyTensor(t *testing.T) {
	x := fromSlice(t, []float64{1, -5, 2, 4}, tensor.Shape{4})
	s := decomp.SparsifyTensor(x, 2)
	assert.Equal(t, []float64{0, -5, 0, 4}, s.Data())

	// card covering everything copies the input.
	s = decomp.SparsifyTensor(x, 10)
	assert.Equal(t, x.Data(), s.Data())
}

func TestInitializeTucker_SVDFactorShapes(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(33))
	x := tensor.Rand(tensor.Shape{6, 5, 4}, rng)

	tt, err := decomp.InitializeTucker(bk, x, []int{2, 3, 2}, []int{0, 1, 2}, decomp.DefaultTuckerOptions())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 2}, tt.Core.Shape())
	assert.Equal(t, tensor.Shape{6, 2}, tt.Factors[0].Shape())
	assert.Equal(t, tensor.Shape{5, 3}, tt.Factors[1].Shape())
	assert.Equal(t, tensor.Shape{4, 2}, tt.Factors[2].Shape())
}

func TestInitializeTucker_Random(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(34))
	x := tensor.Rand(tensor.Shape{4, 4, 4}, rng)

	opts := decomp.DefaultTuckerOptions()
	opts.Init = decomp.InitRandom
	opts.Seed = 7
	tt, err := decomp.InitializeTucker(bk, x, []int{2, 2, 2}, []int{0, 1, 2}, opts)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2, 2}, tt.Core.Shape())

	// Same seed reproduces the same initialization.
	tt2, err := decomp.InitializeTucker(bk, x, []int{2, 2, 2}, []int{0, 1, 2}, opts)
	require.NoError(t, err)
	assert.Equal(t, tt.Core.Data(), tt2.Core.Data())
}

func TestPartialTucker_ErrorsNonIncreasing(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(35))
	x := tensor.Rand(tensor.Shape{8, 7, 6}, rng)

	opts := decomp.DefaultTuckerOptions()
	opts.Tol = 0 // run all sweeps
	opts.NIterMax = 10
	_, errs, err := decomp.PartialTucker(bk, x, []int{3, 3, 3}, nil, opts)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	for i := 1; i < len(errs); i++ {
		assert.LessOrEqual(t, errs[i], errs[i-1]+1e-10, "sweep %d", i)
	}
}

func TestTucker_ExactLowRankRecovery(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(36))

	// Build an exact multilinear rank-(2,2,2) tensor.
	core := tensor.Rand(tensor.Shape{2, 2, 2}, rng)
	factors := []*tensor.Dense{
		tensor.Rand(tensor.Shape{6, 2}, rng),
		tensor.Rand(tensor.Shape{5, 2}, rng),
		tensor.Rand(tensor.Shape{4, 2}, rng),
	}
	x, err := (&decomp.TuckerTensor{Core: core, Factors: factors}).ToTensor(bk)
	require.NoError(t, err)

	tt, errs, err := decomp.Tucker(bk, x, []int{2, 2, 2}, decomp.DefaultTuckerOptions())
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Less(t, errs[len(errs)-1], 1e-6)

	rec, err := tt.ToTensor(bk)
	require.NoError(t, err)
	assert.Less(t, tensor.Norm(tensor.Sub(x, rec))/tensor.Norm(x), 1e-6)
}

func TestPartialTucker_DefaultRankPreservesShape(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(37))
	x := tensor.Rand(tensor.Shape{4, 3, 5}, rng)

	opts := decomp.DefaultTuckerOptions()
	opts.NIterMax = 2
	opts.Tol = 0
	tt, _, err := decomp.PartialTucker(bk, x, nil, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3, 5}, tt.Core.Shape())
}

func TestTucker_FixedFactorsKeptVerbatim(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(38))
	x := tensor.Rand(tensor.Shape{6, 5, 4}, rng)

	init, _, err := decomp.Tucker(bk, x, []int{2, 2, 2}, decomp.DefaultTuckerOptions())
	require.NoError(t, err)

	opts := decomp.DefaultTuckerOptions()
	opts.InitTensor = init
	opts.FixedFactors = []int{0}
	opts.NIterMax = 5
	tt, _, err := decomp.Tucker(bk, x, []int{2, 2, 2}, opts)
	require.NoError(t, err)

	assert.Equal(t, init.Factors[0].Data(), tt.Factors[0].Data())
	assert.Equal(t, tensor.Shape{2, 2, 2}, tt.Core.Shape())
	require.Len(t, tt.Factors, 3)
}

func TestTucker_FixedFactorsRequireInit(t *testing.T) {
	bk := cpu.New()
	x := tensor.Ones(tensor.Shape{3, 3, 3})
	opts := decomp.DefaultTuckerOptions()
	opts.FixedFactors = []int{0}
	_, _, err := decomp.Tucker(bk, x, []int{2, 2, 2}, opts)
	require.ErrorIs(t, err, tenalg.ErrInvalidArg)
}

func TestInitializeCP_SVDShapes(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(39))
	x := tensor.Rand(tensor.Shape{6, 5, 4}, rng)

	cp, err := decomp.InitializeCP(bk, x, 3, decomp.DefaultParafacOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, cp.Rank())
	assert.Equal(t, tensor.Shape{6, 3}, cp.Factors[0].Shape())
	assert.Equal(t, tensor.Shape{5, 3}, cp.Factors[1].Shape())
	assert.Equal(t, tensor.Shape{4, 3}, cp.Factors[2].Shape())
	assert.Equal(t, []float64{1, 1, 1}, cp.Weights.Data())
}

func TestInitializeCP_RankAboveModeSize(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(40))
	x := tensor.Rand(tensor.Shape{3, 8, 8}, rng)

	cp, err := decomp.InitializeCP(bk, x, 5, decomp.DefaultParafacOptions())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 5}, cp.Factors[0].Shape())
}

func TestParafac_ExactLowRankRecovery(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{6, 5, 4}, 2, 41)

	cp, sparse, errs, err := decomp.Parafac(bk, x, 2, decomp.DefaultParafacOptions())
	require.NoError(t, err)
	assert.Nil(t, sparse)
	require.NotEmpty(t, errs)
	assert.Less(t, errs[len(errs)-1], 1e-4)

	rec, err := cp.ToTensor(bk)
	require.NoError(t, err)
	assert.Less(t, tensor.Norm(tensor.Sub(x, rec))/tensor.Norm(x), 1e-4)
}

func TestParafac_NormalizeFactors(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{5, 4, 3}, 2, 42)

	opts := decomp.DefaultParafacOptions()
	opts.NormalizeFactors = true
	cp, _, _, err := decomp.Parafac(bk, x, 2, opts)
	require.NoError(t, err)

	for _, f := range cp.Factors {
		for c := 0; c < cp.Rank(); c++ {
			var n float64
			for r := 0; r < f.Shape()[0]; r++ {
				n += f.At(r, c) * f.At(r, c)
			}
			assert.InDelta(t, 1.0, math.Sqrt(n), 1e-8)
		}
	}
}

func TestParafac_FixedModes(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{5, 4, 3}, 2, 43)

	init, err := decomp.InitializeCP(bk, x, 2, decomp.DefaultParafacOptions())
	require.NoError(t, err)

	opts := decomp.DefaultParafacOptions()
	opts.InitTensor = init
	opts.FixedModes = []int{0}
	opts.NIterMax = 5
	cp, _, _, err := decomp.Parafac(bk, x, 2, opts)
	require.NoError(t, err)
	assert.Equal(t, init.Factors[0].Data(), cp.Factors[0].Data())
}

func TestParafac_CallbackStops(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{5, 4, 3}, 2, 44)

	calls := 0
	opts := decomp.DefaultParafacOptions()
	opts.Tol = 0
	opts.NIterMax = 50
	opts.Callback = func(cp *decomp.CPTensor, sparse *tensor.Dense, recError float64) bool {
		calls++
		return calls >= 4
	}
	_, _, _, err := decomp.Parafac(bk, x, 2, opts)
	require.NoError(t, err)
	// One initial invocation plus one per iteration until the stop request.
	assert.Equal(t, 4, calls)
}

func TestParafac_Linesearch(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{6, 5, 4}, 3, 45)

	opts := decomp.DefaultParafacOptions()
	opts.Linesearch = true
	cp, _, errs, err := decomp.Parafac(bk, x, 3, opts)
	require.NoError(t, err)
	require.NotEmpty(t, errs)

	rec, err := cp.ToTensor(bk)
	require.NoError(t, err)
	assert.Less(t, tensor.Norm(tensor.Sub(x, rec))/tensor.Norm(x), 1e-3)
}

func TestParafac_Sparsity(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{5, 4, 3}, 2, 46)
	// Plant a large outlier for the sparse component to absorb.
	x.Data()[7] += 10

	opts := decomp.DefaultParafacOptions()
	opts.Sparsity = 1 // one non-zero entry
	opts.NIterMax = 50
	_, sparse, _, err := decomp.Parafac(bk, x, 2, opts)
	require.NoError(t, err)
	require.NotNil(t, sparse)

	nonZero := 0
	for _, v := range sparse.Data() {
		if v != 0 {
			nonZero++
		}
	}
	assert.Equal(t, 1, nonZero)
}

func TestParafac_UnknownCvgCriterion(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{4, 3, 3}, 2, 47)

	opts := decomp.DefaultParafacOptions()
	opts.CvgCriterion = "bogus"
	_, _, _, err := decomp.Parafac(bk, x, 2, opts)
	require.ErrorIs(t, err, tenalg.ErrInvalidArg)
}

func TestRandomisedParafac_Terminates(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{8, 7, 6}, 2, 48)

	opts := decomp.DefaultRandomisedOptions()
	opts.Seed = 5
	opts.NIterMax = 40
	cp, errs, err := decomp.RandomisedParafac(bk, x, 2, 30, opts)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Equal(t, 2, cp.Rank())
	assert.Equal(t, tensor.Shape{8, 2}, cp.Factors[0].Shape())
	assert.Equal(t, tensor.Shape{7, 2}, cp.Factors[1].Shape())
	assert.Equal(t, tensor.Shape{6, 2}, cp.Factors[2].Shape())
	assert.Less(t, errs[len(errs)-1], 0.5)
}

func TestRandomisedParafac_CallbackStops(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{6, 5, 4}, 2, 49)

	calls := 0
	opts := decomp.DefaultRandomisedOptions()
	opts.Tol = 0
	opts.Callback = func(cp *decomp.CPTensor, recError float64) bool {
		calls++
		return calls >= 3
	}
	_, _, err := decomp.RandomisedParafac(bk, x, 2, 20, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestParafac_AllModesFixedReturnsInit(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{4, 3, 2}, 2, 51)

	init, err := decomp.InitializeCP(bk, x, 2, decomp.DefaultParafacOptions())
	require.NoError(t, err)

	opts := decomp.DefaultParafacOptions()
	opts.InitTensor = init
	opts.FixedModes = []int{0, 1, 2}
	cp, sparse, errs, err := decomp.Parafac(bk, x, 2, opts)
	require.NoError(t, err)
	assert.Nil(t, sparse)
	assert.Empty(t, errs)

	// Every factor comes back untouched, the last one included.
	require.Len(t, cp.Factors, 3)
	for i := range init.Factors {
		assert.Equal(t, init.Factors[i].Data(), cp.Factors[i].Data(), "factor %d", i)
	}
}

func TestPartialTucker_MaskedRecovery(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(52))

	core := tensor.Rand(tensor.Shape{2, 2, 2}, rng)
	factors := []*tensor.Dense{
		tensor.Rand(tensor.Shape{6, 2}, rng),
		tensor.Rand(tensor.Shape{5, 2}, rng),
		tensor.Rand(tensor.Shape{4, 2}, rng),
	}
	x, err := (&decomp.TuckerTensor{Core: core, Factors: factors}).ToTensor(bk)
	require.NoError(t, err)

	// Hide every 7th entry; the engine must impute them from the running
	// reconstruction.
	mask := tensor.Ones(x.Shape())
	hidden := x.Clone()
	for i := 0; i < x.NumElements(); i += 7 {
		mask.Data()[i] = 0
		hidden.Data()[i] = 0
	}

	opts := decomp.DefaultTuckerOptions()
	opts.Mask = mask
	opts.Tol = 1e-10
	opts.NIterMax = 200
	tt, errs, err := decomp.PartialTucker(bk, hidden, []int{2, 2, 2}, nil, opts)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Less(t, errs[len(errs)-1], 1e-4)

	// The observed entries are reproduced.
	rec, err := tt.ToTensor(bk)
	require.NoError(t, err)
	diff := tensor.Mul(tensor.Sub(x, rec), mask)
	assert.Less(t, tensor.Norm(diff)/tensor.Norm(tensor.Mul(x, mask)), 1e-3)
}

func TestParafac_MaskedRecovery(t *testing.T) {
	bk := cpu.New()
	x := randomCPTensor(t, bk, tensor.Shape{6, 5, 4}, 2, 53)

	mask := tensor.Ones(x.Shape())
	hidden := x.Clone()
	for i := 0; i < x.NumElements(); i += 7 {
		mask.Data()[i] = 0
		hidden.Data()[i] = 0
	}

	opts := decomp.DefaultParafacOptions()
	opts.Mask = mask
	opts.NIterMax = 200
	cp, _, errs, err := decomp.Parafac(bk, hidden, 2, opts)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Less(t, errs[len(errs)-1], 5e-2)

	rec, err := cp.ToTensor(bk)
	require.NoError(t, err)
	diff := tensor.Mul(tensor.Sub(x, rec), mask)
	assert.Less(t, tensor.Norm(diff)/tensor.Norm(tensor.Mul(x, mask)), 5e-2)
}

func TestTucker_AllFixedValidatesInit(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(54))
	x := tensor.Rand(tensor.Shape{4, 3, 2}, rng)

	good := &decomp.TuckerTensor{
		Core: tensor.Rand(tensor.Shape{2, 2, 2}, rng),
		Factors: []*tensor.Dense{
			tensor.Rand(tensor.Shape{4, 2}, rng),
			tensor.Rand(tensor.Shape{3, 2}, rng),
			tensor.Rand(tensor.Shape{2, 2}, rng),
		},
	}
	opts := decomp.DefaultTuckerOptions()
	opts.InitTensor = good
	opts.FixedFactors = []int{0, 1, 2}
	tt, errs, err := decomp.Tucker(bk, x, []int{2, 2, 2}, opts)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, good.Core.Data(), tt.Core.Data())

	// A factor whose rows do not match the tensor's mode size is rejected.
	bad := good.Clone()
	bad.Factors[2] = tensor.Rand(tensor.Shape{5, 2}, rng)
	opts.InitTensor = bad
	_, _, err = decomp.Tucker(bk, x, []int{2, 2, 2}, opts)
	require.ErrorIs(t, err, tenalg.ErrShape)
}

func TestTuckerToTensor_RoundTrip(t *testing.T) {
	bk := cpu.New()
	rng := rand.New(rand.NewSource(50))
	core := tensor.Rand(tensor.Shape{2, 3, 2}, rng)
	factors := []*tensor.Dense{
		tensor.Rand(tensor.Shape{4, 2}, rng),
		tensor.Rand(tensor.Shape{5, 3}, rng),
		tensor.Rand(tensor.Shape{6, 2}, rng),
	}

	full, err := (&decomp.TuckerTensor{Core: core, Factors: factors}).ToTensor(bk)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{4, 5, 6}, full.Shape())

	// Spot-check one entry against the definition.
	want := 0.0
	for a := 0; a < 2; a++ {
		for b := 0; b < 3; b++ {
			for c := 0; c < 2; c++ {
				want += core.At(a, b, c) * factors[0].At(1, a) * factors[1].At(2, b) * factors[2].At(3, c)
			}
		}
	}
	assert.InDelta(t, want, full.At(1, 2, 3), 1e-10)
}

func TestValidateTuckerRank(t *testing.T) {
	rank, err := decomp.ValidateTuckerRank(tensor.Shape{4, 5, 6}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, rank)

	rank, err = decomp.ValidateTuckerRank(tensor.Shape{4, 5, 6}, []int{2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, rank)

	_, err = decomp.ValidateTuckerRank(tensor.Shape{4, 5, 6}, []int{2, 2}, nil)
	require.ErrorIs(t, err, tenalg.ErrShape)
}
