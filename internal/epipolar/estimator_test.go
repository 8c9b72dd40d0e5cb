package epipolar

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func singular(t *testing.T, m mat.Matrix) []float64 {
	t.Helper()
	var svd mat.SVD
	require.True(t, svd.Factorize(m, mat.SVDNone))
	return svd.Values(nil)
}

func unit(m *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Scale(1/mat.Norm(out, 2), out)
	return out
}

// sameUpToScale compares two matrices after unit normalization and sign alignment.
func sameUpToScale(a, b *mat.Dense, tol float64) bool {
	ua, ub := unit(a), unit(b)
	if mat.Dot(mat.NewVecDense(9, ua.RawMatrix().Data), mat.NewVecDense(9, ub.RawMatrix().Data)) < 0 {
		ub.Scale(-1, ub)
	}
	return mat.EqualApprox(ua, ub, tol)
}

func TestEstimate_EightPairsFundamental(t *testing.T) {
	tv := synth.NewGenerator(42).TwoView(MinPairs, false)
	f, err := NewEstimator(Fundamental).Estimate(tv.Pairs)
	require.NoError(t, err)

	s := singular(t, f)
	assert.InDelta(t, 0, s[2]/s[0], 1e-12, "F must have rank 2")

	fu := unit(f)
	for _, p := range tv.Pairs {
		assert.InDelta(t, 0, AlgebraicResidual(fu, p), 1e-8)
	}
	assert.True(t, sameUpToScale(f, tv.F, 1e-6))
}

func TestEstimate_ManyPairsFundamental(t *testing.T) {
	tv := synth.NewGenerator(7).TwoView(50, false)
	f, err := NewEstimator(Fundamental).Estimate(tv.Pairs)
	require.NoError(t, err)

	fu := unit(f)
	for _, p := range tv.Pairs {
		assert.InDelta(t, 0, AlgebraicResidual(fu, p), 1e-8)
	}
}

func TestEstimate_Essential(t *testing.T) {
	tv := synth.NewGenerator(3).TwoView(20, true)
	e, err := NewEstimator(Essential).Estimate(tv.Pairs)
	require.NoError(t, err)

	s := singular(t, e)
	assert.InDelta(t, 1, s[0], 1e-10)
	assert.InDelta(t, 1, s[1], 1e-10)
	assert.InDelta(t, 0, s[2], 1e-10)
	for _, p := range tv.Pairs {
		assert.InDelta(t, 0, AlgebraicResidual(e, p), 1e-8)
	}
	assert.True(t, sameUpToScale(e, tv.E, 1e-6))
}

func TestEstimate_WithoutNormalization(t *testing.T) {
	tv := synth.NewGenerator(5).TwoView(12, true)
	f, err := NewEstimator(Fundamental, WithNormalize(false)).Estimate(tv.Pairs)
	require.NoError(t, err)
	fu := unit(f)
	for _, p := range tv.Pairs {
		assert.InDelta(t, 0, AlgebraicResidual(fu, p), 1e-8)
	}
}

func TestEstimate_TooFewPairs(t *testing.T) {
	tv := synth.NewGenerator(1).TwoView(7, false)
	_, err := NewEstimator(Fundamental).Estimate(tv.Pairs)
	assert.ErrorIs(t, err, geo.ErrInvalidInput)
}

func TestEstimate_DoesNotMutateInput(t *testing.T) {
	tv := synth.NewGenerator(9).TwoView(10, false)
	orig := append([]geo.AssociatedPair(nil), tv.Pairs...)
	_, err := NewEstimator(Fundamental).Estimate(tv.Pairs)
	require.NoError(t, err)
	assert.Equal(t, orig, tv.Pairs)
}

func TestEstimate_SharedWorkspaceAcrossCalls(t *testing.T) {
	ws := linalg.NewWorkspace()
	est := NewEstimator(Fundamental, WithWorkspace(ws), WithFallbackScale(2), WithLogger(nil))
	for seed := uint64(1); seed <= 3; seed++ {
		tv := synth.NewGenerator(seed).TwoView(8+int(seed)*5, false)
		s, err := est.Solve(tv.Pairs)
		require.NoError(t, err)
		assert.Len(t, s.SystemSingular, 9)
		assert.True(t, sameUpToScale(s.Matrix, tv.F, 1e-6))
	}
	assert.Equal(t, Fundamental, est.Mode())
}

func TestBuildSystem(t *testing.T) {
	pairs := []geo.AssociatedPair{{P1: geo.Point2{X: 2, Y: 3}, P2: geo.Point2{X: 5, Y: 7}}}
	a := mat.NewDense(1, 9, nil)
	require.NoError(t, BuildSystem(a, pairs, normalize.Identity(), normalize.Identity()))
	assert.Equal(t, []float64{10, 15, 5, 14, 21, 7, 2, 3, 1}, a.RawRowView(0))

	assert.ErrorIs(t, BuildSystem(mat.NewDense(2, 9, nil), pairs, normalize.Identity(), normalize.Identity()), geo.ErrInvalidInput)
}

func TestModeStrings(t *testing.T) {
	assert.Equal(t, "fundamental", Fundamental.String())
	assert.Equal(t, "essential", Essential.String())
}

func TestEstimate_ProjectedFundamentalIsRank2(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("smallest singular value of F is zero", prop.ForAll(
		func(seed uint64, n int) bool {
			g := synth.NewGenerator(seed)
			tv := g.TwoView(n, false)
			pairs := g.AddNoise(tv.Pairs, 0.5)
			f, err := NewEstimator(Fundamental).Estimate(pairs)
			if err != nil {
				return false
			}
			var svd mat.SVD
			if !svd.Factorize(f, mat.SVDNone) {
				return false
			}
			s := svd.Values(nil)
			return s[2] <= 1e-12*s[0]
		},
		gen.UInt64Range(1, 1<<32),
		gen.IntRange(MinPairs, 40),
	))

	properties.Property("essential singular values are {1, 1, 0}", prop.ForAll(
		func(seed uint64) bool {
			g := synth.NewGenerator(seed)
			tv := g.TwoView(15, true)
			pairs := g.AddNoise(tv.Pairs, 1e-3)
			e, err := NewEstimator(Essential).Estimate(pairs)
			if err != nil {
				return false
			}
			var svd mat.SVD
			if !svd.Factorize(e, mat.SVDNone) {
				return false
			}
			s := svd.Values(nil)
			return math.Abs(s[0]-1) < 1e-10 && math.Abs(s[1]-1) < 1e-10 && s[2] < 1e-10
		},
		gen.UInt64Range(1, 1<<32),
	))

	properties.TestingRun(t)
}
