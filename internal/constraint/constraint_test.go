package constraint

import (
	"errors"
	"math"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var raw = mat.NewDense(3, 3, []float64{
	2, -1, 0.5,
	0.3, 1.5, -2,
	1, 0.2, 3,
})

func singularValues(t *testing.T, m mat.Matrix) []float64 {
	t.Helper()
	var svd mat.SVD
	require.True(t, svd.Factorize(m, mat.SVDNone))
	return svd.Values(nil)
}

func TestProject_Rank2(t *testing.T) {
	before := mat.DenseCopyOf(raw)
	f, err := Project(linalg.NewGonum(), raw, Rank2)
	require.NoError(t, err)
	s := singularValues(t, f)
	assert.InDelta(t, 0, s[2], 1e-12)

	orig := singularValues(t, raw)
	assert.InDelta(t, orig[0], s[0], 1e-12)
	assert.InDelta(t, orig[1], s[1], 1e-12)
	assert.True(t, mat.Equal(before, raw), "input must not be modified")
}

func TestProject_EqualSingular(t *testing.T) {
	e, err := Project(linalg.NewGonum(), raw, EqualSingular)
	require.NoError(t, err)
	s := singularValues(t, e)
	assert.InDelta(t, 1, s[0], 1e-12)
	assert.InDelta(t, 1, s[1], 1e-12)
	assert.InDelta(t, 0, s[2], 1e-12)
}

func TestProject_MiddleSingular(t *testing.T) {
	h, err := Project(linalg.NewGonum(), raw, MiddleSingular)
	require.NoError(t, err)
	s := singularValues(t, h)
	assert.InDelta(t, 1, s[1], 1e-12)

	again, err := Project(linalg.NewGonum(), h, MiddleSingular)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(h, again, 1e-12))
}

func TestProject_Errors(t *testing.T) {
	_, err := Project(linalg.NewGonum(), mat.NewDense(2, 3, nil), Rank2)
	assert.ErrorIs(t, err, geo.ErrInvalidInput)

	_, err = Project(linalg.NewGonum(), raw, Rule(9))
	assert.ErrorIs(t, err, geo.ErrInvalidInput)

	rank1 := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 0, 0, 0, 0, 0})
	_, err = Project(linalg.NewGonum(), rank1, MiddleSingular)
	assert.ErrorIs(t, err, geo.ErrInvalidInput)
}

type failing struct{}

func (failing) Decompose(mat.Matrix) (*linalg.Decomposition, error) {
	return nil, geo.ErrNotConverged
}

func TestProject_PropagatesNotConverged(t *testing.T) {
	_, err := Project(failing{}, raw, EqualSingular)
	assert.True(t, errors.Is(err, geo.ErrNotConverged))
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, "rank2", Rank2.String())
	assert.Equal(t, "equal-singular", EqualSingular.String())
	assert.Equal(t, "middle-singular", MiddleSingular.String())
	assert.Equal(t, "Rule(7)", Rule(7).String())
}

func TestResolveSignPoint(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{-1, 0, 0, 0, -1, 0, 0, 0, -1})
	pair := geo.AssociatedPair{P1: geo.Point2{X: 1, Y: 2}, P2: geo.Point2{X: 1, Y: 2}}

	assert.True(t, ResolveSignPoint(m, pair))
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.False(t, ResolveSignPoint(m, pair), "second call must be a no-op")
}

func TestResolveSignLine(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	lines := geo.PairLineNorm{L1: geo.Vec3{X: 1, Y: 0, Z: 0}, L2: geo.Vec3{X: -1, Y: 0, Z: 0}}
	assert.True(t, ResolveSignLine(m, lines))
	assert.Equal(t, -1.0, m.At(0, 0))
}

func TestResolveSign_NonNegativeAfterwards(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("p2ᵀ·M·p1 >= 0 after resolution", prop.ForAll(
		func(vals []float64) bool {
			m := mat.NewDense(3, 3, vals[:9])
			pair := geo.AssociatedPair{
				P1: geo.Point2{X: vals[9], Y: vals[10]},
				P2: geo.Point2{X: vals[11], Y: vals[12]},
			}
			ResolveSignPoint(m, pair)
			v := geo.InnerProd(pair.P2.Homogeneous(), m, pair.P1.Homogeneous())
			return v >= 0 || math.Abs(v) < 1e-12
		},
		gen.SliceOfN(13, gen.Float64Range(-10, 10)),
	))

	properties.TestingRun(t)
}
