package testutil

import (
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Fixture is a correspondence file written for a test together with the
// relation that generated it.
type Fixture struct {
	Name string
	Kind estimate.Kind
	Path string
	// Truth is the generating matrix for two-view fixtures.
	Truth *mat.Dense
}

// WriteTwoViewFixture writes n noise-free pairs of a random two-view scene.
// The extension of name selects the encoding.
func WriteTwoViewFixture(t *testing.T, dir, name string, n int, seed uint64) Fixture {
	t.Helper()

	tv := synth.NewGenerator(seed).TwoView(n, false)
	path := fixturePath(t, dir, name)
	require.NoError(t, dataio.WriteFile(path, &dataio.Correspondences{
		Kind:  string(estimate.KindFundamental),
		Pairs: tv.Pairs,
	}))
	return Fixture{Name: name, Kind: estimate.KindFundamental, Path: path, Truth: tv.F}
}

// WritePlanarFixture writes n pairs related by a random homography.
func WritePlanarFixture(t *testing.T, dir, name string, n int, seed uint64) Fixture {
	t.Helper()

	pl := synth.NewGenerator(seed).Planar(n)
	path := fixturePath(t, dir, name)
	require.NoError(t, dataio.WriteFile(path, &dataio.Correspondences{
		Kind:  string(estimate.KindHomography),
		Pairs: pl.Pairs,
		Lines: pl.Lines[:1],
	}))
	return Fixture{Name: name, Kind: estimate.KindHomography, Path: path, Truth: pl.H}
}

// WriteThreeViewFixture writes n triples of a random three-view scene.
func WriteThreeViewFixture(t *testing.T, dir, name string, n int, seed uint64) Fixture {
	t.Helper()

	tv := synth.NewGenerator(seed).ThreeView(n, false)
	path := fixturePath(t, dir, name)
	require.NoError(t, dataio.WriteFile(path, &dataio.Correspondences{Triples: tv.Triples}))
	return Fixture{Name: name, Kind: estimate.KindTrifocal, Path: path}
}

// WriteDegenerateFixture writes a fundamental-matrix file with fewer pairs
// than the estimator needs.
func WriteDegenerateFixture(t *testing.T, dir, name string) Fixture {
	t.Helper()

	pairs := make([]geo.AssociatedPair, 3)
	for i := range pairs {
		pairs[i] = geo.AssociatedPair{
			P1: geo.Point2{X: float64(i), Y: 1},
			P2: geo.Point2{X: float64(i), Y: 2},
		}
	}
	path := fixturePath(t, dir, name)
	require.NoError(t, dataio.WriteFile(path, &dataio.Correspondences{
		Kind:  string(estimate.KindFundamental),
		Pairs: pairs,
	}))
	return Fixture{Name: name, Kind: estimate.KindFundamental, Path: path}
}

// WriteFixtureSet writes one fixture per relation, each in a different encoding.
func WriteFixtureSet(t *testing.T, dir string) []Fixture {
	t.Helper()

	return []Fixture{
		WriteTwoViewFixture(t, dir, "two_view.json", 20, 1),
		WritePlanarFixture(t, dir, "planar.yaml", 12, 2),
		WriteThreeViewFixture(t, dir, "three_view.csv", 12, 3),
	}
}

// SameUpToScale reports whether a and b are proportional, sign included,
// within tol after scaling both to unit Frobenius norm.
func SameUpToScale(a, b mat.Matrix, tol float64) bool {
	var an, bn mat.Dense
	an.Scale(1/mat.Norm(a, 2), a)
	bn.Scale(1/mat.Norm(b, 2), b)
	if mat.EqualApprox(&an, &bn, tol) {
		return true
	}
	bn.Scale(-1, &bn)
	return mat.EqualApprox(&an, &bn, tol)
}
