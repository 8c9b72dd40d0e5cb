package epipolar

import (
	"github.com/MeKo-Tech/mvgeo/internal/constraint"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// AlgebraicResidual returns x2ᵀ·F·x1.
func AlgebraicResidual(f mat.Matrix, p geo.AssociatedPair) float64 {
	return geo.InnerProd(p.P2.Homogeneous(), f, p.P1.Homogeneous())
}

// SampsonError returns the first order approximation of the squared
// geometric distance of p to the epipolar geometry F.
func SampsonError(f mat.Matrix, p geo.AssociatedPair) float64 {
	x1 := p.P1.Homogeneous()
	x2 := p.P2.Homogeneous()
	fx1 := geo.MulVec(f, x1)
	ftx2 := geo.MulVec(f.T(), x2)

	num := x2.Dot(fx1)
	den := fx1.X*fx1.X + fx1.Y*fx1.Y + ftx2.X*ftx2.X + ftx2.Y*ftx2.Y
	if den == 0 {
		return 0
	}
	return num * num / den
}

// Residuals returns the Sampson error of every pair.
func Residuals(f mat.Matrix, pairs []geo.AssociatedPair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = SampsonError(f, p)
	}
	return out
}

// EssentialFromFundamental returns K2ᵀ·F·K1 projected onto {1, 1, 0}.
func EssentialFromFundamental(dec linalg.Decomposer, f, k1, k2 mat.Matrix) (*mat.Dense, error) {
	var tmp, e mat.Dense
	tmp.Mul(k2.T(), f)
	e.Mul(&tmp, k1)
	return constraint.Project(dec, &e, constraint.EqualSingular)
}

// EpipolarLine returns the line F·x1 in the second view.
func EpipolarLine(f mat.Matrix, p1 geo.Point2) geo.Vec3 {
	return geo.MulVec(f, p1.Homogeneous())
}
