// Package geo holds the small value types shared by the two- and three-view estimators.
package geo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point2 is a pixel or normalized image coordinate.
type Point2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Homogeneous returns the point lifted to z = 1.
func (p Point2) Homogeneous() Vec3 { return Vec3{X: p.X, Y: p.Y, Z: 1} }

// Vec3 is a homogeneous point, a homogeneous line or an epipole.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Index returns component i (0, 1 or 2).
func (v Vec3) Index(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic("geo: Vec3 index out of range")
}

// Dot returns the inner product of v and u.
func (v Vec3) Dot(u Vec3) float64 { return v.X*u.X + v.Y*u.Y + v.Z*u.Z }

// Cross returns v × u.
func (v Vec3) Cross(u Vec3) Vec3 {
	return Vec3{
		X: v.Y*u.Z - v.Z*u.Y,
		Y: v.Z*u.X - v.X*u.Z,
		Z: v.X*u.Y - v.Y*u.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Scale returns s·v.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{X: s * v.X, Y: s * v.Y, Z: s * v.Z} }

// Point returns the Euclidean point of a homogeneous vector. The result is
// non-finite when Z is zero.
func (v Vec3) Point() Point2 { return Point2{X: v.X / v.Z, Y: v.Y / v.Z} }

// VecDense copies v into a gonum column vector.
func (v Vec3) VecDense() *mat.VecDense { return mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}) }

// Vec3From reads the first three entries of a gonum vector.
func Vec3From(v mat.Vector) Vec3 { return Vec3{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)} }

// AssociatedPair is the observation of one feature in two views.
type AssociatedPair struct {
	P1 Point2 `json:"p1" yaml:"p1"`
	P2 Point2 `json:"p2" yaml:"p2"`
}

// PairLineNorm is a line observed in two views, in homogeneous line coordinates.
type PairLineNorm struct {
	L1 Vec3 `json:"l1" yaml:"l1"`
	L2 Vec3 `json:"l2" yaml:"l2"`
}

// AssociatedTriple is the observation of one feature in three views.
type AssociatedTriple struct {
	P1 Point2 `json:"p1" yaml:"p1"`
	P2 Point2 `json:"p2" yaml:"p2"`
	P3 Point2 `json:"p3" yaml:"p3"`
}

// Split returns the first- and second-view points of pairs.
func Split(pairs []AssociatedPair) (p1, p2 []Point2) {
	p1 = make([]Point2, len(pairs))
	p2 = make([]Point2, len(pairs))
	for i, p := range pairs {
		p1[i], p2[i] = p.P1, p.P2
	}
	return p1, p2
}

// InnerProd computes aᵀ·M·b for a 3×3 matrix M.
func InnerProd(a Vec3, m mat.Matrix, b Vec3) float64 {
	var sum float64
	for i := range 3 {
		ai := a.Index(i)
		for j := range 3 {
			sum += ai * m.At(i, j) * b.Index(j)
		}
	}
	return sum
}

// MulVec returns M·v for a 3×3 matrix M.
func MulVec(m mat.Matrix, v Vec3) Vec3 {
	return Vec3{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// Skew returns the cross-product matrix [v]ₓ.
func Skew(v Vec3) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}
