// Package synth builds deterministic synthetic scenes with known ground truth.
package synth

import (
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/so3"
	"gonum.org/v1/gonum/mat"
)

// Point3 is a scene point.
type Point3 [3]float64

// Camera is the pinhole P = K·[R | t].
type Camera struct {
	K *mat.Dense
	R *mat.Dense
	T geo.Vec3
}

// Intrinsics returns a calibration matrix with square pixels and no skew.
func Intrinsics(f, cx, cy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		f, 0, cx,
		0, f, cy,
		0, 0, 1,
	})
}

// Identity returns the calibration matrix K = I.
func Identity() *mat.Dense { return Intrinsics(1, 0, 0) }

// NewCamera builds a camera from intrinsics, a Rodrigues rotation and a translation.
func NewCamera(k *mat.Dense, rot [3]float64, t geo.Vec3) Camera {
	return Camera{K: k, R: so3.Rodrigues(rot), T: t}
}

// Matrix returns the 3×4 projection matrix.
func (c Camera) Matrix() *mat.Dense {
	rt := mat.NewDense(3, 4, nil)
	rt.Slice(0, 3, 0, 3).(*mat.Dense).Copy(c.R)
	rt.Set(0, 3, c.T.X)
	rt.Set(1, 3, c.T.Y)
	rt.Set(2, 3, c.T.Z)
	p := mat.NewDense(3, 4, nil)
	p.Mul(c.K, rt)
	return p
}

// Project returns the homogeneous image of x.
func (c Camera) Project(x Point3) geo.Vec3 {
	cam := geo.MulVec(c.R, geo.Vec3{X: x[0], Y: x[1], Z: x[2]})
	cam = geo.Vec3{X: cam.X + c.T.X, Y: cam.Y + c.T.Y, Z: cam.Z + c.T.Z}
	return geo.MulVec(c.K, cam)
}

// Depth returns the z coordinate of x in the camera frame.
func (c Camera) Depth(x Point3) float64 {
	return c.R.At(2, 0)*x[0] + c.R.At(2, 1)*x[1] + c.R.At(2, 2)*x[2] + c.T.Z
}
