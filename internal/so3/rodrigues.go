// Package so3 parameterizes rotations by Rodrigues (axis-angle) vectors.
package so3

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/mat"
)

// smallAngle is the norm below which the first order expansion is used.
const smallAngle = 1e-12

// Rodrigues returns the rotation matrix of the axis-angle vector w.
func Rodrigues(w [3]float64) *mat.Dense {
	theta := math.Sqrt(w[0]*w[0] + w[1]*w[1] + w[2]*w[2])
	r := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if theta < smallAngle {
		r.Add(r, geo.Skew(geo.Vec3{X: w[0], Y: w[1], Z: w[2]}))
		return r
	}
	k := geo.Skew(geo.Vec3{X: w[0] / theta, Y: w[1] / theta, Z: w[2] / theta})
	var k2 mat.Dense
	k2.Mul(k, k)

	var tmp mat.Dense
	tmp.Scale(math.Sin(theta), k)
	r.Add(r, &tmp)
	tmp.Scale(1-math.Cos(theta), &k2)
	r.Add(r, &tmp)
	return r
}

// Jacobian holds a rotation and its partial derivatives with respect to the
// three Rodrigues parameters.
type Jacobian struct {
	r       *mat.Dense
	partial [3]*mat.Dense
}

// NewJacobian evaluates the rotation and its derivatives at w.
func NewJacobian(w [3]float64) *Jacobian {
	j := &Jacobian{}
	j.SetParameters(w[:], 0)
	return j
}

// ParameterLength is the number of parameters of the rotation.
func (j *Jacobian) ParameterLength() int { return 3 }

// SetParameters reads three parameters starting at offset.
func (j *Jacobian) SetParameters(params []float64, offset int) {
	w := [3]float64{params[offset], params[offset+1], params[offset+2]}
	j.r = Rodrigues(w)

	theta2 := w[0]*w[0] + w[1]*w[1] + w[2]*w[2]
	for i := range 3 {
		var e geo.Vec3
		switch i {
		case 0:
			e.X = 1
		case 1:
			e.Y = 1
		case 2:
			e.Z = 1
		}
		if math.Sqrt(theta2) < smallAngle {
			j.partial[i] = geo.Skew(e)
			continue
		}
		// dR/dw_i = (w_i [w]x + [w x ((I - R) e_i)]x) R / |w|^2
		v := geo.Vec3{X: w[0], Y: w[1], Z: w[2]}
		re := geo.MulVec(j.r, e)
		ime := geo.Vec3{X: e.X - re.X, Y: e.Y - re.Y, Z: e.Z - re.Z}

		var a mat.Dense
		a.Scale(w[i], geo.Skew(v))
		a.Add(&a, geo.Skew(v.Cross(ime)))

		d := mat.NewDense(3, 3, nil)
		d.Mul(&a, j.r)
		d.Scale(1/theta2, d)
		j.partial[i] = d
	}
}

// Rotation returns the rotation matrix at the current parameters.
func (j *Jacobian) Rotation() *mat.Dense { return j.r }

// Partial returns ∂R/∂w_i. It panics unless i is 0, 1 or 2.
func (j *Jacobian) Partial(i int) *mat.Dense {
	if i < 0 || i > 2 {
		panic(fmt.Sprintf("so3: partial index %d out of bounds", i))
	}
	return j.partial[i]
}
