package trifocal

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// FromCameras returns the tensor of P1 = [I | 0] and the 3×4 cameras p2, p3:
// T_i[j][k] = P2[j][i]·P3[k][3] - P2[j][3]·P3[k][i].
func FromCameras(p2, p3 mat.Matrix) (*geo.TrifocalTensor, error) {
	for _, p := range []mat.Matrix{p2, p3} {
		if r, c := p.Dims(); r != 3 || c != 4 {
			return nil, fmt.Errorf("camera is %dx%d, want 3x4: %w", r, c, geo.ErrInvalidInput)
		}
	}
	t := geo.NewTrifocalTensor()
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				t.T[i].Set(j, k, p2.At(j, i)*p3.At(k, 3)-p2.At(j, 3)*p3.At(k, i))
			}
		}
	}
	return t, nil
}

// CameraParams returns [vec(A); vec(B)] for P2 = [A | e2], P3 = [B | e3],
// the vector E maps to the tensor.
func CameraParams(p2, p3 mat.Matrix) *mat.VecDense {
	v := mat.NewVecDense(18, nil)
	for j := range 3 {
		for i := range 3 {
			v.SetVec(3*j+i, p2.At(j, i))
			v.SetVec(9+3*j+i, p3.At(j, i))
		}
	}
	return v
}

// Epipoles extracts e2 and e3 from a tensor. e2 is orthogonal to the left
// null vectors of every T_i and e3 to the right null vectors.
func Epipoles(dec linalg.Decomposer, t *geo.TrifocalTensor) (e2, e3 geo.Vec3, err error) {
	left := mat.NewDense(3, 3, nil)
	right := mat.NewDense(3, 3, nil)
	for i := range 3 {
		u, v, err := linalg.NullSpace3x3(dec, t.T[i])
		if err != nil {
			return geo.Vec3{}, geo.Vec3{}, fmt.Errorf("null space of T%d: %w", i, err)
		}
		left.SetRow(i, u.RawVector().Data)
		right.SetRow(i, v.RawVector().Data)
	}

	dl, err := dec.Decompose(left)
	if err != nil {
		return geo.Vec3{}, geo.Vec3{}, fmt.Errorf("epipole e2: %w", err)
	}
	dr, err := dec.Decompose(right)
	if err != nil {
		return geo.Vec3{}, geo.Vec3{}, fmt.Errorf("epipole e3: %w", err)
	}
	return geo.Vec3From(dl.NullVector()), geo.Vec3From(dr.NullVector()), nil
}

// Transfer predicts the third view point of a correspondence seen in views
// one and two, using the line through x2 perpendicular to the epipolar line.
// ok is false when the prediction is at infinity.
func Transfer(t *geo.TrifocalTensor, x1, x2 geo.Point2, f21 mat.Matrix) (geo.Point2, bool) {
	le := geo.MulVec(f21, x1.Homogeneous())
	l2 := geo.Vec3{X: le.Y, Y: -le.X, Z: -x2.X*le.Y + x2.Y*le.X}

	var out geo.Vec3
	h := x1.Homogeneous()
	for i := range 3 {
		xi := h.Index(i)
		m := geo.MulVec(t.T[i].T(), l2)
		out = geo.Vec3{X: out.X + xi*m.X, Y: out.Y + xi*m.Y, Z: out.Z + xi*m.Z}
	}
	if out.Z == 0 {
		return geo.Point2{}, false
	}
	return out.Point(), true
}

// Fundamental returns F21 = [e2]ₓ·[T1, T2, T3]·e3, the fundamental matrix
// between the first and second views.
func Fundamental(t *geo.TrifocalTensor, e2, e3 geo.Vec3) *mat.Dense {
	cols := mat.NewDense(3, 3, nil)
	for i := range 3 {
		c := geo.MulVec(t.T[i], e3)
		cols.Set(0, i, c.X)
		cols.Set(1, i, c.Y)
		cols.Set(2, i, c.Z)
	}
	f := mat.NewDense(3, 3, nil)
	f.Mul(geo.Skew(e2), cols)
	return f
}
