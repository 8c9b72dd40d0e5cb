package geo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TrifocalTensor is the three-view relation stored as three 3×3 slices.
// Its vector form places T[i] row-major at offset 9·i.
type TrifocalTensor struct {
	T [3]*mat.Dense
}

// NewTrifocalTensor returns a zero tensor.
func NewTrifocalTensor() *TrifocalTensor {
	var t TrifocalTensor
	for i := range t.T {
		t.T[i] = mat.NewDense(3, 3, nil)
	}
	return &t
}

// TensorFromVector converts a 27-vector into a tensor.
func TensorFromVector(v mat.Vector) (*TrifocalTensor, error) {
	if v.Len() != 27 {
		return nil, fmt.Errorf("trifocal vector has %d elements, want 27: %w", v.Len(), ErrInvalidInput)
	}
	t := NewTrifocalTensor()
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				t.T[i].Set(j, k, v.AtVec(9*i+3*j+k))
			}
		}
	}
	return t, nil
}

// Vector returns the 27-vector form of t.
func (t *TrifocalTensor) Vector() *mat.VecDense {
	v := mat.NewVecDense(27, nil)
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				v.SetVec(9*i+3*j+k, t.T[i].At(j, k))
			}
		}
	}
	return v
}

// Scale multiplies every component by s.
func (t *TrifocalTensor) Scale(s float64) {
	for i := range t.T {
		t.T[i].Scale(s, t.T[i])
	}
}

// Norm returns the Frobenius norm of the 27 components.
func (t *TrifocalTensor) Norm() float64 {
	return mat.Norm(t.Vector(), 2)
}
