package trifocal

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
	"gonum.org/v1/gonum/mat"
)

// RowsPerTriple is the number of independent linear constraints a point
// triple contributes.
const RowsPerTriple = 4

// LinearSystem fills dst (4·len(triples)×27) with the point-point-point
// constraints in the coordinates given by n1, n2 and n3. For i, l ∈ {0, 1}:
//
//	x^k (x'^i x''^l T_k^{22} - x''^l T_k^{i2} - x'^i T_k^{2l} + T_k^{il}) = 0
func LinearSystem(dst *mat.Dense, triples []geo.AssociatedTriple, n1, n2, n3 normalize.Transform) error {
	r, c := dst.Dims()
	if r != RowsPerTriple*len(triples) || c != 27 {
		return fmt.Errorf("system is %dx%d, want %dx27: %w", r, c, RowsPerTriple*len(triples), geo.ErrInvalidInput)
	}
	row := make([]float64, 27)
	for n, t := range triples {
		x := n1.Apply(t.P1).Homogeneous()
		xp := n2.Apply(t.P2)
		xpp := n3.Apply(t.P3)
		a := [2]float64{xp.X, xp.Y}
		b := [2]float64{xpp.X, xpp.Y}

		for i := range 2 {
			for l := range 2 {
				clear(row)
				for k := range 3 {
					xk := x.Index(k)
					row[9*k+3*2+2] += xk * a[i] * b[l]
					row[9*k+3*i+2] -= xk * b[l]
					row[9*k+3*2+l] -= xk * a[i]
					row[9*k+3*i+l] += xk
				}
				dst.SetRow(RowsPerTriple*n+2*i+l, row)
			}
		}
	}
	return nil
}

// Residual returns the algebraic error of one triple under t, the four
// constraint values stacked.
func Residual(t *geo.TrifocalTensor, triple geo.AssociatedTriple) [RowsPerTriple]float64 {
	a := mat.NewDense(RowsPerTriple, 27, nil)
	id := normalize.Identity()
	_ = LinearSystem(a, []geo.AssociatedTriple{triple}, id, id, id)
	var r mat.VecDense
	r.MulVec(a, t.Vector())
	var out [RowsPerTriple]float64
	for i := range out {
		out[i] = r.AtVec(i)
	}
	return out
}
