// Package linalg wraps the singular value decomposition used by every estimator.
//
// The Decomposer interface keeps the estimators independent of the numeric
// backend; Gonum is the default. Decompositions are always reported with
// singular values in descending order.
package linalg

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/mat"
)

// DefaultRankTolerance is the relative tolerance used to decide the effective rank.
const DefaultRankTolerance = 1e-13

// Decomposition is a full SVD A = U·diag(S)·Vᵀ.
// len(S) is min(rows, cols); U and V are square.
type Decomposition struct {
	U *mat.Dense
	V *mat.Dense
	S []float64
}

// Decomposer computes a full singular value decomposition.
type Decomposer interface {
	Decompose(a mat.Matrix) (*Decomposition, error)
}

// Gonum is the gonum/mat backed Decomposer. The zero value is ready to use.
// It is not safe for concurrent use.
type Gonum struct {
	svd mat.SVD
}

// NewGonum returns a gonum backed Decomposer.
func NewGonum() *Gonum { return &Gonum{} }

// Decompose factorizes a with full U and V.
func (g *Gonum) Decompose(a mat.Matrix) (*Decomposition, error) {
	r, c := a.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("decompose %dx%d matrix: %w", r, c, geo.ErrInvalidInput)
	}
	if ok := g.svd.Factorize(a, mat.SVDFull); !ok {
		return nil, fmt.Errorf("decompose %dx%d matrix: %w", r, c, geo.ErrNotConverged)
	}
	d := &Decomposition{
		U: &mat.Dense{},
		V: &mat.Dense{},
		S: g.svd.Values(nil),
	}
	g.svd.UTo(d.U)
	g.svd.VTo(d.V)
	DescendingOrder(d)
	return d, nil
}

// DescendingOrder sorts the singular values of d in descending order and
// permutes the matching columns of U and V. It is a no-op when already sorted.
func DescendingOrder(d *Decomposition) {
	if sort.SliceIsSorted(d.S, func(i, j int) bool { return d.S[i] > d.S[j] }) {
		return
	}
	idx := make([]int, len(d.S))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return d.S[idx[i]] > d.S[idx[j]] })

	s := make([]float64, len(d.S))
	for i, k := range idx {
		s[i] = d.S[k]
	}
	d.U = permuteColumns(d.U, idx)
	d.V = permuteColumns(d.V, idx)
	d.S = s
}

// permuteColumns reorders the first len(idx) columns of m. Remaining columns
// (the extra null-space columns of a full decomposition) keep their place.
func permuteColumns(m *mat.Dense, idx []int) *mat.Dense {
	r, c := m.Dims()
	out := mat.DenseCopyOf(m)
	col := make([]float64, r)
	for i, k := range idx {
		if k >= c || i >= c {
			continue
		}
		mat.Col(col, k, m)
		out.SetCol(i, col)
	}
	return out
}

// Rank returns the number of singular values greater than tol·S[0].
func (d *Decomposition) Rank(tol float64) int {
	if len(d.S) == 0 || d.S[0] == 0 {
		return 0
	}
	limit := tol * d.S[0]
	n := 0
	for _, s := range d.S {
		if s > limit {
			n++
		}
	}
	return n
}

// NullVector returns the right singular vector of the smallest singular
// value, i.e. the last column of V. For wide matrices it lies in the exact
// null space.
func (d *Decomposition) NullVector() *mat.VecDense {
	_, c := d.V.Dims()
	return mat.VecDenseCopyOf(d.V.ColView(c - 1))
}

// LeftNullVector returns the last column of U.
func (d *Decomposition) LeftNullVector() *mat.VecDense {
	_, c := d.U.Dims()
	return mat.VecDenseCopyOf(d.U.ColView(c - 1))
}

// Recompose returns U·diag(s)·Vᵀ using the leading len(s) columns.
func (d *Decomposition) Recompose(s []float64) *mat.Dense {
	ur, _ := d.U.Dims()
	vr, _ := d.V.Dims()
	k := len(s)
	us := mat.DenseCopyOf(d.U.Slice(0, ur, 0, k))
	for j, sj := range s {
		for i := range ur {
			us.Set(i, j, us.At(i, j)*sj)
		}
	}
	out := mat.NewDense(ur, vr, nil)
	out.Mul(us, d.V.Slice(0, vr, 0, k).T())
	return out
}

// NullSpace3x3 returns the left and right null vectors of a (nearly) singular 3×3 matrix.
func NullSpace3x3(dec Decomposer, m mat.Matrix) (left, right *mat.VecDense, err error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, nil, fmt.Errorf("null space of %dx%d matrix, want 3x3: %w", r, c, geo.ErrInvalidInput)
	}
	d, err := dec.Decompose(m)
	if err != nil {
		return nil, nil, err
	}
	return d.LeftNullVector(), d.NullVector(), nil
}

// Reshape3x3 reads a 9-vector row-major into a 3×3 matrix.
func Reshape3x3(v mat.Vector) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i := range 9 {
		m.Set(i/3, i%3, v.AtVec(i))
	}
	return m
}
