// Package trifocal estimates the trifocal tensor and enforces its geometric
// structure given the two epipoles.
package trifocal

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// ConstructE returns the 27×18 matrix mapping the camera parameters
// [vec(A); vec(B)] of P2 = [A | e2], P3 = [B | e3] to the tensor vector,
// so that T_i = a_i·e3ᵀ - e2·b_iᵀ. A and B are vectorized row-major.
func ConstructE(e2, e3 geo.Vec3) *mat.Dense {
	e := mat.NewDense(27, 18, nil)
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				row := 9*i + 3*j + k
				e.Set(row, 3*j+i, e3.Index(k))
				e.Set(row, 9+3*k+i, -e2.Index(j))
			}
		}
	}
	return e
}

// Enforcer finds the tensor of minimal algebraic error among the tensors
// consistent with a fixed pair of epipoles. It is not safe for concurrent use.
type Enforcer struct {
	dec    linalg.Decomposer
	tol    float64
	logger *slog.Logger

	vectorT *mat.VecDense
	rank    int
}

// EnforcerOption configures an Enforcer.
type EnforcerOption func(*Enforcer)

// WithRankTolerance sets the relative tolerance of the effective rank of E.
func WithRankTolerance(tol float64) EnforcerOption {
	return func(f *Enforcer) {
		if tol > 0 {
			f.tol = tol
		}
	}
}

// WithDecomposer sets the SVD backend.
func WithDecomposer(dec linalg.Decomposer) EnforcerOption {
	return func(f *Enforcer) {
		if dec != nil {
			f.dec = dec
		}
	}
}

// WithEnforcerLogger sets the logger for per-call diagnostics.
func WithEnforcerLogger(l *slog.Logger) EnforcerOption {
	return func(f *Enforcer) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewEnforcer returns an enforcer with the default rank tolerance.
func NewEnforcer(opts ...EnforcerOption) *Enforcer {
	f := &Enforcer{
		dec:    linalg.NewGonum(),
		tol:    linalg.DefaultRankTolerance,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ConstructE is the package level ConstructE.
func (f *Enforcer) ConstructE(e2, e3 geo.Vec3) *mat.Dense { return ConstructE(e2, e3) }

// Process solves min |A·E·p| subject to |E·p| = 1 for the epipoles e2 and e3.
// A must have 27 columns. On failure the previous solution is kept.
func (f *Enforcer) Process(e2, e3 geo.Vec3, a mat.Matrix) error {
	rows, cols := a.Dims()
	if cols != 27 || rows == 0 {
		return fmt.Errorf("trifocal system is %dx%d, want nx27: %w", rows, cols, geo.ErrInvalidInput)
	}

	e := ConstructE(e2, e3)
	de, err := f.dec.Decompose(e)
	if err != nil {
		return fmt.Errorf("decompose E: %w", err)
	}
	linalg.DescendingOrder(de)
	rank := de.Rank(f.tol)
	if rank == 0 {
		return fmt.Errorf("E has rank zero, epipoles are null: %w", geo.ErrInvalidInput)
	}
	ur := de.U.Slice(0, 27, 0, rank)

	au := mat.NewDense(rows, rank, nil)
	au.Mul(a, ur)
	dau, err := f.dec.Decompose(au)
	if err != nil {
		return fmt.Errorf("decompose A·U: %w", err)
	}
	x := dau.NullVector()

	t := mat.NewVecDense(27, nil)
	t.MulVec(ur, x)
	if t.AtVec(0) < 0 {
		t.ScaleVec(-1, t)
	}

	f.vectorT = t
	f.rank = rank
	f.logger.Debug("Enforced trifocal geometry", "rank", rank, "rows", rows)
	return nil
}

// Rank returns the effective rank of E found by the last Process.
func (f *Enforcer) Rank() int { return f.rank }

// Vector returns the 27-vector of the last solution.
func (f *Enforcer) Vector() *mat.VecDense {
	f.mustHaveSolution()
	return mat.VecDenseCopyOf(f.vectorT)
}

// ErrorVector returns A·t for the last solution. It panics when Process has
// not succeeded yet.
func (f *Enforcer) ErrorVector(a mat.Matrix) *mat.VecDense {
	f.mustHaveSolution()
	rows, _ := a.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(a, f.vectorT)
	return out
}

// Solution returns the last solution as a tensor.
func (f *Enforcer) Solution() *geo.TrifocalTensor {
	f.mustHaveSolution()
	t, _ := geo.TensorFromVector(f.vectorT)
	return t
}

func (f *Enforcer) mustHaveSolution() {
	if f.vectorT == nil {
		panic("trifocal: no solution, Process has not succeeded")
	}
}
