package trifocal

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
	"gonum.org/v1/gonum/mat"
)

// MinTriples is the number of triples the linear estimator needs.
const MinTriples = 7

// Estimator runs the algebraic trifocal estimate: a linear solution gives the
// epipoles, which are then held fixed while the tensor is re-solved on the
// consistent subspace. It is not safe for concurrent use.
type Estimator struct {
	normalize bool
	fallback  float64
	tol       float64
	ws        *linalg.Workspace
	logger    *slog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithWorkspace makes the estimator use ws for scratch memory and decompositions.
func WithWorkspace(ws *linalg.Workspace) Option {
	return func(e *Estimator) {
		if ws != nil {
			e.ws = ws
		}
	}
}

// WithNormalize toggles coordinate conditioning.
func WithNormalize(on bool) Option { return func(e *Estimator) { e.normalize = on } }

// WithFallbackScale sets the normalization scale for coincident points.
func WithFallbackScale(s float64) Option {
	return func(e *Estimator) {
		if s > 0 {
			e.fallback = s
		}
	}
}

// WithTolerance sets the relative rank tolerance passed to the Enforcer.
func WithTolerance(tol float64) Option {
	return func(e *Estimator) {
		if tol > 0 {
			e.tol = tol
		}
	}
}

// WithLogger sets the logger for per-call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEstimator returns a trifocal estimator.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		normalize: true,
		fallback:  normalize.FallbackScale,
		tol:       linalg.DefaultRankTolerance,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ws == nil {
		e.ws = linalg.NewWorkspace()
	}
	return e
}

// Solution is the outcome of one trifocal fit in input coordinates.
type Solution struct {
	Tensor *geo.TrifocalTensor
	E2, E3 geo.Vec3
	// Rank is the effective rank of the epipole constraint matrix.
	Rank int
	// SystemSingular holds the singular values of the linear system, descending.
	SystemSingular []float64
}

// Estimate fits the tensor to triples.
func (e *Estimator) Estimate(triples []geo.AssociatedTriple) (*Solution, error) {
	if len(triples) < MinTriples {
		return nil, fmt.Errorf("trifocal needs at least %d triples, got %d: %w", MinTriples, len(triples), geo.ErrInvalidInput)
	}

	n1, n2, n3 := normalize.Identity(), normalize.Identity(), normalize.Identity()
	if e.normalize {
		p1 := make([]geo.Point2, len(triples))
		p2 := make([]geo.Point2, len(triples))
		p3 := make([]geo.Point2, len(triples))
		for i, t := range triples {
			p1[i], p2[i], p3[i] = t.P1, t.P2, t.P3
		}
		var err error
		if n1, err = normalize.ComputeWithFallback(p1, e.fallback); err != nil {
			return nil, err
		}
		if n2, err = normalize.ComputeWithFallback(p2, e.fallback); err != nil {
			return nil, err
		}
		if n3, err = normalize.ComputeWithFallback(p3, e.fallback); err != nil {
			return nil, err
		}
	}

	a := e.ws.Matrix(RowsPerTriple*len(triples), 27)
	if err := LinearSystem(a, triples, n1, n2, n3); err != nil {
		return nil, err
	}
	dec, err := e.ws.Decompose(a)
	if err != nil {
		return nil, fmt.Errorf("trifocal linear solution: %w", err)
	}
	linear, err := geo.TensorFromVector(dec.NullVector())
	if err != nil {
		return nil, err
	}

	e2, e3, err := Epipoles(e.ws.Decomposer, linear)
	if err != nil {
		return nil, err
	}

	enforcer := NewEnforcer(
		WithDecomposer(e.ws.Decomposer),
		WithRankTolerance(e.tol),
		WithEnforcerLogger(e.logger),
	)
	if err := enforcer.Process(e2, e3, a); err != nil {
		return nil, err
	}
	t := enforcer.Solution()
	if e.normalize {
		t = denormalize(t, n1, n2, n3)
	}
	t.Scale(1 / t.Norm())

	// epipoles in the input frame
	if e.normalize {
		if e2, e3, err = Epipoles(e.ws.Decomposer, t); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("Estimated trifocal tensor", "triples", len(triples), "rank", enforcer.Rank())
	return &Solution{
		Tensor:         t,
		E2:             e2,
		E3:             e3,
		Rank:           enforcer.Rank(),
		SystemSingular: dec.S,
	}, nil
}

// denormalize returns T_i = N2⁻¹·(Σ_j N1[j,i]·T'_j)·N3⁻ᵀ.
func denormalize(tn *geo.TrifocalTensor, n1, n2, n3 normalize.Transform) *geo.TrifocalTensor {
	m1 := n1.Matrix()
	n2inv := n2.Inverse()
	n3invT := n3.Inverse().T()

	out := geo.NewTrifocalTensor()
	for i := range 3 {
		sum := mat.NewDense(3, 3, nil)
		for j := range 3 {
			var s mat.Dense
			s.Scale(m1.At(j, i), tn.T[j])
			sum.Add(sum, &s)
		}
		var tmp mat.Dense
		tmp.Mul(n2inv, sum)
		out.T[i].Mul(&tmp, n3invT)
	}
	return out
}
