// Package epipolar estimates the fundamental and essential matrices from
// point pairs with the normalized eight-point algorithm.
package epipolar

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mvgeo/internal/constraint"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
	"gonum.org/v1/gonum/mat"
)

// MinPairs is the number of pairs the linear estimator needs.
const MinPairs = 8

// Mode selects which relation is estimated.
type Mode int

const (
	// Fundamental estimates F from pixel coordinates.
	Fundamental Mode = iota
	// Essential estimates E from normalized camera coordinates.
	Essential
)

func (m Mode) String() string {
	if m == Essential {
		return "essential"
	}
	return "fundamental"
}

// Rule returns the constraint enforced for the mode.
func (m Mode) Rule() constraint.Rule {
	if m == Essential {
		return constraint.EqualSingular
	}
	return constraint.Rank2
}

// Estimator runs one linear fit per call. It is not safe for concurrent use
// unless every goroutine supplies its own workspace.
type Estimator struct {
	mode      Mode
	normalize bool
	fallback  float64
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

// WithNormalize toggles coordinate conditioning. It is on by default.
func WithNormalize(on bool) Option { return func(e *Estimator) { e.normalize = on } }

// WithFallbackScale sets the normalization scale for coincident points.
func WithFallbackScale(s float64) Option {
	return func(e *Estimator) {
		if s > 0 {
			e.fallback = s
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

// NewEstimator returns an estimator for mode.
func NewEstimator(mode Mode, opts ...Option) *Estimator {
	e := &Estimator{
		mode:      mode,
		normalize: true,
		fallback:  normalize.FallbackScale,
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

// Mode returns the relation the estimator fits.
func (e *Estimator) Mode() Mode { return e.mode }

// Solution is the outcome of one fit.
type Solution struct {
	// Matrix is the projected 3×3 relation in the input coordinates.
	Matrix *mat.Dense
	// SystemSingular holds the singular values of the linear system, descending.
	SystemSingular []float64
}

// Estimate returns the constrained matrix for pairs.
func (e *Estimator) Estimate(pairs []geo.AssociatedPair) (*mat.Dense, error) {
	s, err := e.Solve(pairs)
	if err != nil {
		return nil, err
	}
	return s.Matrix, nil
}

// Solve is Estimate with the linear system diagnostics.
func (e *Estimator) Solve(pairs []geo.AssociatedPair) (*Solution, error) {
	if len(pairs) < MinPairs {
		return nil, fmt.Errorf("%s needs at least %d pairs, got %d: %w", e.mode, MinPairs, len(pairs), geo.ErrInvalidInput)
	}

	n1, n2 := normalize.Identity(), normalize.Identity()
	if e.normalize {
		var err error
		if n1, n2, err = normalize.PairWithFallback(pairs, e.fallback); err != nil {
			return nil, err
		}
	}

	a := e.ws.Matrix(len(pairs), 9)
	if err := BuildSystem(a, pairs, n1, n2); err != nil {
		return nil, err
	}
	dec, err := e.ws.Decompose(a)
	if err != nil {
		return nil, fmt.Errorf("%s null space: %w", e.mode, err)
	}
	m := linalg.Reshape3x3(dec.NullVector())

	if e.normalize {
		// M = N2ᵀ·M'·N1
		var tmp mat.Dense
		tmp.Mul(n2.Matrix().T(), m)
		m.Mul(&tmp, n1.Matrix())
	}

	projected, err := constraint.Project(e.ws.Decomposer, m, e.mode.Rule())
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Estimated epipolar relation",
		"mode", e.mode.String(),
		"pairs", len(pairs),
		"smallest_singular", dec.S[len(dec.S)-1])

	return &Solution{Matrix: projected, SystemSingular: dec.S}, nil
}
