package homography

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
	"gonum.org/v1/gonum/mat"
)

// MinPairs is the number of pairs the linear estimator needs.
const MinPairs = 4

// DefaultIterations bounds the non-linear refinement.
const DefaultIterations = 200

// Estimator fits homographies. It is not safe for concurrent use.
type Estimator struct {
	normalize  bool
	fallback   float64
	iterations int
	ws         *linalg.Workspace
	logger     *slog.Logger
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

// WithIterations bounds the refinement iterations.
func WithIterations(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.iterations = n
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

// NewEstimator returns a homography estimator.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		normalize:  true,
		fallback:   normalize.FallbackScale,
		iterations: DefaultIterations,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ws == nil {
		e.ws = linalg.NewWorkspace()
	}
	return e
}

// Adjuster returns an adjuster sharing the estimator's decomposer.
func (e *Estimator) Adjuster() *Adjuster { return NewAdjuster(e.ws.Decomposer) }

// Linear runs the direct linear transform and returns the raw null vector
// solution in input coordinates. The scale and sign are arbitrary.
func (e *Estimator) Linear(pairs []geo.AssociatedPair) (*mat.Dense, error) {
	if len(pairs) < MinPairs {
		return nil, fmt.Errorf("homography needs at least %d pairs, got %d: %w", MinPairs, len(pairs), geo.ErrInvalidInput)
	}
	n1, n2, err := e.transforms(pairs)
	if err != nil {
		return nil, err
	}

	a := e.ws.Matrix(2*len(pairs), 9)
	for i, p := range pairs {
		x := n1.Apply(p.P1)
		u := n2.Apply(p.P2)
		a.SetRow(2*i, []float64{0, 0, 0, -x.X, -x.Y, -1, u.Y * x.X, u.Y * x.Y, u.Y})
		a.SetRow(2*i+1, []float64{x.X, x.Y, 1, 0, 0, 0, -u.X * x.X, -u.X * x.Y, -u.X})
	}
	dec, err := e.ws.Decompose(a)
	if err != nil {
		return nil, fmt.Errorf("homography null space: %w", err)
	}
	hn := linalg.Reshape3x3(dec.NullVector())
	h := denormalize(hn, n1, n2)

	e.logger.Debug("Estimated linear homography", "pairs", len(pairs), "smallest_singular", dec.S[len(dec.S)-1])
	return h, nil
}

// Estimate runs Linear and Refine and adjusts the result with the first pair.
func (e *Estimator) Estimate(pairs []geo.AssociatedPair) (*mat.Dense, error) {
	h, err := e.Linear(pairs)
	if err != nil {
		return nil, err
	}
	if len(pairs) > MinPairs {
		if h, err = e.Refine(h, pairs); err != nil {
			return nil, err
		}
	}
	return e.Adjuster().AdjustPoint(h, pairs[0])
}

func (e *Estimator) transforms(pairs []geo.AssociatedPair) (n1, n2 normalize.Transform, err error) {
	if !e.normalize {
		return normalize.Identity(), normalize.Identity(), nil
	}
	return normalize.PairWithFallback(pairs, e.fallback)
}

// denormalize returns N2⁻¹·Hn·N1.
func denormalize(hn mat.Matrix, n1, n2 normalize.Transform) *mat.Dense {
	var tmp mat.Dense
	tmp.Mul(n2.Inverse(), hn)
	h := mat.NewDense(3, 3, nil)
	h.Mul(&tmp, n1.Matrix())
	return h
}

// normalizeH returns N2·H·N1⁻¹.
func normalizeH(h mat.Matrix, n1, n2 normalize.Transform) *mat.Dense {
	var tmp mat.Dense
	tmp.Mul(n2.Matrix(), h)
	hn := mat.NewDense(3, 3, nil)
	hn.Mul(&tmp, n1.Inverse())
	return hn
}
