package homography

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Refine minimizes the forward transfer error of pairs starting from h.
// The optimization runs in normalized coordinates. When the optimizer fails
// to improve on h the input is returned unchanged.
func (e *Estimator) Refine(h mat.Matrix, pairs []geo.AssociatedPair) (*mat.Dense, error) {
	if r, c := h.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("refine %dx%d matrix, want 3x3: %w", r, c, geo.ErrInvalidInput)
	}
	if len(pairs) < MinPairs {
		return nil, fmt.Errorf("refine needs at least %d pairs, got %d: %w", MinPairs, len(pairs), geo.ErrInvalidInput)
	}
	n1, n2, err := e.transforms(pairs)
	if err != nil {
		return nil, err
	}

	x1 := make([]geo.Point2, len(pairs))
	x2 := make([]geo.Point2, len(pairs))
	for i, p := range pairs {
		x1[i] = n1.Apply(p.P1)
		x2[i] = n2.Apply(p.P2)
	}

	hn := normalizeH(h, n1, n2)
	x0 := mat.DenseCopyOf(hn).RawMatrix().Data
	floats.Scale(1/floats.Norm(x0, 2), x0)

	cost := transferCost{x1: x1, x2: x2}
	f0 := cost.Func(x0)

	problem := optimize.Problem{Func: cost.Func, Grad: cost.Grad}
	settings := &optimize.Settings{
		MajorIterations:   e.iterations,
		GradientThreshold: 1e-12,
	}
	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res == nil {
		return nil, fmt.Errorf("refine homography: %v: %w", err, geo.ErrNotConverged)
	}
	if !(res.F < f0) {
		e.logger.Debug("Homography refinement did not improve", "initial", f0, "final", res.F, "error", err)
		return mat.DenseCopyOf(h), nil
	}

	e.logger.Debug("Refined homography",
		"initial_cost", f0,
		"final_cost", res.F,
		"iterations", res.Stats.MajorIterations,
		"status", res.Status.String())
	return denormalize(mat.NewDense(3, 3, res.X), n1, n2), nil
}

// transferCost is Σ |H·x1 - x2|² over normalized pairs.
type transferCost struct {
	x1, x2 []geo.Point2
}

func (c transferCost) Func(h []float64) float64 {
	var sum float64
	for i, p := range c.x1 {
		u := h[0]*p.X + h[1]*p.Y + h[2]
		v := h[3]*p.X + h[4]*p.Y + h[5]
		w := h[6]*p.X + h[7]*p.Y + h[8]
		ex := u/w - c.x2[i].X
		ey := v/w - c.x2[i].Y
		sum += ex*ex + ey*ey
	}
	return sum
}

func (c transferCost) Grad(grad, h []float64) {
	clear(grad)
	for i, p := range c.x1 {
		u := h[0]*p.X + h[1]*p.Y + h[2]
		v := h[3]*p.X + h[4]*p.Y + h[5]
		w := h[6]*p.X + h[7]*p.Y + h[8]
		ex := u/w - c.x2[i].X
		ey := v/w - c.x2[i].Y

		xs := [3]float64{p.X, p.Y, 1}
		for k, x := range xs {
			grad[k] += 2 * ex * x / w
			grad[3+k] += 2 * ey * x / w
			grad[6+k] -= 2 * (ex*u + ey*v) * x / (w * w)
		}
	}
}
