// Package normalize computes the similarity transforms that condition point
// sets before a linear fit: centroid at the origin, RMS distance √2.
package normalize

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/mat"
)

// FallbackScale is used when every point coincides and the RMS distance is zero.
const FallbackScale = 1.0

// Transform is the similarity x' = Scale·(x - CX), y' = Scale·(y - CY).
type Transform struct {
	CX, CY float64
	Scale  float64
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform { return Transform{Scale: 1} }

// Compute returns the normalizing transform of points.
func Compute(points []geo.Point2) (Transform, error) {
	return ComputeWithFallback(points, FallbackScale)
}

// ComputeWithFallback is Compute with an explicit scale for degenerate input.
func ComputeWithFallback(points []geo.Point2, fallback float64) (Transform, error) {
	if len(points) == 0 {
		return Transform{}, fmt.Errorf("normalize empty point set: %w", geo.ErrInvalidInput)
	}
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(points))
	cx /= n
	cy /= n

	var sq float64
	for _, p := range points {
		dx, dy := p.X-cx, p.Y-cy
		sq += dx*dx + dy*dy
	}
	rms := math.Sqrt(sq / n)

	scale := fallback
	if rms > 0 {
		scale = math.Sqrt2 / rms
	}
	return Transform{CX: cx, CY: cy, Scale: scale}, nil
}

// Pair computes one transform per view of pairs.
func Pair(pairs []geo.AssociatedPair) (n1, n2 Transform, err error) {
	return PairWithFallback(pairs, FallbackScale)
}

// PairWithFallback is Pair with an explicit degenerate scale.
func PairWithFallback(pairs []geo.AssociatedPair, fallback float64) (n1, n2 Transform, err error) {
	p1, p2 := geo.Split(pairs)
	if n1, err = ComputeWithFallback(p1, fallback); err != nil {
		return Transform{}, Transform{}, err
	}
	if n2, err = ComputeWithFallback(p2, fallback); err != nil {
		return Transform{}, Transform{}, err
	}
	return n1, n2, nil
}

// Apply maps p into normalized coordinates.
func (t Transform) Apply(p geo.Point2) geo.Point2 {
	return geo.Point2{X: t.Scale * (p.X - t.CX), Y: t.Scale * (p.Y - t.CY)}
}

// Undo maps a normalized point back to the original frame.
func (t Transform) Undo(p geo.Point2) geo.Point2 {
	return geo.Point2{X: p.X/t.Scale + t.CX, Y: p.Y/t.Scale + t.CY}
}

// Matrix returns the 3×3 homogeneous form N.
func (t Transform) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.Scale, 0, -t.Scale * t.CX,
		0, t.Scale, -t.Scale * t.CY,
		0, 0, 1,
	})
}

// Inverse returns N⁻¹ in closed form.
func (t Transform) Inverse() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 / t.Scale, 0, t.CX,
		0, 1 / t.Scale, t.CY,
		0, 0, 1,
	})
}
