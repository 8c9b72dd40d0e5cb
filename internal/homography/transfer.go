package homography

import (
	"math"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/mat"
)

// Transfer maps p through H. ok is false when p maps to infinity.
func Transfer(h mat.Matrix, p geo.Point2) (geo.Point2, bool) {
	denom := h.At(2, 0)*p.X + h.At(2, 1)*p.Y + h.At(2, 2)
	if denom == 0 {
		return geo.Point2{X: math.Inf(1), Y: math.Inf(1)}, false
	}
	return geo.Point2{
		X: (h.At(0, 0)*p.X + h.At(0, 1)*p.Y + h.At(0, 2)) / denom,
		Y: (h.At(1, 0)*p.X + h.At(1, 1)*p.Y + h.At(1, 2)) / denom,
	}, true
}

// TransferErrors returns the forward transfer distance |H·p1 - p2| of every pair.
// Pairs mapped to infinity report +Inf.
func TransferErrors(h mat.Matrix, pairs []geo.AssociatedPair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		q, ok := Transfer(h, p.P1)
		if !ok {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = math.Hypot(q.X-p.P2.X, q.Y-p.P2.Y)
	}
	return out
}

// NormalizeScale returns H divided by H[2,2]. H is returned unchanged when
// H[2,2] is zero.
func NormalizeScale(h mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(h)
	if s := out.At(2, 2); s != 0 {
		out.Scale(1/s, out)
	}
	return out
}
