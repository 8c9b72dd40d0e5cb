package epipolar

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/normalize"
	"gonum.org/v1/gonum/mat"
)

// BuildSystem fills dst (len(pairs)×9) with one epipolar constraint row per
// pair, in the coordinates given by n1 and n2:
//
//	[x2·x1, x2·y1, x2, y2·x1, y2·y1, y2, x1, y1, 1]
func BuildSystem(dst *mat.Dense, pairs []geo.AssociatedPair, n1, n2 normalize.Transform) error {
	r, c := dst.Dims()
	if r != len(pairs) || c != 9 {
		return fmt.Errorf("system is %dx%d, want %dx9: %w", r, c, len(pairs), geo.ErrInvalidInput)
	}
	for i, p := range pairs {
		a := n1.Apply(p.P1)
		b := n2.Apply(p.P2)
		dst.SetRow(i, []float64{
			b.X * a.X, b.X * a.Y, b.X,
			b.Y * a.X, b.Y * a.Y, b.Y,
			a.X, a.Y, 1,
		})
	}
	return nil
}
