// Package homography estimates, refines and normalizes planar homographies.
package homography

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/constraint"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Adjuster fixes the scale and sign of a homography: the middle singular
// value becomes 1 and the matrix is oriented by one correspondence.
type Adjuster struct {
	dec linalg.Decomposer
}

// NewAdjuster returns an adjuster using dec, or gonum when dec is nil.
func NewAdjuster(dec linalg.Decomposer) *Adjuster {
	if dec == nil {
		dec = linalg.NewGonum()
	}
	return &Adjuster{dec: dec}
}

// AdjustPoint returns H scaled by 1/σ₂ with p2ᵀ·H·p1 ≥ 0.
func (a *Adjuster) AdjustPoint(h mat.Matrix, pair geo.AssociatedPair) (*mat.Dense, error) {
	out, err := constraint.Project(a.dec, h, constraint.MiddleSingular)
	if err != nil {
		return nil, fmt.Errorf("adjust homography: %w", err)
	}
	constraint.ResolveSignPoint(out, pair)
	return out, nil
}

// AdjustLine returns H scaled by 1/σ₂ with l1ᵀ·Hᵀ·l2 ≥ 0.
func (a *Adjuster) AdjustLine(h mat.Matrix, lines geo.PairLineNorm) (*mat.Dense, error) {
	out, err := constraint.Project(a.dec, h, constraint.MiddleSingular)
	if err != nil {
		return nil, fmt.Errorf("adjust homography: %w", err)
	}
	constraint.ResolveSignLine(out, lines)
	return out, nil
}
