// Package constraint projects a raw 3×3 linear solution onto the algebraic
// structure of its relation and resolves the sign ambiguity of the result.
package constraint

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Rule selects the singular value structure enforced by Project.
type Rule int

const (
	// Rank2 zeroes the smallest singular value (fundamental matrix).
	Rank2 Rule = iota
	// EqualSingular replaces the singular values by {1, 1, 0} (essential matrix).
	EqualSingular
	// MiddleSingular divides the matrix by its middle singular value (homography).
	MiddleSingular
)

func (r Rule) String() string {
	switch r {
	case Rank2:
		return "rank2"
	case EqualSingular:
		return "equal-singular"
	case MiddleSingular:
		return "middle-singular"
	default:
		return fmt.Sprintf("Rule(%d)", int(r))
	}
}

// Project returns a new matrix satisfying rule. m is left untouched.
func Project(dec linalg.Decomposer, m mat.Matrix, rule Rule) (*mat.Dense, error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("project %dx%d matrix, want 3x3: %w", r, c, geo.ErrInvalidInput)
	}
	d, err := dec.Decompose(m)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", rule, err)
	}
	linalg.DescendingOrder(d)

	switch rule {
	case Rank2:
		return d.Recompose([]float64{d.S[0], d.S[1], 0}), nil
	case EqualSingular:
		return d.Recompose([]float64{1, 1, 0}), nil
	case MiddleSingular:
		if d.S[1] == 0 {
			return nil, fmt.Errorf("project %s: middle singular value is zero: %w", rule, geo.ErrInvalidInput)
		}
		out := mat.DenseCopyOf(m)
		out.Scale(1/d.S[1], out)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown constraint rule %d: %w", int(rule), geo.ErrInvalidInput)
	}
}

// ResolveSignPoint negates m in place when p2ᵀ·M·p1 < 0 and reports whether it did.
func ResolveSignPoint(m *mat.Dense, pair geo.AssociatedPair) bool {
	if geo.InnerProd(pair.P2.Homogeneous(), m, pair.P1.Homogeneous()) < 0 {
		m.Scale(-1, m)
		return true
	}
	return false
}

// ResolveSignLine negates m in place when l1ᵀ·Mᵀ·l2 < 0 and reports whether it did.
func ResolveSignLine(m *mat.Dense, lines geo.PairLineNorm) bool {
	if geo.InnerProd(lines.L2, m, lines.L1) < 0 {
		m.Scale(-1, m)
		return true
	}
	return false
}
