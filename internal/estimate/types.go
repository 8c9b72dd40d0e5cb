package estimate

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"gonum.org/v1/gonum/mat"
)

// Kind names the relation to estimate.
type Kind string

const (
	KindFundamental Kind = "fundamental"
	KindEssential   Kind = "essential"
	KindHomography  Kind = "homography"
	KindTrifocal    Kind = "trifocal"
)

// Kinds lists every supported relation.
func Kinds() []Kind {
	return []Kind{KindFundamental, KindEssential, KindHomography, KindTrifocal}
}

// ParseKind parses a relation name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown relation %q: %w", s, geo.ErrInvalidInput)
}

// Request is one estimation job.
type Request struct {
	Kind    Kind
	Pairs   []geo.AssociatedPair
	Lines   []geo.PairLineNorm
	Triples []geo.AssociatedTriple
	// K1 and K2 are optional intrinsics. For the essential matrix they map
	// pixel observations to normalized camera coordinates before the fit.
	K1, K2 *mat.Dense
}

// ResidualStats summarizes per-correspondence errors.
type ResidualStats struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	RMS    float64 `json:"rms" yaml:"rms"`
	Max    float64 `json:"max" yaml:"max"`
	// NonFinite counts correspondences mapped to infinity.
	NonFinite int `json:"non_finite,omitempty" yaml:"non_finite,omitempty"`
	// Metric names the residual: sampson, transfer or algebraic.
	Metric string `json:"metric" yaml:"metric"`
}

// Result is the outcome of one estimation.
type Result struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Kind Kind   `json:"kind" yaml:"kind"`

	// Matrix is set for two-view relations.
	Matrix [][]float64 `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	// Tensor holds T1, T2, T3 for the trifocal relation.
	Tensor   [][][]float64 `json:"tensor,omitempty" yaml:"tensor,omitempty"`
	Epipoles []geo.Vec3    `json:"epipoles,omitempty" yaml:"epipoles,omitempty"`

	SingularValues []float64 `json:"singular_values" yaml:"singular_values"`
	SystemSingular []float64 `json:"system_singular_values" yaml:"system_singular_values"`
	Rank           int       `json:"rank" yaml:"rank"`

	Correspondences int           `json:"correspondences" yaml:"correspondences"`
	Residuals       ResidualStats `json:"residuals" yaml:"residuals"`
	// PerPoint holds the residual of every correspondence, -1 where non-finite.
	PerPoint []float64 `json:"per_point,omitempty" yaml:"per_point,omitempty"`

	Processing struct {
		TotalNs int64            `json:"total_ns" yaml:"total_ns"`
		Stages  map[string]int64 `json:"stages_ns,omitempty" yaml:"stages_ns,omitempty"`
	} `json:"processing" yaml:"processing"`
}

// Dense returns the two-view matrix as a gonum matrix, or nil.
func (r *Result) Dense() *mat.Dense {
	if len(r.Matrix) != 3 {
		return nil
	}
	return mat.NewDense(3, 3, flatten(r.Matrix))
}

// TrifocalTensor returns the tensor as a geo value, or nil.
func (r *Result) TrifocalTensor() *geo.TrifocalTensor {
	if len(r.Tensor) != 3 {
		return nil
	}
	t := geo.NewTrifocalTensor()
	for i := range 3 {
		t.T[i] = mat.NewDense(3, 3, flatten(r.Tensor[i]))
	}
	return t
}

func rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range c {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func flatten(rows [][]float64) []float64 {
	out := make([]float64, 0, 9)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
