package visualize

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoResiduals is returned when a result carries no per-point residuals.
var ErrNoResiduals = errors.New("result has no per-point residuals")

// DefaultBins is the histogram bin count.
const DefaultBins = 20

// ResidualHistogram plots the distribution of res.PerPoint. Entries marked
// non-finite (negative) are left out.
func ResidualHistogram(res *estimate.Result, bins int) (*plot.Plot, error) {
	values := make(plotter.Values, 0, len(res.PerPoint))
	for _, v := range res.PerPoint {
		if v >= 0 {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, ErrNoResiduals
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s residuals (%d correspondences)", res.Kind, len(values))
	p.X.Label.Text = res.Residuals.Metric
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(values, bins)
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	p.Add(hist)
	return p, nil
}

// SaveResidualHistogram renders the residual histogram of res to path.
func SaveResidualHistogram(res *estimate.Result, path string) error {
	p, err := ResidualHistogram(res, DefaultBins)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
