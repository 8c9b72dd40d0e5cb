package visualize

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countColor(img *image.NRGBA, c color.Color) int {
	want := color.NRGBAModel.Convert(c).(color.NRGBA)
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y) == want {
				n++
			}
		}
	}
	return n
}

func TestEpipolarOverlay(t *testing.T) {
	tv := synth.NewGenerator(11).TwoView(15, false)
	opts := DefaultOverlayOptions()
	opts.MaxSide = 400
	opts.Label = "F"

	img, err := EpipolarOverlay(tv.F, tv.Pairs, opts)
	require.NoError(t, err)
	b := img.Bounds()
	assert.LessOrEqual(t, b.Dx(), 401)
	assert.LessOrEqual(t, b.Dy(), 401)
	assert.Positive(t, countColor(img, opts.LineColor))
	assert.Positive(t, countColor(img, opts.PointColor))
	assert.Positive(t, countColor(img, color.Black), "label drawn")
}

func TestEpipolarOverlay_Empty(t *testing.T) {
	tv := synth.NewGenerator(1).TwoView(8, false)
	_, err := EpipolarOverlay(tv.F, nil, DefaultOverlayOptions())
	assert.ErrorIs(t, err, geo.ErrInvalidInput)
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, SavePNG(imaging.New(10, 8, color.White), path))

	back, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 10, back.Bounds().Dx())
}

func TestResidualHistogram(t *testing.T) {
	p, err := estimate.NewBuilder().WithPerPointResiduals(true).Build()
	require.NoError(t, err)
	pairs := synth.NewGenerator(5).AddNoise(synth.NewGenerator(5).TwoView(30, false).Pairs, 0.5)
	res, err := p.Fundamental(context.Background(), pairs)
	require.NoError(t, err)

	plt, err := ResidualHistogram(res, 10)
	require.NoError(t, err)
	assert.Contains(t, plt.Title.Text, "fundamental")
	assert.Equal(t, "sampson", plt.X.Label.Text)

	path := filepath.Join(t.TempDir(), "hist.png")
	require.NoError(t, SaveResidualHistogram(res, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestResidualHistogram_NoValues(t *testing.T) {
	_, err := ResidualHistogram(&estimate.Result{PerPoint: []float64{-1}}, 0)
	assert.ErrorIs(t, err, ErrNoResiduals)
	assert.ErrorIs(t, SaveResidualHistogram(&estimate.Result{}, filepath.Join(t.TempDir(), "x.png")), ErrNoResiduals)
}
