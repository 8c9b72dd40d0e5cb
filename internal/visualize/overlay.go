// Package visualize renders debug images for estimation results.
package visualize

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/mvgeo/internal/epipolar"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/mat"
)

// OverlayOptions controls the epipolar overlay.
type OverlayOptions struct {
	// MaxSide bounds the longer canvas side in pixels.
	MaxSide int
	Margin  int
	// MaxLines limits how many epipolar lines are drawn; 0 draws all.
	MaxLines   int
	Background color.Color
	PointColor color.Color
	LineColor  color.Color
	Label      string
}

// DefaultOverlayOptions returns the options used by the CLI.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		MaxSide:    1024,
		Margin:     20,
		MaxLines:   50,
		Background: color.White,
		PointColor: color.NRGBA{R: 220, A: 255},
		LineColor:  color.NRGBA{G: 120, B: 200, A: 255},
	}
}

// canvas maps second-view image coordinates to overlay pixels.
type canvas struct {
	minX, minY float64
	scale      float64
	margin     int
}

func (c canvas) pixel(x, y float64) image.Point {
	return image.Pt(
		int(math.Round((x-c.minX)*c.scale))+c.margin,
		int(math.Round((y-c.minY)*c.scale))+c.margin,
	)
}

// EpipolarOverlay draws the second-view observations of pairs together with
// the epipolar lines F·p1. A correct F puts every cross on its line.
func EpipolarOverlay(f mat.Matrix, pairs []geo.AssociatedPair, opts OverlayOptions) (*image.NRGBA, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("overlay needs at least one pair: %w", geo.ErrInvalidInput)
	}
	if opts.MaxSide <= 0 {
		opts.MaxSide = DefaultOverlayOptions().MaxSide
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pairs {
		minX, maxX = math.Min(minX, p.P2.X), math.Max(maxX, p.P2.X)
		minY, maxY = math.Min(minY, p.P2.Y), math.Max(maxY, p.P2.Y)
	}
	extent := math.Max(math.Max(maxX-minX, maxY-minY), 1)
	inner := float64(opts.MaxSide - 2*opts.Margin)
	if inner < 1 {
		inner = 1
	}
	cv := canvas{minX: minX, minY: minY, scale: inner / extent, margin: opts.Margin}
	w := int(math.Ceil((maxX-minX)*cv.scale)) + 2*opts.Margin + 1
	h := int(math.Ceil((maxY-minY)*cv.scale)) + 2*opts.Margin + 1

	img := imaging.New(w, h, opts.Background)

	// line ends at the canvas border, in image coordinates
	left := minX - float64(opts.Margin)/cv.scale
	right := maxX + float64(opts.Margin)/cv.scale
	top := minY - float64(opts.Margin)/cv.scale
	bottom := maxY + float64(opts.Margin)/cv.scale

	for i, p := range pairs {
		if opts.MaxLines > 0 && i >= opts.MaxLines {
			break
		}
		l := epipolar.EpipolarLine(f, p.P1)
		var a, b image.Point
		switch {
		case math.Abs(l.Y) >= math.Abs(l.X) && l.Y != 0:
			a = cv.pixel(left, -(l.X*left+l.Z)/l.Y)
			b = cv.pixel(right, -(l.X*right+l.Z)/l.Y)
		case l.X != 0:
			a = cv.pixel(-(l.Y*top+l.Z)/l.X, top)
			b = cv.pixel(-(l.Y*bottom+l.Z)/l.X, bottom)
		default:
			continue
		}
		drawLine(img, a, b, opts.LineColor, 1)
	}
	for _, p := range pairs {
		drawCross(img, cv.pixel(p.P2.X, p.P2.Y), 3, opts.PointColor)
	}

	if opts.Label != "" {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Black),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(4, basicfont.Face7x13.Metrics().Ascent.Ceil()+2),
		}
		d.DrawString(opts.Label)
	}
	return img, nil
}

// SavePNG writes img to path; the extension picks the encoder.
func SavePNG(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
