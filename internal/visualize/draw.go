package visualize

import (
	"image"
	"image/color"
	"math"
)

// drawLine draws a line between two points using a simple Bresenham variant.
// Pixels outside dst are skipped.
func drawLine(dst *image.NRGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.NRGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

// drawCross marks p with a plus sign of the given half size.
func drawCross(dst *image.NRGBA, p image.Point, half int, col color.Color) {
	drawLine(dst, image.Pt(p.X-half, p.Y), image.Pt(p.X+half, p.Y), col, 1)
	drawLine(dst, image.Pt(p.X, p.Y-half), image.Pt(p.X, p.Y+half), col, 1)
}
