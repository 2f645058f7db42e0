package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// kappa places cubic control points for a quarter-circle approximation.
const kappa = 0.5522847498

// Canvas is the persistent accumulation surface. Every primitive is
// composited with source-over onto the previous contents.
type Canvas struct {
	img *image.RGBA
	z   *vector.Rasterizer
	src image.Uniform
}

// NewCanvas allocates a transparent surface of the given size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		img: image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		z:   vector.NewRasterizer(1, 1),
	}
}

// Image exposes the backing bitmap (premultiplied RGBA).
func (c *Canvas) Image() *image.RGBA { return c.img }

// Size returns the surface dimensions.
func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Clear resets every pixel to transparent.
func (c *Canvas) Clear() {
	clear(c.img.Pix)
}

// Fade composites black at the given opacity over the whole surface.
func (c *Canvas) Fade(alpha float64) {
	a := uint8(math.Round(clamp01(alpha) * 255))
	if a == 0 {
		return
	}
	c.src.C = color.NRGBA{A: a}
	draw.Draw(c.img, c.img.Bounds(), &c.src, image.Point{}, draw.Over)
}

// StrokeLine draws a butt-capped segment of the given width. Zero-length
// segments draw nothing.
func (c *Canvas) StrokeLine(x0, y0, x1, y1, width float64, col color.NRGBA) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if width <= 0 || length < 1e-9 || col.A == 0 || !finite(x0, y0, x1, y1) {
		return
	}
	nx := -dy / length * width * 0.5
	ny := dx / length * width * 0.5

	quad := [4][2]float64{
		{x0 + nx, y0 + ny},
		{x1 + nx, y1 + ny},
		{x1 - nx, y1 - ny},
		{x0 - nx, y0 - ny},
	}
	minX, minY := quad[0][0], quad[0][1]
	maxX, maxY := minX, minY
	for _, p := range quad[1:] {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	r, ok := c.region(minX, minY, maxX, maxY)
	if !ok {
		return
	}
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	c.z.MoveTo(float32(quad[0][0]-ox), float32(quad[0][1]-oy))
	for _, p := range quad[1:] {
		c.z.LineTo(float32(p[0]-ox), float32(p[1]-oy))
	}
	c.z.ClosePath()
	c.fill(r, col)
}

// FillCircle draws a filled disc of the given diameter.
func (c *Canvas) FillCircle(cx, cy, diameter float64, col color.NRGBA) {
	if diameter <= 0 || col.A == 0 || !finite(cx, cy) {
		return
	}
	rad := diameter * 0.5
	r, ok := c.region(cx-rad, cy-rad, cx+rad, cy+rad)
	if !ok {
		return
	}
	x := float32(cx - float64(r.Min.X))
	y := float32(cy - float64(r.Min.Y))
	rr := float32(rad)
	k := float32(rad * kappa)

	c.z.MoveTo(x+rr, y)
	c.z.CubeTo(x+rr, y+k, x+k, y+rr, x, y+rr)
	c.z.CubeTo(x-k, y+rr, x-rr, y+k, x-rr, y)
	c.z.CubeTo(x-rr, y-k, x-k, y-rr, x, y-rr)
	c.z.CubeTo(x+k, y-rr, x+rr, y-k, x+rr, y)
	c.z.ClosePath()
	c.fill(r, col)
}

// region clips a float bounding box to the surface and resets the
// rasterizer to cover just that area.
func (c *Canvas) region(minX, minY, maxX, maxY float64) (image.Rectangle, bool) {
	r := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1,
	).Intersect(c.img.Bounds())
	if r.Empty() {
		return r, false
	}
	c.z.Reset(r.Dx(), r.Dy())
	c.z.DrawOp = draw.Over
	return r, true
}

func (c *Canvas) fill(r image.Rectangle, col color.NRGBA) {
	c.src.C = col
	c.z.Draw(c.img, r, &c.src, image.Point{})
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if !isFinite(v) {
			return false
		}
	}
	return true
}
