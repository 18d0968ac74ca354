// Package render rasterizes a scene and its simulation results into a
// top-down PNG with +y pointing up.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/signalsfoundry/multipath-simulator/core"
)

const (
	// MaxDimension caps the output size on either axis.
	MaxDimension = 16384
	// MarkerReach is the arm length, in pixels, of the transmitter and
	// receiver crosses.
	MarkerReach = 2
)

// ErrInvalidScale is returned for non-positive or oversized scales.
var ErrInvalidScale = errors.New("invalid render scale")

var (
	Background = color.RGBA{0, 0, 0, 255}
	WallColor  = color.RGBA{255, 255, 255, 255}
	PathColor  = color.RGBA{255, 0, 0, 255}
	TxColor    = color.RGBA{0, 255, 0, 255}
	RxColor    = color.RGBA{0, 128, 255, 255}
)

// QualityColors is the heat map palette.
var QualityColors = map[core.LinkQuality]color.RGBA{
	core.LinkQualityExcellent: {0, 110, 40, 255},
	core.LinkQualityGood:      {70, 140, 20, 255},
	core.LinkQualityFair:      {150, 140, 0, 255},
	core.LinkQualityPoor:      {150, 70, 0, 255},
	core.LinkQualityDown:      {40, 40, 40, 255},
}

// Frame is everything that can be drawn in one image. Width and Height are
// the room footprint in metres.
type Frame struct {
	Width, Height float64
	Walls         []core.Wall
	Rooms         []core.Room
	Transmitter   core.Vec3
	Result        *core.ReceiverResult
	Coverage      *core.CoverageMap
}

type canvas struct {
	img   *image.RGBA
	scale float64
}

// Draw rasterizes f at scale pixels per metre. Layers are painted in order:
// heat map, walls and room outlines, best paths, then the markers.
func Draw(f Frame, scale float64) (*image.RGBA, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("Draw: %w: %v", ErrInvalidScale, scale)
	}
	w := int(math.Ceil(f.Width*scale)) + 1
	h := int(math.Ceil(f.Height*scale)) + 1
	if w > MaxDimension || h > MaxDimension {
		return nil, fmt.Errorf("Draw: %w: %dx%d exceeds %d", ErrInvalidScale, w, h, MaxDimension)
	}
	w, h = max(w, 1), max(h, 1)

	c := &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h)), scale: scale}
	for i := range c.img.Pix {
		switch i % 4 {
		case 0:
			c.img.Pix[i] = Background.R
		case 1:
			c.img.Pix[i] = Background.G
		case 2:
			c.img.Pix[i] = Background.B
		default:
			c.img.Pix[i] = Background.A
		}
	}

	if f.Coverage != nil {
		c.heatMap(f.Coverage)
	}
	for _, wall := range f.Walls {
		c.line(c.toPixel(wall.A), c.toPixel(wall.B), WallColor)
	}
	for _, room := range f.Rooms {
		for i, corner := range room.Corners {
			next := room.Corners[(i+1)%len(room.Corners)]
			c.line(c.toPixel(corner), c.toPixel(next), WallColor)
		}
	}
	if f.Result != nil {
		for _, p := range f.Result.Paths {
			c.line(c.toPixel(flat(p.Segment.Origin)), c.toPixel(flat(foot(p, f.Result.Receiver))), PathColor)
		}
		c.marker(c.toPixel(flat(f.Result.Receiver)), RxColor)
	}
	c.marker(c.toPixel(flat(f.Transmitter)), TxColor)
	return c.img, nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("WritePNG: %w", err)
	}
	return nil
}

// Line returns the integer points from a to b inclusive using Bresenham's
// algorithm, in order from a.
func Line(a, b image.Point) []image.Point {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	out := make([]image.Point, 0, max(dx, -dy)+1)
	x, y := a.X, a.Y
	e := dx + dy
	for {
		out = append(out, image.Point{X: x, Y: y})
		if x == b.X && y == b.Y {
			return out
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// toPixel maps metres to unflipped pixel coordinates.
func (c *canvas) toPixel(v core.Vec2) image.Point {
	return image.Point{X: int(math.Round(v.X * c.scale)), Y: int(math.Round(v.Y * c.scale))}
}

// set writes a pixel given unflipped coordinates; row 0 is the top of the
// image so y is mirrored here.
func (c *canvas) set(p image.Point, col color.RGBA) {
	b := c.img.Bounds()
	y := b.Max.Y - 1 - p.Y
	if p.X < 0 || p.X >= b.Max.X || y < 0 || y >= b.Max.Y {
		return
	}
	c.img.SetRGBA(p.X, y, col)
}

func (c *canvas) line(a, b image.Point, col color.RGBA) {
	for _, p := range Line(a, b) {
		c.set(p, col)
	}
}

func (c *canvas) marker(p image.Point, col color.RGBA) {
	for d := -MarkerReach; d <= MarkerReach; d++ {
		c.set(image.Point{X: p.X + d, Y: p.Y}, col)
		c.set(image.Point{X: p.X, Y: p.Y + d}, col)
	}
}

func (c *canvas) heatMap(cov *core.CoverageMap) {
	for iy := 0; iy < cov.Height; iy++ {
		for ix := 0; ix < cov.Width; ix++ {
			col, ok := QualityColors[cov.At(ix, iy).Quality]
			if !ok {
				col = QualityColors[core.LinkQualityDown]
			}
			x0 := int(math.Round(float64(ix) * cov.Step * c.scale))
			x1 := int(math.Round(float64(ix+1) * cov.Step * c.scale))
			y0 := int(math.Round(float64(iy) * cov.Step * c.scale))
			y1 := int(math.Round(float64(iy+1) * cov.Step * c.scale))
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					c.set(image.Point{X: x, Y: y}, col)
				}
			}
		}
	}
}

// foot is the point on the final segment's line nearest the receiver.
func foot(p core.ResolvedPath, rx core.Vec3) core.Vec3 {
	d, err := p.Segment.Direction().Normalize()
	if err != nil {
		return p.Segment.Origin
	}
	return p.Segment.Origin.Add(d.Mul(rx.Sub(p.Segment.Origin).Dot(d)))
}

func flat(v core.Vec3) core.Vec2 { return core.Vec2{X: v.X, Y: v.Y} }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
