// Package geometry provides the coordinate types shared by the viewer layers.
package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Ratio returns the per-axis ratio s/other.
func (s Size) Ratio(other Size) Point2D {
	return Point2D{X: s.Width / other.Width, Y: s.Height / other.Height}
}

// Transform maps a layer's own pixel space onto the screen:
//
//	screen = Scale * (layer + Offset)
//
// Offset is expressed in layer units, so layers of different resolution
// each carry their own Offset.
type Transform struct {
	Scale  Point2D
	Offset Point2D
}

// Apply maps a layer-space point to screen space.
func (t Transform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.Scale.X * (p.X + t.Offset.X),
		Y: t.Scale.Y * (p.Y + t.Offset.Y),
	}
}

// Invert maps a screen-space point back into layer space.
func (t Transform) Invert(p Point2D) Point2D {
	return Point2D{
		X: p.X/t.Scale.X - t.Offset.X,
		Y: p.Y/t.Scale.Y - t.Offset.Y,
	}
}

// Aff3 returns the transform as the row-major matrix used by x/image/draw.
func (t Transform) Aff3() f64.Aff3 {
	return f64.Aff3{
		t.Scale.X, 0, t.Scale.X * t.Offset.X,
		0, t.Scale.Y, t.Scale.Y * t.Offset.Y,
	}
}

// Rescale returns the same placement expressed for a layer whose pixels are
// ratio times larger than this one's. The scale grows by ratio and the offset
// shrinks by it, so Apply(p/ratio) under the result equals Apply(p) here.
func (t Transform) Rescale(ratio Point2D) Transform {
	return Transform{
		Scale:  Point2D{X: t.Scale.X * ratio.X, Y: t.Scale.Y * ratio.Y},
		Offset: Point2D{X: t.Offset.X / ratio.X, Y: t.Offset.Y / ratio.Y},
	}
}
