package block

import (
	"fmt"
	"image"
)

// Rect is an integer box with inclusive edges: a Rect{2, 2, 5, 5} covers
// sixteen pixels. A Rect with Right < Left or Bottom < Top is invalid.
type Rect struct {
	Left, Top, Right, Bottom int
}

// NoRect is the canonical invalid (uninitialized) rectangle.
var NoRect = Rect{Left: 0, Top: 0, Right: -1, Bottom: -1}

// NewRect creates a Rect from its inclusive edges.
func NewRect(left, top, right, bottom int) Rect {
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// RectFromImage converts a half-open image.Rectangle.
func RectFromImage(r image.Rectangle) Rect {
	if r.Empty() {
		return NoRect
	}
	return Rect{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X - 1, Bottom: r.Max.Y - 1}
}

// IsValid reports whether r covers at least one pixel.
func (r Rect) IsValid() bool {
	return r.Right >= r.Left && r.Bottom >= r.Top
}

// Width returns the number of columns covered by r.
func (r Rect) Width() int {
	if !r.IsValid() {
		return 0
	}
	return r.Right - r.Left + 1
}

// Height returns the number of rows covered by r.
func (r Rect) Height() int {
	if !r.IsValid() {
		return 0
	}
	return r.Bottom - r.Top + 1
}

// Area returns the number of pixels covered by r.
func (r Rect) Area() int {
	return r.Width() * r.Height()
}

// Size returns the dimensions of r.
func (r Rect) Size() image.Point {
	return image.Pt(r.Width(), r.Height())
}

// Intersect returns the common part of r and o, possibly invalid.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
}

// Union returns the smallest rectangle containing r and o. Invalid operands
// are ignored.
func (r Rect) Union(o Rect) Rect {
	if !r.IsValid() {
		return o
	}
	if !o.IsValid() {
		return r
	}
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.IsValid() && r.IsValid() &&
		o.Left >= r.Left && o.Top >= r.Top && o.Right <= r.Right && o.Bottom <= r.Bottom
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Inflate returns r grown by d pixels on every side.
func (r Rect) Inflate(d int) Rect {
	return Rect{Left: r.Left - d, Top: r.Top - d, Right: r.Right + d, Bottom: r.Bottom + d}
}

// Image converts r to a half-open image.Rectangle.
func (r Rect) Image() image.Rectangle {
	if !r.IsValid() {
		return image.Rectangle{}
	}
	return image.Rect(r.Left, r.Top, r.Right+1, r.Bottom+1)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}
