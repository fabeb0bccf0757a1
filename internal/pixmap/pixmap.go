// Package pixmap holds the pixel buffers cached by blocks.
//
// A Buffer is a tagged union over the four modalities a block can hold:
// full color, grayscale, bi-level and gradient field. Buffers are always
// anchored at the origin; their size equals the box they were cropped to.
package pixmap

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/gradient"
)

// Modality identifies a pixel representation.
type Modality int

const (
	Color Modality = iota
	Gray
	BiLevel
	Gradient
)

// Modalities lists every modality in cache slot order.
var Modalities = [...]Modality{Color, Gray, BiLevel, Gradient}

func (m Modality) String() string {
	switch m {
	case Color:
		return "color"
	case Gray:
		return "gray"
	case BiLevel:
		return "bilevel"
	case Gradient:
		return "gradient"
	default:
		return fmt.Sprintf("Modality(%d)", int(m))
	}
}

// Valid reports whether m is one of the four known modalities.
func (m Modality) Valid() bool {
	return m >= Color && m <= Gradient
}

// Bitmap is a bi-level image; true pixels are foreground (ink).
type Bitmap struct {
	Width, Height int
	Pix           []bool
}

// NewBitmap returns an all-background bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{Width: w, Height: h, Pix: make([]bool, w*h)}
}

// At reports whether (x, y) is foreground.
func (b *Bitmap) At(x, y int) bool { return b.Pix[y*b.Width+x] }

// Set marks (x, y) as foreground or background.
func (b *Bitmap) Set(x, y int, v bool) { b.Pix[y*b.Width+x] = v }

// Buffer is one modality-specific pixel array. The zero Buffer is absent.
type Buffer struct {
	modality Modality
	color    *image.RGBA
	gray     *image.Gray
	bits     *Bitmap
	grad     *gradient.Field
}

// FromColor wraps img, copying it when it is not anchored at the origin.
func FromColor(img *image.RGBA) Buffer {
	if img == nil {
		return Buffer{}
	}
	if img.Rect.Min != (image.Point{}) {
		c := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
		draw.Draw(c, c.Rect, img, img.Rect.Min, draw.Src)
		img = c
	}
	return Buffer{modality: Color, color: img}
}

// FromGray wraps img, copying it when it is not anchored at the origin.
func FromGray(img *image.Gray) Buffer {
	if img == nil {
		return Buffer{}
	}
	if img.Rect.Min != (image.Point{}) {
		c := image.NewGray(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
		draw.Draw(c, c.Rect, img, img.Rect.Min, draw.Src)
		img = c
	}
	return Buffer{modality: Gray, gray: img}
}

// FromBitmap wraps a bi-level image.
func FromBitmap(b *Bitmap) Buffer {
	if b == nil {
		return Buffer{}
	}
	return Buffer{modality: BiLevel, bits: b}
}

// FromGradient wraps a gradient field.
func FromGradient(f *gradient.Field) Buffer {
	if f == nil {
		return Buffer{}
	}
	return Buffer{modality: Gradient, grad: f}
}

// IsZero reports whether the buffer is absent.
func (b Buffer) IsZero() bool {
	return b.color == nil && b.gray == nil && b.bits == nil && b.grad == nil
}

// Modality returns the buffer's modality. It is meaningless on a zero Buffer.
func (b Buffer) Modality() Modality { return b.modality }

// Color returns the color image, or nil for other modalities.
func (b Buffer) Color() *image.RGBA { return b.color }

// Gray returns the grayscale image, or nil for other modalities.
func (b Buffer) Gray() *image.Gray { return b.gray }

// Bitmap returns the bi-level image, or nil for other modalities.
func (b Buffer) Bitmap() *Bitmap { return b.bits }

// Gradient returns the gradient field, or nil for other modalities.
func (b Buffer) Gradient() *gradient.Field { return b.grad }

// Size returns the buffer dimensions in pixels.
func (b Buffer) Size() image.Point {
	switch {
	case b.color != nil:
		return b.color.Rect.Size()
	case b.gray != nil:
		return b.gray.Rect.Size()
	case b.bits != nil:
		return image.Pt(b.bits.Width, b.bits.Height)
	case b.grad != nil:
		return image.Pt(b.grad.Width(), b.grad.Height())
	}
	return image.Point{}
}

// Crop copies the part of b covered by r (buffer coordinates) into a new
// buffer anchored at the origin.
func (b Buffer) Crop(r image.Rectangle) (Buffer, error) {
	if b.IsZero() {
		return Buffer{}, fmt.Errorf("%w: crop of absent buffer", errkind.ErrInvalidArgument)
	}
	bounds := image.Rectangle{Max: b.Size()}
	if r.Empty() || !r.In(bounds) {
		return Buffer{}, fmt.Errorf("%w: crop %v outside %v", errkind.ErrDimension, r, bounds)
	}
	dst := image.Rect(0, 0, r.Dx(), r.Dy())
	switch b.modality {
	case Color:
		c := image.NewRGBA(dst)
		draw.Draw(c, dst, b.color, r.Min, draw.Src)
		return Buffer{modality: Color, color: c}, nil
	case Gray:
		g := image.NewGray(dst)
		draw.Draw(g, dst, b.gray, r.Min, draw.Src)
		return Buffer{modality: Gray, gray: g}, nil
	case BiLevel:
		bm := NewBitmap(r.Dx(), r.Dy())
		for y := 0; y < bm.Height; y++ {
			src := b.bits.Pix[(r.Min.Y+y)*b.bits.Width+r.Min.X:]
			copy(bm.Pix[y*bm.Width:(y+1)*bm.Width], src[:bm.Width])
		}
		return Buffer{modality: BiLevel, bits: bm}, nil
	default:
		f, err := b.grad.Crop(r)
		if err != nil {
			return Buffer{}, err
		}
		return Buffer{modality: Gradient, grad: f}, nil
	}
}
