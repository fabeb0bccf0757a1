package pixmap

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ToGray converts a color image to luminance.
func ToGray(img *image.RGBA) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	draw.Draw(gray, gray.Rect, img, img.Rect.Min, draw.Src)
	return gray
}

// ToBiLevel binarises a grayscale image with Otsu's threshold. Pixels darker
// than the threshold become foreground.
func ToBiLevel(img *image.Gray) *Bitmap {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	bm := NewBitmap(w, h)
	t := OtsuThreshold(img)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			bm.Pix[y*w+x] = row[x] < t
		}
	}
	return bm
}

// GrayToColor replicates luminance into the three channels.
func GrayToColor(img *image.Gray) *image.RGBA {
	c := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	draw.Draw(c, c.Rect, img, img.Rect.Min, draw.Src)
	return c
}

// BitmapToColor paints foreground black on a white page.
func BitmapToColor(b *Bitmap) *image.RGBA {
	c := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if b.At(x, y) {
				c.SetRGBA(x, y, color.RGBA{A: 255})
			} else {
				c.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	return c
}

// Convert derives the modality to from b. Direct rules are Color→Gray,
// Gray→BiLevel, BiLevel→Color and Gray→Color; the remaining pairs chain
// through them. Gradient fields convert to nothing and nothing converts to a
// gradient here, so ok is false for those.
func Convert(b Buffer, to Modality) (out Buffer, ok bool) {
	if b.IsZero() || b.modality == Gradient || to == Gradient {
		return Buffer{}, false
	}
	if b.modality == to {
		return b, true
	}
	switch b.modality {
	case Color:
		g := ToGray(b.color)
		if to == Gray {
			return Buffer{modality: Gray, gray: g}, true
		}
		return Buffer{modality: BiLevel, bits: ToBiLevel(g)}, true
	case Gray:
		if to == BiLevel {
			return Buffer{modality: BiLevel, bits: ToBiLevel(b.gray)}, true
		}
		return Buffer{modality: Color, color: GrayToColor(b.gray)}, true
	case BiLevel:
		c := BitmapToColor(b.bits)
		if to == Color {
			return Buffer{modality: Color, color: c}, true
		}
		return Buffer{modality: Gray, gray: ToGray(c)}, true
	}
	return Buffer{}, false
}
