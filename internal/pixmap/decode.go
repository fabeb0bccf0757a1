package pixmap

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/ivlev/blocktree/internal/errkind"
)

// Open decodes the image stored at path. It fails with errkind.ErrIO when the
// file cannot be read or decoded, and with errkind.ErrRuntime when the
// decoded pixel layout is not one of the supported modalities.
func Open(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: open image: %w", errkind.ErrIO, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: decode image %s: %w", errkind.ErrIO, path, err)
	}
	buf, err := FromImage(img)
	if err != nil {
		return Buffer{}, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Dimensions reads only the header of the image at path.
func Dimensions(path string) (image.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: open image: %w", errkind.ErrIO, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: decode image header %s: %w", errkind.ErrIO, path, err)
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}

// FromImage classifies a decoded image into a Buffer. Two-entry black and
// white palettes become bi-level, 8-bit gray stays gray, 8-bit color layouts
// become color. Deep (16-bit), CMYK and alpha-only layouts are rejected.
func FromImage(img image.Image) (Buffer, error) {
	if img == nil {
		return Buffer{}, fmt.Errorf("%w: nil image", errkind.ErrInvalidArgument)
	}
	if img.Bounds().Empty() {
		return Buffer{}, fmt.Errorf("%w: empty image", errkind.ErrInvalidArgument)
	}
	switch src := img.(type) {
	case *image.RGBA:
		return FromColor(src), nil
	case *image.Gray:
		return FromGray(src), nil
	case *image.Paletted:
		if isBlackWhite(src.Palette) {
			return FromBitmap(palettedToBitmap(src)), nil
		}
		return FromColor(toRGBA(src)), nil
	case *image.NRGBA, *image.YCbCr:
		return FromColor(toRGBA(src)), nil
	default:
		return Buffer{}, fmt.Errorf("%w: unsupported pixel layout %T", errkind.ErrRuntime, img)
	}
}

// SupportedFormats returns the image file extensions Open can decode.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp"}
}

// IsSupportedFormat checks the extension of path against SupportedFormats.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	c := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(c, c.Rect, img, b.Min, draw.Src)
	return c
}

func isBlackWhite(p color.Palette) bool {
	if len(p) != 2 {
		return false
	}
	y0 := color.GrayModel.Convert(p[0]).(color.Gray).Y
	y1 := color.GrayModel.Convert(p[1]).(color.Gray).Y
	return (y0 == 0 && y1 == 255) || (y0 == 255 && y1 == 0)
}

func palettedToBitmap(src *image.Paletted) *Bitmap {
	b := src.Bounds()
	bm := NewBitmap(b.Dx(), b.Dy())
	ink := uint8(0)
	if color.GrayModel.Convert(src.Palette[1]).(color.Gray).Y == 0 {
		ink = 1
	}
	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			bm.Set(x, y, src.ColorIndexAt(b.Min.X+x, b.Min.Y+y) == ink)
		}
	}
	return bm
}
