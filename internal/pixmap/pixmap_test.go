package pixmap

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/blocktree/internal/errkind"
)

// pageImage returns a white page with a black square covering [2,6)x[3,7).
func pageImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := color.RGBA{R: 250, G: 240, B: 230, A: 255}
			if x >= 2 && x < 6 && y >= 3 && y < 7 {
				c = color.RGBA{R: 10, G: 20, B: 30, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestConvertColorToGray(t *testing.T) {
	src := FromColor(pageImage())
	out, ok := Convert(src, Gray)
	if !ok {
		t.Fatal("Expected Color to convert to Gray")
	}
	if out.Modality() != Gray {
		t.Fatalf("Expected gray modality, got %s", out.Modality())
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			want := color.GrayModel.Convert(src.Color().At(x, y)).(color.Gray)
			if got := out.Gray().GrayAt(x, y); got != want {
				t.Fatalf("Pixel (%d,%d): want %v, got %v", x, y, want, got)
			}
		}
	}
}

func TestConvertToBiLevel(t *testing.T) {
	out, ok := Convert(FromColor(pageImage()), BiLevel)
	if !ok {
		t.Fatal("Expected Color to convert to BiLevel")
	}
	bm := out.Bitmap()
	count := 0
	for _, v := range bm.Pix {
		if v {
			count++
		}
	}
	if count != 16 {
		t.Errorf("Expected 16 foreground pixels, got %d", count)
	}
	if !bm.At(2, 3) || bm.At(0, 0) {
		t.Error("Expected the dark square to be foreground and the page background")
	}
}

func TestConvertRules(t *testing.T) {
	bm := NewBitmap(3, 3)
	bm.Set(1, 1, true)
	grad := Buffer{modality: Gradient}

	tests := []struct {
		name string
		src  Buffer
		to   Modality
		ok   bool
	}{
		{"bilevel to color", FromBitmap(bm), Color, true},
		{"bilevel to gray", FromBitmap(bm), Gray, true},
		{"gray to color", FromGray(image.NewGray(image.Rect(0, 0, 2, 2))), Color, true},
		{"color to gradient", FromColor(pageImage()), Gradient, false},
		{"gradient to gray", grad, Gray, false},
		{"absent", Buffer{}, Gray, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := Convert(tt.src, tt.to)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && out.Modality() != tt.to {
				t.Errorf("Expected modality %s, got %s", tt.to, out.Modality())
			}
		})
	}

	out, _ := Convert(FromBitmap(bm), Color)
	if c := out.Color().RGBAAt(1, 1); c.R != 0 {
		t.Errorf("Expected ink to be black, got %v", c)
	}
	if c := out.Color().RGBAAt(0, 0); c.R != 255 {
		t.Errorf("Expected background to be white, got %v", c)
	}
}

func TestCrop(t *testing.T) {
	src := FromColor(pageImage())
	c, err := src.Crop(image.Rect(2, 3, 6, 7))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if c.Size() != image.Pt(4, 4) {
		t.Fatalf("Expected 4x4 crop, got %v", c.Size())
	}
	if c.Color().Rect.Min != (image.Point{}) {
		t.Errorf("Expected crop anchored at origin, got %v", c.Color().Rect)
	}
	if got := c.Color().RGBAAt(0, 0); got.R != 10 {
		t.Errorf("Expected crop to start on the square, got %v", got)
	}

	bm, _ := Convert(src, BiLevel)
	bc, err := bm.Crop(image.Rect(1, 2, 3, 4))
	if err != nil {
		t.Fatalf("Bitmap crop failed: %v", err)
	}
	if bc.Bitmap().At(0, 0) || !bc.Bitmap().At(1, 1) {
		t.Error("Bitmap crop shifted pixels")
	}

	if _, err := src.Crop(image.Rect(8, 8, 12, 12)); !errors.Is(err, errkind.ErrDimension) {
		t.Errorf("Expected ErrDimension, got %v", err)
	}
	if _, err := (Buffer{}).Crop(image.Rect(0, 0, 1, 1)); !errors.Is(err, errkind.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestFromImage(t *testing.T) {
	bw := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.White, color.Black})
	bw.SetColorIndex(1, 2, 1)
	colored := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.White, color.RGBA{R: 255, A: 255}})

	tests := []struct {
		name    string
		img     image.Image
		want    Modality
		wantErr error
	}{
		{"rgba", image.NewRGBA(image.Rect(0, 0, 2, 2)), Color, nil},
		{"nrgba", image.NewNRGBA(image.Rect(0, 0, 2, 2)), Color, nil},
		{"gray", image.NewGray(image.Rect(0, 0, 2, 2)), Gray, nil},
		{"black and white palette", bw, BiLevel, nil},
		{"colored palette", colored, Color, nil},
		{"gray16", image.NewGray16(image.Rect(0, 0, 2, 2)), 0, errkind.ErrRuntime},
		{"empty", image.NewRGBA(image.Rectangle{}), 0, errkind.ErrInvalidArgument},
		{"nil", nil, 0, errkind.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := FromImage(tt.img)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if buf.Modality() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, buf.Modality())
			}
		})
	}

	buf, _ := FromImage(bw)
	if !buf.Bitmap().At(1, 2) || buf.Bitmap().At(0, 0) {
		t.Error("Expected black palette entries to be foreground")
	}
}

func TestFromColorRebases(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 8, 9))
	img.SetRGBA(5, 5, color.RGBA{R: 7, A: 255})
	buf := FromColor(img)
	if buf.Color().Rect != image.Rect(0, 0, 3, 4) {
		t.Fatalf("Expected rebased rect, got %v", buf.Color().Rect)
	}
	if buf.Color().RGBAAt(0, 0).R != 7 {
		t.Error("Rebase lost pixels")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 7, 5))); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	f.Close()

	buf, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if buf.Modality() != Gray || buf.Size() != image.Pt(7, 5) {
		t.Errorf("Expected 7x5 gray, got %s %v", buf.Modality(), buf.Size())
	}

	size, err := Dimensions(path)
	if err != nil || size != image.Pt(7, 5) {
		t.Errorf("Dimensions: got %v, %v", size, err)
	}

	if _, err := Open(filepath.Join(dir, "missing.png")); !errors.Is(err, errkind.ErrIO) {
		t.Errorf("Expected ErrIO for a missing file, got %v", err)
	}

	junk := filepath.Join(dir, "junk.png")
	os.WriteFile(junk, []byte("not an image"), 0644)
	if _, err := Open(junk); !errors.Is(err, errkind.ErrIO) {
		t.Errorf("Expected ErrIO for an undecodable file, got %v", err)
	}
}

func TestOtsuThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	img.Pix = []uint8{20, 30, 200, 210}
	th := OtsuThreshold(img)
	if th <= 30 || th > 200 {
		t.Errorf("Expected threshold in (30,200], got %d", th)
	}

	flat := image.NewGray(image.Rect(0, 0, 3, 3))
	for i := range flat.Pix {
		flat.Pix[i] = 255
	}
	if th := OtsuThreshold(flat); th != 128 {
		t.Errorf("Expected mid level for a constant image, got %d", th)
	}
}

func TestStrokeWidth(t *testing.T) {
	bm := NewBitmap(10, 3)
	for x := 0; x < 3; x++ {
		bm.Set(x, 0, true)
		bm.Set(x+5, 1, true)
	}
	for x := 0; x < 3; x++ {
		bm.Set(x+6, 2, true)
	}
	if w := StrokeWidth(bm); w != 3 {
		t.Errorf("Expected median run 3, got %f", w)
	}
	if w := StrokeWidth(NewBitmap(4, 4)); w != 0 {
		t.Errorf("Expected 0 for an empty bitmap, got %f", w)
	}
}
