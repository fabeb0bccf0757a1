package gradient

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ivlev/blocktree/internal/errkind"
)

func rampImage(w, h, step int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * step)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestGaussianGradientRamp(t *testing.T) {
	img := rampImage(20, 10, 10)

	for _, rule := range []Projection{Luminance, MaxChannel} {
		t.Run(rule.String(), func(t *testing.T) {
			f, err := NewGaussianGradient(img, rule, 1.0)
			if err != nil {
				t.Fatalf("NewGaussianGradient failed: %v", err)
			}
			if f.Width() != 20 || f.Height() != 10 {
				t.Fatalf("Expected 20x10 field, got %dx%d", f.Width(), f.Height())
			}
			gx, gy := f.At(10, 5)
			if math.Abs(gx-10) > 1e-6 {
				t.Errorf("Expected gx=10 inside the ramp, got %f", gx)
			}
			if math.Abs(gy) > 1e-6 {
				t.Errorf("Expected gy=0 inside the ramp, got %f", gy)
			}
		})
	}
}

func TestGaussianGradientInvalid(t *testing.T) {
	if _, err := NewGaussianGradient(nil, Luminance, 1); !errors.Is(err, errkind.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil image, got %v", err)
	}
	if _, err := NewGaussianGradient(rampImage(4, 4, 1), Luminance, 0); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain for sigma 0, got %v", err)
	}
}

func TestMinModule(t *testing.T) {
	f, err := NewGaussianGradient(rampImage(20, 10, 10), Luminance, 1.0)
	if err != nil {
		t.Fatalf("NewGaussianGradient failed: %v", err)
	}
	if m := f.Module(10, 5); math.Abs(m-10) > 1e-6 {
		t.Fatalf("Expected module 10, got %f", m)
	}
	f.SetMinModule(11)
	if f.MinModule() != 11 {
		t.Errorf("Expected MinModule 11, got %f", f.MinModule())
	}
	if m := f.Module(10, 5); m != 0 {
		t.Errorf("Expected module below threshold to be 0, got %f", m)
	}
}

func TestDiffuseConstantFieldStops(t *testing.T) {
	f, err := NewGaussianGradient(rampImage(20, 10, 10), Luminance, 1.0)
	if err != nil {
		t.Fatalf("NewGaussianGradient failed: %v", err)
	}
	flat := rampImage(8, 8, 0)
	g, err := NewGaussianGradient(flat, Luminance, 1.0)
	if err != nil {
		t.Fatalf("NewGaussianGradient failed: %v", err)
	}
	if n := g.Diffuse(50, 1e-3); n != 1 {
		t.Errorf("Expected a null field to converge after 1 iteration, got %d", n)
	}
	if n := f.Diffuse(3, 0); n != 3 {
		t.Errorf("Expected iteration cap 3, got %d", n)
	}
}

func TestCrop(t *testing.T) {
	f, err := NewGaussianGradient(rampImage(20, 10, 10), Luminance, 1.0)
	if err != nil {
		t.Fatalf("NewGaussianGradient failed: %v", err)
	}
	c, err := f.Crop(image.Rect(5, 2, 15, 8))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if c.Width() != 10 || c.Height() != 6 {
		t.Fatalf("Expected 10x6 crop, got %dx%d", c.Width(), c.Height())
	}
	wantX, wantY := f.At(10, 5)
	gotX, gotY := c.At(5, 3)
	if wantX != gotX || wantY != gotY {
		t.Errorf("Crop moved data: want (%f,%f), got (%f,%f)", wantX, wantY, gotX, gotY)
	}

	if _, err := f.Crop(image.Rect(15, 0, 25, 5)); !errors.Is(err, errkind.ErrDimension) {
		t.Errorf("Expected ErrDimension for out-of-range crop, got %v", err)
	}
}

func TestParseProjection(t *testing.T) {
	for _, p := range []Projection{Luminance, MaxChannel} {
		got, err := ParseProjection(p.String())
		if err != nil || got != p {
			t.Errorf("ParseProjection(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParseProjection("hue"); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
}
