// Package gradient computes Gaussian derivative fields over color images.
//
// A Field stores the horizontal and vertical derivative of an image as two
// gonum matrices (rows are image rows). Fields can be smoothed in place with
// Diffuse and cropped to sub-rectangles.
package gradient

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ivlev/blocktree/internal/errkind"
)

// Projection selects how the three color channels collapse into one
// derivative per pixel.
type Projection int

const (
	// Luminance derives the luma plane only.
	Luminance Projection = iota
	// MaxChannel keeps, per pixel, the channel with the strongest response.
	MaxChannel
)

func (p Projection) String() string {
	switch p {
	case Luminance:
		return "luminance"
	case MaxChannel:
		return "max-channel"
	default:
		return fmt.Sprintf("Projection(%d)", int(p))
	}
}

// ParseProjection maps "luminance" and "max-channel" to a Projection.
func ParseProjection(s string) (Projection, error) {
	for _, p := range []Projection{Luminance, MaxChannel} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown projection %q", errkind.ErrDomain, s)
}

// Field is a dense gradient vector field.
type Field struct {
	dx, dy    *mat.Dense
	minModule float64
}

// NewGaussianGradient derives img with Gaussian derivative kernels of scale sigma.
func NewGaussianGradient(img *image.RGBA, rule Projection, sigma float64) (*Field, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", errkind.ErrInvalidArgument)
	}
	if sigma <= 0 || math.IsNaN(sigma) {
		return nil, fmt.Errorf("%w: sigma %v", errkind.ErrDomain, sigma)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty image", errkind.ErrInvalidArgument)
	}

	smooth, deriv := kernels(sigma)
	planes := projectPlanes(img, rule)

	var gx, gy []float64
	for i, plane := range planes {
		px := convolveCols(convolveRows(plane, w, h, deriv), w, h, smooth)
		py := convolveCols(convolveRows(plane, w, h, smooth), w, h, deriv)
		if i == 0 {
			gx, gy = px, py
			continue
		}
		for k := range gx {
			if px[k]*px[k]+py[k]*py[k] > gx[k]*gx[k]+gy[k]*gy[k] {
				gx[k], gy[k] = px[k], py[k]
			}
		}
	}

	return &Field{
		dx: mat.NewDense(h, w, gx),
		dy: mat.NewDense(h, w, gy),
	}, nil
}

// Width returns the field width in pixels.
func (f *Field) Width() int {
	_, c := f.dx.Dims()
	return c
}

// Height returns the field height in pixels.
func (f *Field) Height() int {
	r, _ := f.dx.Dims()
	return r
}

// At returns the derivative vector at (x, y).
func (f *Field) At(x, y int) (gx, gy float64) {
	return f.dx.At(y, x), f.dy.At(y, x)
}

// Module returns the vector length at (x, y), or 0 when it is below MinModule.
func (f *Field) Module(x, y int) float64 {
	gx, gy := f.At(x, y)
	m := math.Hypot(gx, gy)
	if m < f.minModule {
		return 0
	}
	return m
}

// MinModule returns the module below which vectors are treated as null.
func (f *Field) MinModule() float64 { return f.minModule }

// SetMinModule sets the module below which vectors are treated as null.
func (f *Field) SetMinModule(v float64) { f.minModule = v }

// Diffuse smooths the field with a 4-neighbour averaging step until the
// largest per-pixel change drops under maxDivergence or maxIterations is hit.
// It returns the number of iterations run.
func (f *Field) Diffuse(maxIterations int, maxDivergence float64) int {
	w, h := f.Width(), f.Height()
	iter := 0
	for ; iter < maxIterations; iter++ {
		cx := diffuseStep(f.dx, w, h)
		cy := diffuseStep(f.dy, w, h)
		if math.Max(cx, cy) < maxDivergence {
			iter++
			break
		}
	}
	return iter
}

// Crop returns a copy of the sub-field covered by r, in field coordinates.
func (f *Field) Crop(r image.Rectangle) (*Field, error) {
	bounds := image.Rect(0, 0, f.Width(), f.Height())
	if r.Empty() || !r.In(bounds) {
		return nil, fmt.Errorf("%w: crop %v outside %v", errkind.ErrDimension, r, bounds)
	}
	return &Field{
		dx:        mat.DenseCopyOf(f.dx.Slice(r.Min.Y, r.Max.Y, r.Min.X, r.Max.X)),
		dy:        mat.DenseCopyOf(f.dy.Slice(r.Min.Y, r.Max.Y, r.Min.X, r.Max.X)),
		minModule: f.minModule,
	}, nil
}

// kernels returns the normalised Gaussian and first-derivative kernels,
// both of length 2*radius+1 and centred on index radius.
func kernels(sigma float64) (smooth, deriv []float64) {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	n := 2*radius + 1
	smooth = make([]float64, n)
	deriv = make([]float64, n)
	var moment float64
	for i := -radius; i <= radius; i++ {
		g := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		smooth[i+radius] = g
		deriv[i+radius] = float64(i) * g
		moment += float64(i*i) * g
	}
	floats.Scale(1/floats.Sum(smooth), smooth)
	// a unit ramp must derive to exactly 1
	floats.Scale(1/moment, deriv)
	return smooth, deriv
}

func projectPlanes(img *image.RGBA, rule Projection) [][]float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	n := w * h
	if rule == MaxChannel {
		planes := [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
		for y := 0; y < h; y++ {
			row := img.Pix[y*img.Stride:]
			for x := 0; x < w; x++ {
				for c := 0; c < 3; c++ {
					planes[c][y*w+x] = float64(row[x*4+c])
				}
			}
		}
		return planes
	}
	plane := make([]float64, n)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			plane[y*w+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}
	return [][]float64{plane}
}

func convolveRows(src []float64, w, h int, k []float64) []float64 {
	radius := len(k) / 2
	dst := make([]float64, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for i, kv := range k {
				sum += kv * row[clamp(x+i-radius, w)]
			}
			dst[y*w+x] = sum
		}
	}
	return dst
}

func convolveCols(src []float64, w, h int, k []float64) []float64 {
	radius := len(k) / 2
	dst := make([]float64, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for i, kv := range k {
				sum += kv * src[clamp(y+i-radius, h)*w+x]
			}
			dst[y*w+x] = sum
		}
	}
	return dst
}

// diffuseStep applies one averaging step to m in place and returns the
// largest absolute change.
func diffuseStep(m *mat.Dense, w, h int) float64 {
	raw := m.RawMatrix()
	old := make([]float64, w*h)
	for y := 0; y < h; y++ {
		copy(old[y*w:(y+1)*w], raw.Data[y*raw.Stride:y*raw.Stride+w])
	}
	var maxChange float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := old[y*w+x]
			lap := old[y*w+clamp(x-1, w)] + old[y*w+clamp(x+1, w)] +
				old[clamp(y-1, h)*w+x] + old[clamp(y+1, h)*w+x] - 4*v
			nv := v + 0.25*lap
			raw.Data[y*raw.Stride+x] = nv
			if d := math.Abs(nv - v); d > maxChange {
				maxChange = d
			}
		}
	}
	return maxChange
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
