package pixmap

import (
	"image"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// OtsuThreshold returns the gray level t that best separates img into two
// classes, dark pixels being those strictly below t. A constant image yields
// the mid level so that only dark content counts as ink.
func OtsuThreshold(img *image.Gray) uint8 {
	var hist [256]float64
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			hist[row[x]]++
		}
	}
	total := float64(w * h)
	if total == 0 {
		return 128
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * c
	}

	var (
		weight0, sum0 float64
		best          = -1
		bestVar       float64
	)
	for k := 0; k < 255; k++ {
		weight0 += hist[k]
		if weight0 == 0 {
			continue
		}
		weight1 := total - weight0
		if weight1 == 0 {
			break
		}
		sum0 += float64(k) * hist[k]
		mean0 := sum0 / weight0
		mean1 := (sumAll - sum0) / weight1
		v := weight0 * weight1 * (mean0 - mean1) * (mean0 - mean1)
		if v > bestVar {
			bestVar, best = v, k
		}
	}
	if best < 0 {
		return 128
	}
	return uint8(best + 1)
}

// StrokeWidth estimates the typical ink thickness of b as the median length
// of horizontal foreground runs. It returns 0 when b has no foreground.
func StrokeWidth(b *Bitmap) float64 {
	var runs []float64
	for y := 0; y < b.Height; y++ {
		run := 0
		for x := 0; x < b.Width; x++ {
			if b.At(x, y) {
				run++
				continue
			}
			if run > 0 {
				runs = append(runs, float64(run))
				run = 0
			}
		}
		if run > 0 {
			runs = append(runs, float64(run))
		}
	}
	if len(runs) == 0 {
		return 0
	}
	sort.Float64s(runs)
	return stat.Quantile(0.5, stat.Empirical, runs, nil)
}
