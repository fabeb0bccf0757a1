package analyzer

import (
	"log/slog"

	"github.com/ivlev/blocktree/internal/block"
	"github.com/ivlev/blocktree/internal/config"
	"github.com/ivlev/blocktree/internal/pixmap"
)

// ContrastDetector implements edge-based region detection on the gradient
// field of the page
type ContrastDetector struct {
	Tree          string
	Params        block.GradientParams
	EdgeThreshold float64 // Gradient module threshold
	MinBlockArea  int     // Minimum area in pixels²
	Dilation      int     // Radius joining nearby edges
	Sort          block.SortDirection
	Log           *slog.Logger
}

// NewContrastDetector creates a contrast-based detector from cfg
func NewContrastDetector(cfg *config.Config) (*ContrastDetector, error) {
	dir, err := block.ParseSortDirection(cfg.SortBy)
	if err != nil {
		return nil, err
	}
	return &ContrastDetector{
		Tree: cfg.ZoneTree,
		Params: block.GradientParams{
			Sigma:               cfg.Gradient.Sigma,
			DiffusionIterations: cfg.Gradient.DiffusionIterations,
			MaxDivergence:       cfg.Gradient.MaxDivergence,
		},
		EdgeThreshold: cfg.ContrastThreshold,
		MinBlockArea:  500, // ~22x22 pixels minimum
		Dilation:      max(cfg.Merge.Dilation, 1),
		Sort:          dir,
		Log:           slog.Default(),
	}, nil
}

// Detect thresholds the gradient module, joins nearby edges and turns every
// connected edge region into a zone.
func (d *ContrastDetector) Detect(page block.Block) ([]Zone, error) {
	// Step 1: Gradient field of the page
	field, err := page.ResolveGradient(d.Params)
	if err != nil {
		return nil, err
	}

	// Step 2: Edge map
	w, h := field.Width(), field.Height()
	edges := pixmap.NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx, gy := field.At(x, y)
			if gx*gx+gy*gy > d.EdgeThreshold*d.EdgeThreshold {
				edges.Set(x, y, true)
			}
		}
	}

	// Step 3: Morphological dilation to connect nearby edges
	dilated := dilate(edges, d.Dilation)

	// Step 4: Connected regions of the edge map, labelled through the
	// bi-level slot; the page's own bi-level buffer is rebuilt on demand
	if err := page.Substitute(pixmap.BiLevel, pixmap.FromBitmap(dilated)); err != nil {
		return nil, err
	}
	_, err = page.ExtractComponents(d.Tree)
	page.Flush(pixmap.BiLevel, false)
	if err != nil {
		return nil, err
	}

	// Step 5: Filter by minimum area
	removed, err := page.RemoveChildren(d.Tree, func(c block.Block) bool {
		return c.AbsoluteBBox().Area() < d.MinBlockArea
	})
	if err != nil {
		return nil, err
	}
	if err := page.SortChildren(d.Tree, d.Sort); err != nil {
		return nil, err
	}

	zones := zonesOf(page, d.Tree, 0.7) // Moderate confidence for edge-based detection
	d.Log.Debug("contrast zones", "page", page.Name(), "zones", len(zones), "small", removed)
	return zones, nil
}

// dilate grows the foreground of bm by radius pixels in both directions.
func dilate(bm *pixmap.Bitmap, radius int) *pixmap.Bitmap {
	if radius <= 0 {
		out := pixmap.NewBitmap(bm.Width, bm.Height)
		copy(out.Pix, bm.Pix)
		return out
	}
	w, h := bm.Width, bm.Height

	// rows, then columns
	rows := pixmap.NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !bm.At(x, y) {
				continue
			}
			for dx := -radius; dx <= radius; dx++ {
				if nx := x + dx; nx >= 0 && nx < w {
					rows.Set(nx, y, true)
				}
			}
		}
	}

	out := pixmap.NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !rows.At(x, y) {
				continue
			}
			for dy := -radius; dy <= radius; dy++ {
				if ny := y + dy; ny >= 0 && ny < h {
					out.Set(x, ny, true)
				}
			}
		}
	}
	return out
}
