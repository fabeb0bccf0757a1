package analyzer

import "github.com/ivlev/blocktree/internal/block"

// Zone is a detected region of interest, stored as a child of the page.
type Zone struct {
	Block      block.Block
	Type       string  // "line", "column", "text"
	Confidence float64 // 0.0-1.0
}

// Detector is the interface for page segmentation strategies. Detect adds
// its zones to the page hierarchy and returns them in tree order.
type Detector interface {
	Detect(page block.Block) ([]Zone, error)
}

// classify guesses the zone type from its aspect ratio.
func classify(r block.Rect) string {
	w, h := r.Width(), r.Height()
	switch {
	case w >= 4*h:
		return "line"
	case h >= 4*w:
		return "column"
	default:
		return "text"
	}
}

func zonesOf(page block.Block, tree string, confidence float64) []Zone {
	children := page.Children(tree)
	zones := make([]Zone, len(children))
	for i, c := range children {
		zones[i] = Zone{Block: c, Type: classify(c.AbsoluteBBox()), Confidence: confidence}
	}
	return zones
}
