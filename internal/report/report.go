package report

import "github.com/ivlev/blocktree/internal/block"

// Report summarises a segmentation run
type Report struct {
	Version string `yaml:"version"`
	Source  string `yaml:"source"`
	Pages   []Page `yaml:"pages"`
	Stats   *Stats `yaml:"stats,omitempty"`
}

// Page represents a single segmented page and the tree saved for it
type Page struct {
	Index  int    `yaml:"index"`
	Name   string `yaml:"name"`
	Image  string `yaml:"image,omitempty"` // Empty for rendered PDF pages
	Tree   string `yaml:"tree"`            // Saved block hierarchy
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Zones  []Zone `yaml:"zones"`
	Error  string `yaml:"error,omitempty"`
}

// Zone is one detected region of a page
type Zone struct {
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"`
	Confidence float64   `yaml:"confidence"`
	Rect       Rectangle `yaml:"rect"`
	Components int       `yaml:"components"`
}

// Rectangle represents a bounding box
type Rectangle struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// Stats carries the resource usage of the run
type Stats struct {
	Seconds   float64 `yaml:"seconds"`
	RSSBytes  uint64  `yaml:"rssBytes"`
	CPUPct    float64 `yaml:"cpuPercent"`
	Workers   int     `yaml:"workers"`
	PagesOK   int     `yaml:"pagesOk"`
	PagesFail int     `yaml:"pagesFailed"`
}

// RectangleOf converts an inclusive block box to a report rectangle
func RectangleOf(r block.Rect) Rectangle {
	return Rectangle{X: r.Left, Y: r.Top, W: r.Width(), H: r.Height()}
}
