package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/blocktree/internal/errkind"
)

// Config holds every parameter of a segmentation run. Zero values in a loaded
// file keep the defaults.
type Config struct {
	InputPath string `yaml:"input"`
	OutputDir string `yaml:"output"`
	DPI       int    `yaml:"dpi"`
	Workers   int    `yaml:"workers"`

	// Detector selects the analyzer: "components" or "contrast".
	Detector string `yaml:"detector"`
	ZoneTree string `yaml:"zoneTree"`

	Filters  Filters  `yaml:"filters"`
	Merge    Merge    `yaml:"merge"`
	Gradient Gradient `yaml:"gradient"`
	// ContrastThreshold is the gradient module above which a pixel counts as
	// an edge for the contrast detector.
	ContrastThreshold float64 `yaml:"contrastThreshold"`
	// SortBy orders the detected zones: left, right, top or bottom.
	SortBy string `yaml:"sortBy"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	ShowStats bool   `yaml:"showStats"`

	BuildVersion string `yaml:"-"`
}

// Filters drop implausible components before merging.
type Filters struct {
	MinWidth    int     `yaml:"minWidth"`
	MinHeight   int     `yaml:"minHeight"`
	MaxWidth    int     `yaml:"maxWidth"`
	MaxHeight   int     `yaml:"maxHeight"`
	BorderWidth int     `yaml:"borderWidth"`
	WidthRatio  float64 `yaml:"widthRatio"`
}

type Merge struct {
	Threshold float64 `yaml:"threshold"`
	// Dilation grows every component box before merging, in pixels.
	Dilation int `yaml:"dilation"`
}

type Gradient struct {
	Sigma               float64 `yaml:"sigma"`
	DiffusionIterations int     `yaml:"diffusionIterations"`
	MaxDivergence       float64 `yaml:"maxDivergence"`
	Projection          string  `yaml:"projection"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "output",
		DPI:       150,
		Workers:   runtime.NumCPU(),
		Detector:  "components",
		ZoneTree:  "zone",
		Filters: Filters{
			MinWidth:    3,
			MinHeight:   3,
			MaxWidth:    2000,
			MaxHeight:   2000,
			BorderWidth: 5,
			WidthRatio:  40,
		},
		Merge: Merge{
			Threshold: 0.1,
			Dilation:  6,
		},
		Gradient: Gradient{
			MaxDivergence: 0.01,
			Projection:    "luminance",
		},
		ContrastThreshold: 30,
		SortBy:            "top",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads a YAML configuration over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %w", errkind.ErrIO, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config %s: %w", errkind.ErrRuntime, path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the directory when needed.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: create config directory: %w", errkind.ErrIO, err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: marshal config: %w", errkind.ErrRuntime, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write config: %w", errkind.ErrIO, err)
	}
	return nil
}

// Validate reports the first inconsistent parameter.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", errkind.ErrDomain, c.Workers)
	case c.DPI < 1:
		return fmt.Errorf("%w: dpi must be positive, got %d", errkind.ErrDomain, c.DPI)
	case c.ZoneTree == "":
		return fmt.Errorf("%w: empty zone tree name", errkind.ErrInvalidArgument)
	case c.Merge.Threshold < 0:
		return fmt.Errorf("%w: negative merge threshold %v", errkind.ErrDomain, c.Merge.Threshold)
	case c.Merge.Dilation < 0:
		return fmt.Errorf("%w: negative dilation %d", errkind.ErrDomain, c.Merge.Dilation)
	case c.Filters.BorderWidth < 0:
		return fmt.Errorf("%w: negative border width %d", errkind.ErrDomain, c.Filters.BorderWidth)
	case c.Filters.WidthRatio < 0:
		return fmt.Errorf("%w: negative width ratio %v", errkind.ErrDomain, c.Filters.WidthRatio)
	case c.Gradient.Sigma < 0:
		return fmt.Errorf("%w: negative sigma %v", errkind.ErrDomain, c.Gradient.Sigma)
	case c.Gradient.DiffusionIterations < 0:
		return fmt.Errorf("%w: negative diffusion iterations %d", errkind.ErrDomain, c.Gradient.DiffusionIterations)
	}
	switch c.Gradient.Projection {
	case "luminance", "max-channel":
	default:
		return fmt.Errorf("%w: unknown gradient projection %q", errkind.ErrDomain, c.Gradient.Projection)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", errkind.ErrDomain, c.LogFormat)
	}
	return nil
}
