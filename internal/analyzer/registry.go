package analyzer

import (
	"fmt"

	"github.com/ivlev/blocktree/internal/config"
	"github.com/ivlev/blocktree/internal/errkind"
)

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string, cfg *config.Config) (Detector, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	switch variant {
	case "components", "":
		return NewComponentDetector(cfg)
	case "contrast":
		return NewContrastDetector(cfg)
	case "ocr":
		return nil, fmt.Errorf("%w: OCR detector not yet implemented", errkind.ErrDomain)
	default:
		return nil, fmt.Errorf("%w: unknown detector variant: %s", errkind.ErrDomain, variant)
	}
}
