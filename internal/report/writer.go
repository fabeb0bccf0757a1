package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/blocktree/internal/errkind"
)

// WriteReport writes a report to a YAML file
func WriteReport(r *Report, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: marshal report: %w", errkind.ErrRuntime, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", errkind.ErrIO, err)
	}
	return nil
}

// ReadReport reads a report from a YAML file
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errkind.ErrIO, err)
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: parse report %s: %w", errkind.ErrRuntime, path, err)
	}

	return &r, nil
}
