package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GenerateReportPath creates a timestamped report filename in dir
func GenerateReportPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("report_%s.yaml", timestamp))
}

// FindLatestReport finds the most recent report file in dir
func FindLatestReport(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read reports directory: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var reports []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "report_") || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		reports = append(reports, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}

	if len(reports) == 0 {
		return "", fmt.Errorf("no report files found in %s", dir)
	}

	// Newest first
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].mod.After(reports[j].mod)
	})

	return reports[0].path, nil
}
