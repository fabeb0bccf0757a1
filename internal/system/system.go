package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/blocktree/internal/pixmap"
)

// FindLatestPDF returns the most recently modified PDF of dir.
func FindLatestPDF(dir string) (string, error) {
	latest, err := findLatest(dir, func(name string) bool {
		return strings.HasSuffix(strings.ToLower(name), ".pdf")
	})
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("в папке %s не найдено PDF-файлов", dir)
	}
	return latest, nil
}

// FindLatestImage returns the most recently modified supported image in
// path, or in the directory of path when it is a file.
func FindLatestImage(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	searchDir := path
	if !fi.IsDir() {
		// Для файла ищем в его папке
		searchDir = filepath.Dir(path)
	}

	latest, err := findLatest(searchDir, pixmap.IsSupportedFormat)
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("в папке %s не найдено изображений", searchDir)
	}
	return latest, nil
}

// FindLatestInput prefers the newest PDF of dir and falls back to its
// newest image.
func FindLatestInput(dir string) (string, error) {
	if pdf, err := FindLatestPDF(dir); err == nil {
		return pdf, nil
	}
	return FindLatestImage(dir)
}

func findLatest(dir string, match func(name string) bool) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !match(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}
	return latestFile, nil
}
