package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/pixmap"
)

// ImageSource serves one image file, or every supported image of a
// directory in name order.
type ImageSource struct {
	paths []string
}

func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errkind.ErrIO, err)
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errkind.ErrIO, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && pixmap.IsSupportedFormat(entry.Name()) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}

	return &ImageSource{paths: paths}, nil
}

func (s *ImageSource) PageCount() int {
	return len(s.paths)
}

func (s *ImageSource) PagePath(index int) string {
	if index < 0 || index >= len(s.paths) {
		return ""
	}
	return s.paths[index]
}

func (s *ImageSource) PageSize(index int) (image.Point, error) {
	if err := s.check(index); err != nil {
		return image.Point{}, err
	}
	return pixmap.Dimensions(s.paths[index])
}

// RenderPage decodes the image; dpi is ignored.
func (s *ImageSource) RenderPage(index int, dpi int) (pixmap.Buffer, error) {
	if err := s.check(index); err != nil {
		return pixmap.Buffer{}, err
	}
	return pixmap.Open(s.paths[index])
}

func (s *ImageSource) check(index int) error {
	if index < 0 || index >= len(s.paths) {
		return fmt.Errorf("%w: page %d of %d", errkind.ErrDomain, index, len(s.paths))
	}
	return nil
}

func (s *ImageSource) Close() error {
	return nil
}
