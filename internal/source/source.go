package source

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/pixmap"
)

// Source yields the page images of a document.
type Source interface {
	PageCount() int
	PageSize(index int) (image.Point, error)
	RenderPage(index int, dpi int) (pixmap.Buffer, error)
	Close() error
}

// FileBacked is implemented by sources whose pages are image files, so that
// blocks can open them lazily.
type FileBacked interface {
	PagePath(index int) string
}

// FitzPDFSource renders PDF pages with MuPDF.
type FitzPDFSource struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %w", errkind.ErrIO, path, err)
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.NumPage()
}

// PageSize returns the page bounds in points.
func (f *FitzPDFSource) PageSize(index int) (image.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= f.doc.NumPage() {
		return image.Point{}, fmt.Errorf("%w: page %d of %d", errkind.ErrDomain, index, f.doc.NumPage())
	}
	rect, err := f.doc.Bound(index)
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: page %d bounds: %w", errkind.ErrRuntime, index, err)
	}
	return rect.Size(), nil
}

// RenderPage rasterises one page. Every call opens its own document handle,
// so pages can be rendered from several goroutines.
func (f *FitzPDFSource) RenderPage(index int, dpi int) (pixmap.Buffer, error) {
	if index < 0 || index >= f.PageCount() {
		return pixmap.Buffer{}, fmt.Errorf("%w: page %d of %d", errkind.ErrDomain, index, f.PageCount())
	}
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return pixmap.Buffer{}, fmt.Errorf("%w: open pdf %s: %w", errkind.ErrIO, f.path, err)
	}
	defer workerDoc.Close()

	img, err := workerDoc.ImageDPI(index, float64(dpi))
	if err != nil {
		return pixmap.Buffer{}, fmt.Errorf("%w: render page %d: %w", errkind.ErrRuntime, index, err)
	}
	return pixmap.FromColor(img), nil
}

func (f *FitzPDFSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Close()
}
