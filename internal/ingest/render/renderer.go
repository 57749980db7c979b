// Package render rasterizes PDF pages with MuPDF (go-fitz).
package render

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// MuPDF renders at 72 DPI for a 1.0 scale.
const baseDPI = 72.0

// DefaultScale gives the downstream QR search enough pixel resolution.
const DefaultScale = 2.0

// RenderError reports a failed rasterization: invalid document bytes, a page
// index out of range, or an engine failure. Page is 0-based, -1 when the
// document itself could not be opened.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("render: %v", e.Err)
	}
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer turns PDF pages into raster images at a fixed scale. Construct it
// once at process start and pass it in explicitly; it carries no per-document
// state and is safe to reuse across batches.
type Renderer struct {
	scale float64
}

func NewRenderer(scale float64) *Renderer {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Renderer{scale: scale}
}

// PageCount reports the number of pages in the document.
func (r *Renderer) PageCount(pdf []byte) (int, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return 0, &RenderError{Page: -1, Err: err}
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPage rasterizes one page (0-based) of the document.
func (r *Renderer) RenderPage(pdf []byte, pageIndex int) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, &RenderError{Page: -1, Err: err}
	}
	defer doc.Close()

	return r.renderPage(doc, pageIndex)
}

func (r *Renderer) renderPage(doc *fitz.Document, pageIndex int) (image.Image, error) {
	if pageIndex < 0 || pageIndex >= doc.NumPage() {
		return nil, &RenderError{Page: pageIndex, Err: fmt.Errorf("page index out of range (document has %d pages)", doc.NumPage())}
	}
	img, err := doc.ImageDPI(pageIndex, baseDPI*r.scale)
	if err != nil {
		return nil, &RenderError{Page: pageIndex, Err: err}
	}
	return img, nil
}
