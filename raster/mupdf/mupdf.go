// Package mupdf implements raster.Rasterizer with the go-fitz MuPDF bindings,
// the same renderer stack used for page preview generation.
package mupdf

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/wudi/docscan/raster"
)

// Rasterizer opens PDFs in-memory via MuPDF.
type Rasterizer struct{}

var _ raster.Rasterizer = Rasterizer{}

// New returns a MuPDF-backed rasterizer.
func New() Rasterizer { return Rasterizer{} }

// Open parses the PDF bytes. The returned document must be closed.
func (Rasterizer) Open(pdf []byte) (raster.Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &document{doc: doc}, nil
}

type document struct {
	doc *fitz.Document
}

func (d *document) PageCount() int { return d.doc.NumPage() }

// Render rasterizes the 1-based page at the fixed pipeline scale.
func (d *document) Render(page int) (image.Image, error) {
	if page < 1 || page > d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range [1,%d]", page, d.doc.NumPage())
	}
	img, err := d.doc.ImageDPI(page-1, raster.DPI)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}

func (d *document) Close() error { return d.doc.Close() }
