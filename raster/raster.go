// Package raster abstracts PDF page rendering. The pipeline renders scanned
// PDFs to raster images before recognition; raster-image containers never
// pass through this package.
package raster

import "image"

// Scale is the fixed magnification applied when rendering pages. Rendering at
// twice the nominal page resolution gives the recognition engine enough pixel
// density for small print without ballooning memory on large documents.
const Scale = 2.0

// DPI is the render resolution implied by Scale over the 72dpi PDF user space.
const DPI = 72 * Scale

// Document is an open PDF ready for page rendering. Pages are numbered from 1.
type Document interface {
	PageCount() int
	Render(page int) (image.Image, error)
	Close() error
}

// Rasterizer opens PDF bytes for rendering. Implementations own decryption
// and repair of damaged cross-reference tables; callers only see pages.
type Rasterizer interface {
	Open(pdf []byte) (Document, error)
}
