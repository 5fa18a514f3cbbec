// Package textlayer pulls embedded text out of PDFs that carry a real text
// layer, letting the pipeline skip rasterization entirely for digital PDFs.
package textlayer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor reads embedded PDF text. The zero value is ready to use.
type Extractor struct{}

// New returns an embedded-text extractor.
func New() Extractor { return Extractor{} }

// Extract concatenates the plain text of every page. Pages that fail to
// decode are skipped; the caller decides whether the total is substantial
// enough to accept. The underlying parser panics on some malformed files, so
// failures are recovered into errors.
func (Extractor) Extract(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse pdf text layer: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
	}
	return b.String(), nil
}
