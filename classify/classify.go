// Package classify turns recognition confidence and structural signals into a
// document-type label. The PDF and image families intentionally use different
// enhanced-pass triggers and handwritten mappings; see the notes on each
// function before unifying anything.
package classify

// Label is a terminal document classification.
type Label string

// PDF-family labels.
const (
	LabelTextPDF              Label = "text_pdf"
	LabelImagePDF             Label = "image_pdf"
	LabelMixedImagePDF        Label = "mixed_image_pdf"
	LabelLowQualityImagePDF   Label = "low_quality_image_pdf"
	LabelLowQualityPrintedPDF Label = "low_quality_printed_pdf"
	LabelHandwrittenPDF       Label = "handwritten_pdf"
	// LabelErrorPDF is reserved for response-compatible consumers of the
	// upstream service; the pipeline reports processing failures as errors
	// instead of producing it.
	LabelErrorPDF Label = "error_pdf"
)

// Image-family labels. LabelLowQualityImageMarked keeps the trailing
// underscore from the upstream service verbatim; consumers match on the
// literal string.
const (
	LabelPrintedImage          Label = "printed_image"
	LabelLowQualityImage       Label = "low_quality_image"
	LabelLowQualityImageMarked Label = "low_quality_image_"
	LabelHandwrittenImage      Label = "handwritten_image"
	// LabelMixedHandwrittenImage is part of the handwritten set but is never
	// produced by the decision table. Kept for compatibility with consumers
	// of the upstream service.
	LabelMixedHandwrittenImage Label = "mixed_handwritten_image"
)

// Confidence bands and trigger constants shared by both families.
const (
	HighConfidence        = 80.0
	MidConfidence         = 60.0
	LowConfidence         = 40.0
	EnhancedTrigger       = 60.0
	IrregularityThreshold = 0.3
)

// Embedded text-layer acceptance: a PDF whose extracted text layer exceeds
// TextLayerMinChars (after trimming) is accepted outright as LabelTextPDF
// with TextLayerConfidence, with no rasterization.
const (
	TextLayerMinChars   = 50
	TextLayerConfidence = 95.0
)

// NeedsEnhancedPDF reports whether a PDF's standard pass must be followed by
// the handwriting-tuned pass. Unlike images, contour irregularity alone is a
// trigger here.
func NeedsEnhancedPDF(confidence float64, texture bool, irregularity float64) bool {
	return texture || confidence < EnhancedTrigger || irregularity > IrregularityThreshold
}

// NeedsEnhancedImage reports whether an image's standard pass must be
// followed by the handwriting-tuned pass. Contour irregularity does not
// trigger the pass for images; it only influences the label bands.
func NeedsEnhancedImage(confidence float64, texture bool) bool {
	return confidence < EnhancedTrigger || texture
}

// PDFLabel assigns the PDF-family label for the (possibly pass-averaged)
// confidence and first-page structural signals.
func PDFLabel(confidence float64, texture bool, irregularity float64) Label {
	structural := texture || irregularity > IrregularityThreshold
	switch {
	case confidence >= HighConfidence:
		return LabelImagePDF
	case confidence >= MidConfidence:
		if structural {
			return LabelMixedImagePDF
		}
		return LabelImagePDF
	case confidence >= LowConfidence:
		if structural {
			return LabelLowQualityImagePDF
		}
		return LabelLowQualityPrintedPDF
	default:
		return LabelHandwrittenPDF
	}
}

// ImageLabel assigns the image-family label. The mid band deliberately reuses
// LabelImagePDF for structurally noisy images.
func ImageLabel(confidence float64, texture bool, irregularity float64) Label {
	structural := texture || irregularity > IrregularityThreshold
	switch {
	case confidence >= HighConfidence:
		return LabelPrintedImage
	case confidence >= MidConfidence:
		if structural {
			return LabelImagePDF
		}
		return LabelPrintedImage
	case confidence >= LowConfidence:
		if structural {
			return LabelLowQualityImageMarked
		}
		return LabelLowQualityImage
	default:
		return LabelHandwrittenImage
	}
}

// IsHandwrittenPDF maps a PDF-family label to the aggregate handwritten flag.
// LabelImagePDF counts as handwritten here even though the label denotes a
// scanned image; the upstream service behaves this way and consumers depend
// on it.
func IsHandwrittenPDF(label Label) bool {
	return label == LabelHandwrittenPDF || label == LabelImagePDF
}

// IsHandwrittenImage maps an image-family label to the aggregate handwritten
// flag. Note that LabelImagePDF produced by ImageLabel is not handwritten in
// this family.
func IsHandwrittenImage(label Label) bool {
	return label == LabelHandwrittenImage || label == LabelMixedHandwrittenImage
}
