package improc

import (
	"bytes"
	"image"
	"image/png"
	"math"
)

// Contour describes one extracted contour by its scalar measurements. The
// pipeline never needs the point list, only area and perimeter.
type Contour struct {
	Area      float64
	Perimeter float64
}

// Circularity returns 4*pi*area/perimeter^2, which is 1 for a perfect circle
// and approaches 0 for elongated or jagged shapes.
func (c Contour) Circularity() float64 {
	return (4 * math.Pi * c.Area) / (c.Perimeter*c.Perimeter + 1e-6)
}

// Toolkit is the image-processing provider contract. All transforms take and
// return decoded images; implementations must not mutate their input.
//
// Grayscale inputs are accepted everywhere: implementations convert color
// images internally when an operation is defined on single-channel data.
type Toolkit interface {
	Grayscale(img image.Image) (image.Image, error)
	GaussianBlur(img image.Image, ksize int) (image.Image, error)
	AdaptiveThreshold(img image.Image, blockSize, offset int) (image.Image, error)
	CLAHE(img image.Image, clipLimit float64, tileGrid int) (image.Image, error)
	BilateralFilter(img image.Image, diameter int, sigma float64) (image.Image, error)
	MorphClose(img image.Image, ksize int) (image.Image, error)
	MorphOpen(img image.Image, ksize int) (image.Image, error)
	MedianFilter(img image.Image, ksize int) (image.Image, error)
	ContrastStretch(img image.Image, gain, bias float64) (image.Image, error)
	OtsuBinarize(img image.Image) (image.Image, error)
	CannyEdges(img image.Image, low, high float64) (*image.Gray, error)
	LaplacianVariance(img image.Image) (float64, error)
	FindContours(edges *image.Gray) ([]Contour, error)
}

// Nop is a toolkit whose transforms return their input unchanged and whose
// measurements report zero. It keeps the pipeline functional when no backend
// is wired, at the cost of degraded recognition quality.
type Nop struct{}

func (Nop) Grayscale(img image.Image) (image.Image, error) { return img, nil }

func (Nop) GaussianBlur(img image.Image, _ int) (image.Image, error) { return img, nil }

func (Nop) AdaptiveThreshold(img image.Image, _, _ int) (image.Image, error) { return img, nil }

func (Nop) CLAHE(img image.Image, _ float64, _ int) (image.Image, error) { return img, nil }

func (Nop) BilateralFilter(img image.Image, _ int, _ float64) (image.Image, error) {
	return img, nil
}

func (Nop) MorphClose(img image.Image, _ int) (image.Image, error) { return img, nil }

func (Nop) MorphOpen(img image.Image, _ int) (image.Image, error) { return img, nil }

func (Nop) MedianFilter(img image.Image, _ int) (image.Image, error) { return img, nil }

func (Nop) ContrastStretch(img image.Image, _, _ float64) (image.Image, error) { return img, nil }

func (Nop) OtsuBinarize(img image.Image) (image.Image, error) { return img, nil }

func (Nop) CannyEdges(img image.Image, _, _ float64) (*image.Gray, error) {
	return image.NewGray(img.Bounds()), nil
}

func (Nop) LaplacianVariance(image.Image) (float64, error) { return 0, nil }

func (Nop) FindContours(*image.Gray) ([]Contour, error) { return nil, nil }

// EncodePNG serializes an image for handoff to byte-oriented consumers such
// as OCR engines.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
