// Package opencv implements the improc.Toolkit capability on top of the
// gocv OpenCV bindings. It is kept in its own package so that binaries that
// never touch a real image pipeline do not link against OpenCV.
package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/wudi/docscan/improc"
)

// Toolkit is the OpenCV-backed image toolkit. The zero value is ready to use;
// every call converts to a Mat, operates, and converts back, so no state is
// shared between calls and concurrent use is safe.
type Toolkit struct{}

var _ improc.Toolkit = Toolkit{}

// New returns an OpenCV toolkit.
func New() Toolkit { return Toolkit{} }

func (Toolkit) Grayscale(img image.Image) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.ToImage()
}

func (Toolkit) GaussianBlur(img image.Image, ksize int) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
	return dst.ToImage()
}

func (Toolkit) AdaptiveThreshold(img image.Image, blockSize, offset int) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.AdaptiveThreshold(src, &dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, blockSize, float32(offset))
	return dst.ToImage()
}

func (Toolkit) CLAHE(img image.Image, clipLimit float64, tileGrid int) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	clahe := gocv.NewCLAHEWithParams(clipLimit, image.Pt(tileGrid, tileGrid))
	defer clahe.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	clahe.Apply(src, &dst)
	return dst.ToImage()
}

func (Toolkit) BilateralFilter(img image.Image, diameter int, sigma float64) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.BilateralFilter(src, &dst, diameter, sigma, sigma)
	return dst.ToImage()
}

func (Toolkit) MorphClose(img image.Image, ksize int) (image.Image, error) {
	return morph(img, gocv.MorphClose, ksize)
}

func (Toolkit) MorphOpen(img image.Image, ksize int) (image.Image, error) {
	return morph(img, gocv.MorphOpen, ksize)
}

func morph(img image.Image, op gocv.MorphType, ksize int) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(ksize, ksize))
	defer kernel.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MorphologyEx(src, &dst, op, kernel)
	return dst.ToImage()
}

func (Toolkit) MedianFilter(img image.Image, ksize int) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MedianBlur(src, &dst, ksize)
	return dst.ToImage()
}

func (Toolkit) ContrastStretch(img image.Image, gain, bias float64) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.ConvertScaleAbs(src, &dst, gain, bias)
	return dst.ToImage()
}

func (Toolkit) OtsuBinarize(img image.Image) (image.Image, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Threshold(src, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return dst.ToImage()
}

func (Toolkit) CannyEdges(img image.Image, low, high float64) (*image.Gray, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Canny(src, &dst, float32(low), float32(high))
	out, err := dst.ToImage()
	if err != nil {
		return nil, err
	}
	gray, ok := out.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("canny output is %T, want *image.Gray", out)
	}
	return gray, nil
}

func (Toolkit) LaplacianVariance(img image.Image) (float64, error) {
	src, err := toGrayMat(img)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(src, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	vals, err := lap.DataPtrFloat64()
	if err != nil {
		return 0, fmt.Errorf("read laplacian response: %w", err)
	}
	return variance(vals), nil
}

func (Toolkit) FindContours(edges *image.Gray) ([]improc.Contour, error) {
	src, err := gocv.ImageGrayToMatGray(edges)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	points := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer points.Close()
	out := make([]improc.Contour, 0, points.Size())
	for i := 0; i < points.Size(); i++ {
		c := points.At(i)
		out = append(out, improc.Contour{
			Area:      gocv.ContourArea(c),
			Perimeter: gocv.ArcLength(c, true),
		})
	}
	return out, nil
}

// toGrayMat decodes any image into a single-channel Mat. Already-gray images
// convert directly; color images go through an RGB Mat first.
func toGrayMat(img image.Image) (gocv.Mat, error) {
	if gray, ok := img.(*image.Gray); ok {
		return gocv.ImageGrayToMatGray(gray)
	}
	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer rgb.Close()
	dst := gocv.NewMat()
	gocv.CvtColor(rgb, &dst, gocv.ColorRGBToGray)
	return dst, nil
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(vals))
}
