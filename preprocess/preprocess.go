// Package preprocess binarizes raster pages ahead of recognition. Both
// variants are pure transforms; when the toolkit fails mid-chain the input
// image is returned unchanged so recognition can still run on raw pixels.
package preprocess

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/wudi/docscan/improc"
	"github.com/wudi/docscan/observability"
)

const (
	blurKernel     = 5
	adaptiveBlock  = 31
	adaptiveOffset = 2

	claheClipLimit    = 2.0
	claheTileGrid     = 8
	bilateralDiameter = 9
	bilateralSigma    = 75
	morphKernel       = 1
	advancedBlock     = 11
	medianKernel      = 3
	sharpenFactor     = 2.0
)

// Preprocessor applies the fixed binarization pipelines over an
// improc.Toolkit backend.
type Preprocessor struct {
	tk  improc.Toolkit
	log observability.Logger
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithLogger sets the logger used to report degraded (skipped) steps.
func WithLogger(log observability.Logger) Option {
	return func(p *Preprocessor) {
		if log != nil {
			p.log = log
		}
	}
}

// New builds a preprocessor over the given toolkit.
func New(tk improc.Toolkit, opts ...Option) *Preprocessor {
	p := &Preprocessor{tk: tk, log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Standard runs grayscale, Gaussian blur and adaptive Gaussian thresholding.
// This is the per-page pipeline for every recognition pass.
func (p *Preprocessor) Standard(img image.Image) image.Image {
	out, err := p.standard(img)
	if err != nil {
		p.log.Warn("standard preprocessing degraded, using raw image", observability.Error("cause", err))
		return img
	}
	return out
}

func (p *Preprocessor) standard(img image.Image) (image.Image, error) {
	gray, err := p.tk.Grayscale(img)
	if err != nil {
		return nil, err
	}
	blurred, err := p.tk.GaussianBlur(gray, blurKernel)
	if err != nil {
		return nil, err
	}
	return p.tk.AdaptiveThreshold(blurred, adaptiveBlock, adaptiveOffset)
}

// Advanced runs the heavier CLAHE-based pipeline used for first-page preview
// processing. It ends with a median filter and a sharpening pass.
func (p *Preprocessor) Advanced(img image.Image) image.Image {
	out, err := p.advanced(img)
	if err != nil {
		p.log.Warn("advanced preprocessing degraded, using raw image", observability.Error("cause", err))
		return img
	}
	return out
}

func (p *Preprocessor) advanced(img image.Image) (image.Image, error) {
	gray, err := p.tk.CLAHE(img, claheClipLimit, claheTileGrid)
	if err != nil {
		return nil, err
	}
	smooth, err := p.tk.BilateralFilter(gray, bilateralDiameter, bilateralSigma)
	if err != nil {
		return nil, err
	}
	closed, err := p.tk.MorphClose(smooth, morphKernel)
	if err != nil {
		return nil, err
	}
	opened, err := p.tk.MorphOpen(closed, morphKernel)
	if err != nil {
		return nil, err
	}
	binary, err := p.tk.AdaptiveThreshold(opened, advancedBlock, adaptiveOffset)
	if err != nil {
		return nil, err
	}
	denoised, err := p.tk.MedianFilter(binary, medianKernel)
	if err != nil {
		return nil, err
	}
	return imaging.Sharpen(denoised, sharpenFactor), nil
}
