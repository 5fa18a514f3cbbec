// Package tesseract implements the ocr.Engine contract with the gosseract
// client as the default recognition provider.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/docscan/improc"
	"github.com/wudi/docscan/observability"
	"github.com/wudi/docscan/ocr"
)

func init() {
	ocr.SetDefaultEngine(NewEngine())
}

// Enhanced-mode conditioning parameters. Handwriting responds better to
// aggressive contrast and gentle smoothing before Otsu binarization.
const (
	enhancedContrastGain = 1.8
	enhancedContrastBias = 35
	enhancedBilateralD   = 7
	enhancedBilateralSig = 50
)

// Engine runs recognition through a per-call gosseract client. Clients are
// created and closed per recognition, so concurrent calls are isolated.
type Engine struct {
	clientFactory func() *gosseract.Client
	toolkit       improc.Toolkit
	log           observability.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithToolkit supplies the image toolkit used for enhanced-mode conditioning.
// Without one, enhanced mode recognizes the unconditioned image.
func WithToolkit(tk improc.Toolkit) Option {
	return func(e *Engine) { e.toolkit = tk }
}

// WithLogger sets the logger for recoverable conditioning failures.
func WithLogger(log observability.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine constructs a Tesseract-backed OCR engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clientFactory: gosseract.NewClient,
		log:           observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs one OCR pass on a PNG-encoded image.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	select {
	case <-ctx.Done():
		return ocr.Result{}, ctx.Err()
	default:
	}

	data := in.Image
	if in.Mode == ocr.ModeEnhanced {
		data = e.conditionForHandwriting(data)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.Mode == ocr.ModeEnhanced {
		if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
			return ocr.Result{}, fmt.Errorf("set page segmentation: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}

	return ocr.Result{
		InputID:          in.ID,
		Text:             strings.TrimSpace(text),
		TokenConfidences: tokenConfidences(c),
	}, nil
}

// conditionForHandwriting applies contrast stretching, a soft bilateral
// filter and Otsu binarization. Any toolkit failure falls back to the
// original bytes.
func (e *Engine) conditionForHandwriting(data []byte) []byte {
	if e.toolkit == nil {
		return data
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		e.log.Warn("enhanced conditioning skipped", observability.Error("cause", err))
		return data
	}
	conditioned, err := e.condition(img)
	if err != nil {
		e.log.Warn("enhanced conditioning degraded", observability.Error("cause", err))
		return data
	}
	out, err := improc.EncodePNG(conditioned)
	if err != nil {
		e.log.Warn("enhanced conditioning skipped", observability.Error("cause", err))
		return data
	}
	return out
}

func (e *Engine) condition(img image.Image) (image.Image, error) {
	stretched, err := e.toolkit.ContrastStretch(img, enhancedContrastGain, enhancedContrastBias)
	if err != nil {
		return nil, err
	}
	smooth, err := e.toolkit.BilateralFilter(stretched, enhancedBilateralD, enhancedBilateralSig)
	if err != nil {
		return nil, err
	}
	return e.toolkit.OtsuBinarize(smooth)
}

func tokenConfidences(c *gosseract.Client) []int {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	confs := make([]int, 0, len(boxes))
	for _, b := range boxes {
		confs = append(confs, int(b.Confidence))
	}
	return confs
}
