package ocr

import "context"

// Mode selects the recognition tuning for a pass.
type Mode string

const (
	// ModeStandard runs the engine with minimal tuning. Every page gets at
	// least one standard pass.
	ModeStandard Mode = "standard"
	// ModeEnhanced runs the handwriting-oriented configuration: extra
	// contrast stretching and smoothing ahead of recognition, and a
	// single-uniform-block layout assumption.
	ModeEnhanced Mode = "enhanced"
)

// Input encapsulates a single image submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier that is echoed back in the
	// corresponding Result.
	ID string
	// Image is the PNG-encoded image payload.
	Image []byte
	// Mode selects standard or enhanced recognition tuning.
	Mode Mode
	// PageIndex links the input back to the 1-based page it came from; zero
	// for single-image documents.
	PageIndex int
	// Languages is a list of language hints (e.g., "eng", "deu") that
	// providers can use to select trained data.
	Languages []string
	// Metadata allows callers to pass through engine-specific knobs (e.g.,
	// "tessedit_char_whitelist") without hard-coding them into the API
	// surface.
	Metadata map[string]string
}

// Result captures recognition output for a single input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Text contains the linearized recognized text, whitespace-trimmed.
	Text string
	// TokenConfidences holds the engine's per-token confidence values in
	// [0,100], in recognition order. Non-positive entries are kept so callers
	// can see rejected tokens, but they never contribute to the mean.
	TokenConfidences []int
}

// MeanConfidence returns the arithmetic mean of the positive token
// confidences, or 0.0 when no token qualifies. An empty result is a valid
// low-information pass, not an error.
func (r Result) MeanConfidence() float64 {
	var sum, n int
	for _, c := range r.TokenConfidences {
		if c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0.0
	}
	return float64(sum) / float64(n)
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

var defaultEngine Engine = noopEngine{}

// DefaultEngine returns the library's default OCR engine. Importing the
// tesseract subpackage replaces the initial no-op engine.
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine sets the library's default OCR engine.
func SetDefaultEngine(engine Engine) {
	defaultEngine = engine
}

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
