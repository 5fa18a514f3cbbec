// Package signals computes structural handwriting signals from a raster
// image, independent of the recognition engine's own confidence. Handwritten
// text shows denser irregular edges and higher local texture variance than
// machine print.
package signals

import (
	"image"
	"math"

	"github.com/wudi/docscan/improc"
	"github.com/wudi/docscan/observability"
)

// Thresholds holds the empirically fixed decision constants. They are plain
// fields rather than package constants so boundary behavior can be probed
// deterministically in tests.
type Thresholds struct {
	// CannyLow and CannyHigh are the hysteresis thresholds for edge detection.
	CannyLow  float64
	CannyHigh float64
	// EdgeDensity is the fraction of edge pixels above which texture counts
	// as detected.
	EdgeDensity float64
	// LaplacianVariance is the texture-variance level above which texture
	// counts as detected.
	LaplacianVariance float64
	// ContourAreaFloor filters out noise contours before irregularity is
	// averaged.
	ContourAreaFloor float64
}

// DefaultThresholds returns the production constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CannyLow:          50,
		CannyHigh:         150,
		EdgeDensity:       0.08,
		LaplacianVariance: 250,
		ContourAreaFloor:  10,
	}
}

// Signals carries the measured structural evidence for one image.
type Signals struct {
	EdgeDensity         float64
	LaplacianVariance   float64
	TextureDetected     bool
	ContourIrregularity float64
}

// Analyzer measures structural signals through an improc.Toolkit.
type Analyzer struct {
	tk  improc.Toolkit
	th  Thresholds
	log observability.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithThresholds overrides the default decision constants.
func WithThresholds(th Thresholds) Option {
	return func(a *Analyzer) { a.th = th }
}

// WithLogger sets the logger for measured values.
func WithLogger(log observability.Logger) Option {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// New builds an analyzer over the given toolkit.
func New(tk improc.Toolkit, opts ...Option) *Analyzer {
	a := &Analyzer{tk: tk, th: DefaultThresholds(), log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze measures edge density, Laplacian variance and contour irregularity
// on the raw (unpreprocessed) image.
func (a *Analyzer) Analyze(img image.Image) (Signals, error) {
	gray, err := a.tk.Grayscale(img)
	if err != nil {
		return Signals{}, err
	}
	edges, err := a.tk.CannyEdges(gray, a.th.CannyLow, a.th.CannyHigh)
	if err != nil {
		return Signals{}, err
	}

	var s Signals
	s.EdgeDensity = edgeDensity(edges)
	s.LaplacianVariance, err = a.tk.LaplacianVariance(gray)
	if err != nil {
		return Signals{}, err
	}
	s.TextureDetected = s.EdgeDensity > a.th.EdgeDensity || s.LaplacianVariance > a.th.LaplacianVariance

	contours, err := a.tk.FindContours(edges)
	if err != nil {
		return Signals{}, err
	}
	s.ContourIrregularity = a.irregularity(contours)

	a.log.Debug("structural signals",
		observability.Float64("edge_density", s.EdgeDensity),
		observability.Float64("laplacian_variance", s.LaplacianVariance),
		observability.Bool("texture", s.TextureDetected),
		observability.Float64("contour_irregularity", s.ContourIrregularity),
	)
	return s, nil
}

func edgeDensity(edges *image.Gray) float64 {
	bounds := edges.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if edges.GrayAt(x, y).Y > 0 {
				count++
			}
		}
	}
	return float64(count) / float64(total)
}

// irregularity averages |1 - circularity| over contours large enough to be
// signal rather than noise. No qualifying contours means zero irregularity.
func (a *Analyzer) irregularity(contours []improc.Contour) float64 {
	var sum float64
	var n int
	for _, c := range contours {
		if c.Area <= a.th.ContourAreaFloor {
			continue
		}
		sum += math.Abs(1 - c.Circularity())
		n++
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}
