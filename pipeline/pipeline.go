// Package pipeline wires fetching, rasterization, preprocessing, recognition
// and classification into the single classify-and-extract operation exposed
// to callers. The pipeline holds no per-request state; one invocation owns
// its document, pages and results exclusively, so concurrent invocations are
// safe when the wired providers are.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/wudi/docscan/classify"
	"github.com/wudi/docscan/fetch"
	"github.com/wudi/docscan/improc"
	"github.com/wudi/docscan/observability"
	"github.com/wudi/docscan/ocr"
	"github.com/wudi/docscan/preprocess"
	"github.com/wudi/docscan/raster"
	"github.com/wudi/docscan/signals"
	"github.com/wudi/docscan/textlayer"
)

// NoTextPlaceholder is substituted for an empty extraction. Callers must not
// treat it as an error signal; a confident-but-blank page is a success.
const NoTextPlaceholder = "(No text found)"

// Response is the externally visible extraction artifact.
type Response struct {
	URL           string  `json:"url"`
	FileType      string  `json:"file_type"`
	Confidence    float64 `json:"confidence"`
	IsHandwritten bool    `json:"is_handwritten"`
	ExtractedText string  `json:"extracted_text"`
}

// Fetcher retrieves raw document bytes for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Document, error)
}

// TextLayerExtractor pulls embedded text from PDF bytes.
type TextLayerExtractor interface {
	Extract(pdf []byte) (string, error)
}

// Pipeline is the configured classify-and-extract engine.
type Pipeline struct {
	fetcher    Fetcher
	toolkit    improc.Toolkit
	engine     ocr.Engine
	rasterizer raster.Rasterizer
	textLayer  TextLayerExtractor
	pre        *preprocess.Preprocessor
	analyzer   *signals.Analyzer
	thresholds signals.Thresholds
	languages  []string
	log        observability.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.fetcher = f
		}
	}
}

// WithToolkit sets the image-processing backend. Without one, preprocessing
// and structural analysis degrade to no-ops.
func WithToolkit(tk improc.Toolkit) Option {
	return func(p *Pipeline) {
		if tk != nil {
			p.toolkit = tk
		}
	}
}

// WithEngine sets the recognition engine.
func WithEngine(e ocr.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithRasterizer sets the PDF page renderer. Scanned PDFs fail with a
// ProcessingError when none is wired.
func WithRasterizer(r raster.Rasterizer) Option {
	return func(p *Pipeline) { p.rasterizer = r }
}

// WithTextLayer replaces the embedded-text extractor used for the PDF fast
// path.
func WithTextLayer(t TextLayerExtractor) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.textLayer = t
		}
	}
}

// WithLanguages sets recognition language hints for every pass.
func WithLanguages(langs ...string) Option {
	return func(p *Pipeline) { p.languages = append([]string(nil), langs...) }
}

// WithSignalThresholds overrides the structural-signal decision constants.
func WithSignalThresholds(th signals.Thresholds) Option {
	return func(p *Pipeline) { p.thresholds = th }
}

// WithLogger sets the pipeline logger.
func WithLogger(log observability.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// New builds a pipeline. Defaults: HTTP fetcher, no-op toolkit, the library
// default OCR engine, the embedded-text extractor, and no rasterizer.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		toolkit:    improc.Nop{},
		engine:     ocr.DefaultEngine(),
		textLayer:  textlayer.New(),
		thresholds: signals.DefaultThresholds(),
		log:        observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = fetch.New(fetch.WithLogger(p.log))
	}
	p.pre = preprocess.New(p.toolkit, preprocess.WithLogger(p.log))
	p.analyzer = signals.New(p.toolkit, signals.WithThresholds(p.thresholds), signals.WithLogger(p.log))
	return p
}

// ClassifyAndExtract runs the full pipeline for one URL. It returns a
// *FetchError when the bytes cannot be retrieved and a *ProcessingError for
// any fatal failure after that; recoverable failures (preprocessing steps,
// recognition passes) degrade locally and still yield a response.
func (p *Pipeline) ClassifyAndExtract(ctx context.Context, url string) (*Response, error) {
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	var out *Response
	switch doc.Kind {
	case fetch.KindPDF:
		out, err = p.processPDF(ctx, doc)
	default:
		out, err = p.processImage(ctx, doc)
	}
	if err != nil {
		var pe *ProcessingError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &ProcessingError{URL: url, Err: err}
	}
	return out, nil
}

// PreviewFirstPage produces an enhancement-processed PNG of the document's
// first page: PDFs are rasterized, images decoded, then the advanced
// preprocessing pipeline is applied. Used to surface what the recognition
// engine would see for a given document.
func (p *Pipeline) PreviewFirstPage(ctx context.Context, url string) ([]byte, error) {
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	var page image.Image
	switch doc.Kind {
	case fetch.KindPDF:
		if p.rasterizer == nil {
			return nil, &ProcessingError{URL: url, Stage: "rasterize", Err: errors.New("no rasterizer configured")}
		}
		rdoc, err := p.rasterizer.Open(doc.Data)
		if err != nil {
			return nil, &ProcessingError{URL: url, Stage: "decode", Err: err}
		}
		defer rdoc.Close()
		if rdoc.PageCount() == 0 {
			return nil, &ProcessingError{URL: url, Stage: "render", Err: errors.New("pdf has no pages")}
		}
		if page, err = rdoc.Render(1); err != nil {
			return nil, &ProcessingError{URL: url, Stage: "render page 1", Err: err}
		}
	default:
		if page, err = imaging.Decode(bytes.NewReader(doc.Data)); err != nil {
			return nil, &ProcessingError{URL: url, Stage: "decode", Err: fmt.Errorf("decode image: %w", err)}
		}
	}

	data, err := improc.EncodePNG(p.pre.Advanced(page))
	if err != nil {
		return nil, &ProcessingError{URL: url, Stage: "encode", Err: err}
	}
	return data, nil
}

// processPDF tries the embedded text layer first and falls back to the
// raster pipeline, folding pages in ascending order.
func (p *Pipeline) processPDF(ctx context.Context, doc *fetch.Document) (*Response, error) {
	if text, err := p.textLayer.Extract(doc.Data); err == nil {
		if trimmed := strings.TrimSpace(text); len(trimmed) > classify.TextLayerMinChars {
			p.log.Info("embedded text layer accepted",
				observability.String("url", doc.URL),
				observability.Int("chars", len(trimmed)),
			)
			return p.respond(doc, classify.LabelTextPDF, classify.TextLayerConfidence, trimmed,
				classify.IsHandwrittenPDF(classify.LabelTextPDF)), nil
		}
	}

	if p.rasterizer == nil {
		return nil, &ProcessingError{URL: doc.URL, Stage: "rasterize", Err: errors.New("no rasterizer configured")}
	}
	rdoc, err := p.rasterizer.Open(doc.Data)
	if err != nil {
		return nil, &ProcessingError{URL: doc.URL, Stage: "decode", Err: err}
	}
	defer rdoc.Close()

	pageCount := rdoc.PageCount()
	p.log.Debug("rasterizing pdf",
		observability.String("url", doc.URL),
		observability.Int(observability.MetricPageCount, pageCount),
	)

	var pieces []string
	var pageConfs []float64
	var firstPage image.Image
	for i := 1; i <= pageCount; i++ {
		img, err := rdoc.Render(i)
		if err != nil {
			return nil, &ProcessingError{URL: doc.URL, Stage: fmt.Sprintf("render page %d", i), Err: err}
		}
		if i == 1 {
			firstPage = img
		}
		res, err := p.recognize(ctx, p.pre.Standard(img), ocr.ModeStandard, i)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, res.Text)
		// Pages with no confident tokens still contribute 0.0 to the
		// document mean.
		pageConfs = append(pageConfs, res.MeanConfidence())
	}

	text := strings.Join(pieces, "\n")
	confidence := mean(pageConfs)

	// Structural signals are sampled from page 1 only and applied to the
	// whole document to bound cost.
	var sig signals.Signals
	if firstPage != nil {
		sig = p.analyzeOrZero(firstPage)
	}

	if firstPage != nil && classify.NeedsEnhancedPDF(confidence, sig.TextureDetected, sig.ContourIrregularity) {
		text, confidence = p.enhancedRefinement(ctx, firstPage, text, confidence)
	}

	label := classify.PDFLabel(confidence, sig.TextureDetected, sig.ContourIrregularity)
	return p.respond(doc, label, confidence, text, classify.IsHandwrittenPDF(label)), nil
}

// processImage handles the single implicit page of a raster container.
func (p *Pipeline) processImage(ctx context.Context, doc *fetch.Document) (*Response, error) {
	img, err := imaging.Decode(bytes.NewReader(doc.Data))
	if err != nil {
		return nil, &ProcessingError{URL: doc.URL, Stage: "decode", Err: fmt.Errorf("decode image: %w", err)}
	}

	res, err := p.recognize(ctx, p.pre.Standard(img), ocr.ModeStandard, 1)
	if err != nil {
		return nil, err
	}
	text := res.Text
	confidence := res.MeanConfidence()

	sig := p.analyzeOrZero(img)
	if classify.NeedsEnhancedImage(confidence, sig.TextureDetected) {
		text, confidence = p.enhancedRefinement(ctx, img, text, confidence)
	}

	label := classify.ImageLabel(confidence, sig.TextureDetected, sig.ContourIrregularity)
	return p.respond(doc, label, confidence, text, classify.IsHandwrittenImage(label)), nil
}

// enhancedRefinement runs the handwriting-tuned pass on the raw image and
// merges it with the standard result: text is concatenated with a newline
// and the two confidences are averaged. An empty enhanced pass leaves the
// standard result untouched.
func (p *Pipeline) enhancedRefinement(ctx context.Context, img image.Image, text string, confidence float64) (string, float64) {
	p.log.Info("running enhanced recognition refinement",
		observability.Float64(observability.MetricPassConfidence, confidence),
	)
	res, err := p.recognize(ctx, img, ocr.ModeEnhanced, 1)
	if err != nil || res.Text == "" {
		return text, confidence
	}
	return text + "\n" + res.Text, (confidence + res.MeanConfidence()) / 2
}

// recognize runs one pass, recovering engine failures into an empty
// zero-confidence result so classification can proceed on the remaining
// signals. Context cancellation is not recovered.
func (p *Pipeline) recognize(ctx context.Context, img image.Image, mode ocr.Mode, page int) (ocr.Result, error) {
	data, err := improc.EncodePNG(img)
	if err != nil {
		p.log.Warn("page encode failed, skipping recognition", observability.Error("cause", err))
		return ocr.Result{}, nil
	}
	in := ocr.NewInput(data, mode,
		ocr.WithLanguages(p.languages...),
		ocr.WithPageIndex(page),
	)
	res, err := p.engine.Recognize(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return ocr.Result{}, ctx.Err()
		}
		p.log.Warn("recognition pass failed, treating as empty",
			observability.String("mode", string(mode)),
			observability.Int("page", page),
			observability.Error("cause", err),
		)
		return ocr.Result{}, nil
	}
	return res, nil
}

// analyzeOrZero measures structural signals, degrading to zero-valued
// signals when the toolkit fails so classification can fall back to
// confidence alone.
func (p *Pipeline) analyzeOrZero(img image.Image) signals.Signals {
	sig, err := p.analyzer.Analyze(img)
	if err != nil {
		p.log.Warn("structural analysis degraded", observability.Error("cause", err))
		return signals.Signals{}
	}
	return sig
}

func (p *Pipeline) respond(doc *fetch.Document, label classify.Label, confidence float64, text string, handwritten bool) *Response {
	text = strings.TrimSpace(text)
	if text == "" {
		text = NoTextPlaceholder
	}
	resp := &Response{
		URL:           doc.URL,
		FileType:      string(label),
		Confidence:    round2(confidence),
		IsHandwritten: handwritten,
		ExtractedText: text,
	}
	p.log.Info("document classified",
		observability.String("url", doc.URL),
		observability.String(observability.MetricDocumentLabel, resp.FileType),
		observability.Float64("confidence", resp.Confidence),
		observability.Bool("handwritten", resp.IsHandwritten),
	)
	return resp
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
