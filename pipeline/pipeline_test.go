package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/wudi/docscan/fetch"
	"github.com/wudi/docscan/improc"
	"github.com/wudi/docscan/ocr"
	"github.com/wudi/docscan/raster"
)

// stubFetcher serves canned bytes without touching the network.
type stubFetcher struct {
	data []byte
	err  error
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*fetch.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Document{URL: url, Kind: fetch.KindForURL(url), Data: s.data}, nil
}

// stubEngine replays scripted results: standard results are consumed in
// order (the last one repeats), enhanced mode always returns the same
// result. Calls are recorded by mode.
type stubEngine struct {
	standard []ocr.Result
	enhanced ocr.Result
	err      error
	calls    []ocr.Mode
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	s.calls = append(s.calls, in.Mode)
	if s.err != nil {
		return ocr.Result{}, s.err
	}
	if in.Mode == ocr.ModeEnhanced {
		return s.enhanced, nil
	}
	if len(s.standard) == 0 {
		return ocr.Result{}, nil
	}
	res := s.standard[0]
	if len(s.standard) > 1 {
		s.standard = s.standard[1:]
	}
	return res, nil
}

func (s *stubEngine) modeCalls(mode ocr.Mode) int {
	var n int
	for _, m := range s.calls {
		if m == mode {
			n++
		}
	}
	return n
}

// sigToolkit produces deterministic structural signals: a 10x10 edge map
// with edgePixels set pixels plus canned variance and contours.
type sigToolkit struct {
	improc.Nop
	edgePixels int
	lapVar     float64
	contours   []improc.Contour
}

func (s *sigToolkit) CannyEdges(img image.Image, low, high float64) (*image.Gray, error) {
	edges := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := 0; i < s.edgePixels; i++ {
		edges.SetGray(i%10, i/10, color.Gray{Y: 255})
	}
	return edges, nil
}

func (s *sigToolkit) LaplacianVariance(image.Image) (float64, error) { return s.lapVar, nil }

func (s *sigToolkit) FindContours(*image.Gray) ([]improc.Contour, error) { return s.contours, nil }

// stubRasterizer serves fixed pages and records whether it was opened.
type stubRasterizer struct {
	pages  int
	opened bool
}

func (s *stubRasterizer) Open(pdf []byte) (raster.Document, error) {
	s.opened = true
	return &stubRasterDoc{pages: s.pages}, nil
}

type stubRasterDoc struct {
	pages  int
	closed bool
}

func (d *stubRasterDoc) PageCount() int { return d.pages }

func (d *stubRasterDoc) Render(page int) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 10, 10)), nil
}

func (d *stubRasterDoc) Close() error {
	d.closed = true
	return nil
}

type stubTextLayer struct {
	text string
	err  error
}

func (s stubTextLayer) Extract([]byte) (string, error) { return s.text, s.err }

// irregularContour builds a contour whose |1-circularity| is approximately
// the requested irregularity.
func irregularContour(irregularity float64) improc.Contour {
	area := 100.0
	perimeter := math.Sqrt(4 * math.Pi * area / (1 - irregularity))
	return improc.Contour{Area: area, Perimeter: perimeter}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func result(text string, confs ...int) ocr.Result {
	return ocr.Result{Text: text, TokenConfidences: confs}
}

func TestConfidentPrintedImageSkipsEnhancedPass(t *testing.T) {
	engine := &stubEngine{standard: []ocr.Result{result("INVOICE 42", 85)}}
	p := New(
		WithFetcher(&stubFetcher{data: pngBytes(t)}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/scan.png")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if resp.FileType != "printed_image" {
		t.Fatalf("file type = %q, want printed_image", resp.FileType)
	}
	if resp.IsHandwritten {
		t.Fatal("confident printed image must not be handwritten")
	}
	if resp.Confidence != 85.0 {
		t.Fatalf("confidence = %v, want 85", resp.Confidence)
	}
	if got := engine.modeCalls(ocr.ModeEnhanced); got != 0 {
		t.Fatalf("enhanced passes = %d, want 0", got)
	}
}

func TestLowConfidenceImageRunsEnhancedPass(t *testing.T) {
	engine := &stubEngine{
		standard: []ocr.Result{result("smudged", 30)},
		enhanced: result("dear diary", 40),
	}
	p := New(
		WithFetcher(&stubFetcher{data: pngBytes(t)}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/note.jpg")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if got := engine.modeCalls(ocr.ModeEnhanced); got != 1 {
		t.Fatalf("enhanced passes = %d, want 1", got)
	}
	// Averaged confidence (30+40)/2 = 35 stays below 40.
	if resp.Confidence != 35.0 {
		t.Fatalf("confidence = %v, want 35", resp.Confidence)
	}
	if resp.FileType != "handwritten_image" {
		t.Fatalf("file type = %q, want handwritten_image", resp.FileType)
	}
	if !resp.IsHandwritten {
		t.Fatal("handwritten_image must set the handwritten flag")
	}
	if resp.ExtractedText != "smudged\ndear diary" {
		t.Fatalf("text = %q, want standard and enhanced text joined by newline", resp.ExtractedText)
	}
}

func TestTextLayerFastPathSkipsRasterization(t *testing.T) {
	rast := &stubRasterizer{pages: 3}
	p := New(
		WithFetcher(&stubFetcher{data: []byte("%PDF-")}),
		WithTextLayer(stubTextLayer{text: strings.Repeat("contract terms ", 8)}),
		WithRasterizer(rast),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/contract.pdf")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if resp.FileType != "text_pdf" {
		t.Fatalf("file type = %q, want text_pdf", resp.FileType)
	}
	if resp.Confidence != 95.0 {
		t.Fatalf("confidence = %v, want fixed 95", resp.Confidence)
	}
	if resp.IsHandwritten {
		t.Fatal("text_pdf is never handwritten")
	}
	if rast.opened {
		t.Fatal("text-layer fast path must not rasterize")
	}
}

func TestShortTextLayerFallsThroughToRaster(t *testing.T) {
	rast := &stubRasterizer{pages: 1}
	engine := &stubEngine{standard: []ocr.Result{result("scanned page", 85)}}
	p := New(
		WithFetcher(&stubFetcher{data: []byte("%PDF-")}),
		WithTextLayer(stubTextLayer{text: "too short"}),
		WithRasterizer(rast),
		WithEngine(engine),
		WithToolkit(&sigToolkit{}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/scan.pdf")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if !rast.opened {
		t.Fatal("short text layer must fall back to rasterization")
	}
	if resp.FileType != "image_pdf" {
		t.Fatalf("file type = %q, want image_pdf", resp.FileType)
	}
}

func TestPDFIrregularityTriggersEnhancedPass(t *testing.T) {
	engine := &stubEngine{standard: []ocr.Result{result("shaky form", 55)}}
	p := New(
		WithFetcher(&stubFetcher{data: []byte("%PDF-")}),
		WithTextLayer(stubTextLayer{err: errors.New("no text layer")}),
		WithRasterizer(&stubRasterizer{pages: 1}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{contours: []improc.Contour{irregularContour(0.5)}}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/form.pdf")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if got := engine.modeCalls(ocr.ModeEnhanced); got != 1 {
		t.Fatalf("enhanced passes = %d, want 1 (irregularity trigger)", got)
	}
	// Enhanced pass returned no text, so the standard confidence stands and
	// the structural low band applies.
	if resp.FileType != "low_quality_image_pdf" {
		t.Fatalf("file type = %q, want low_quality_image_pdf", resp.FileType)
	}
	if resp.Confidence != 55.0 {
		t.Fatalf("confidence = %v, want 55 (empty enhanced pass must not average)", resp.Confidence)
	}
}

func TestImageIrregularityAloneDoesNotTriggerEnhancedPass(t *testing.T) {
	engine := &stubEngine{standard: []ocr.Result{result("tidy print", 70)}}
	p := New(
		WithFetcher(&stubFetcher{data: pngBytes(t)}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{contours: []improc.Contour{irregularContour(0.5)}}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/print.png")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if got := engine.modeCalls(ocr.ModeEnhanced); got != 0 {
		t.Fatalf("enhanced passes = %d, want 0 for images with irregularity alone", got)
	}
	// The irregularity still shifts the mid band to the cross-family label,
	// which is not handwritten for images.
	if resp.FileType != "image_pdf" {
		t.Fatalf("file type = %q, want image_pdf", resp.FileType)
	}
	if resp.IsHandwritten {
		t.Fatal("image_pdf produced for an image is not handwritten")
	}
}

func TestConfidentScannedPDFCountsAsHandwritten(t *testing.T) {
	engine := &stubEngine{standard: []ocr.Result{result("crisp scan", 85)}}
	p := New(
		WithFetcher(&stubFetcher{data: []byte("%PDF-")}),
		WithTextLayer(stubTextLayer{err: errors.New("no text layer")}),
		WithRasterizer(&stubRasterizer{pages: 1}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/scan.pdf")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if resp.FileType != "image_pdf" {
		t.Fatalf("file type = %q, want image_pdf", resp.FileType)
	}
	if !resp.IsHandwritten {
		t.Fatal("image_pdf counts as handwritten in the PDF family")
	}
}

func TestPDFPagesAggregateInOrder(t *testing.T) {
	engine := &stubEngine{standard: []ocr.Result{
		result("page one", 80),
		result(""),
	}}
	p := New(
		WithFetcher(&stubFetcher{data: []byte("%PDF-")}),
		WithTextLayer(stubTextLayer{err: errors.New("no text layer")}),
		WithRasterizer(&stubRasterizer{pages: 2}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/two.pdf")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	// The tokenless page contributes 0.0: (80+0)/2 = 40, then the enhanced
	// pass (confidence < 60) returns nothing, so 40 stands.
	if resp.Confidence != 40.0 {
		t.Fatalf("confidence = %v, want 40", resp.Confidence)
	}
	if resp.FileType != "low_quality_printed_pdf" {
		t.Fatalf("file type = %q, want low_quality_printed_pdf", resp.FileType)
	}
	if resp.ExtractedText != "page one" {
		t.Fatalf("text = %q, want empty page text trimmed away", resp.ExtractedText)
	}
	if got := engine.modeCalls(ocr.ModeStandard); got != 2 {
		t.Fatalf("standard passes = %d, want one per page", got)
	}
}

func TestUnsupportedContainerIsProcessingError(t *testing.T) {
	p := New(
		WithFetcher(&stubFetcher{data: []byte("PK\x03\x04 office document")}),
		WithToolkit(&sigToolkit{}),
	)

	_, err := p.ClassifyAndExtract(context.Background(), "http://example.com/report.docx")
	var pe *ProcessingError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProcessingError", err)
	}
	if pe.Stage != "decode" {
		t.Fatalf("stage = %q, want decode", pe.Stage)
	}
}

func TestFetchFailureSurfacesAsFetchError(t *testing.T) {
	cause := errors.New("connection refused")
	p := New(WithFetcher(&stubFetcher{err: cause}))

	_, err := p.ClassifyAndExtract(context.Background(), "http://example.com/doc.pdf")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("fetch error must wrap the underlying cause")
	}
}

func TestEngineFailureIsRecovered(t *testing.T) {
	engine := &stubEngine{err: errors.New("engine crashed")}
	p := New(
		WithFetcher(&stubFetcher{data: pngBytes(t)}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/scan.png")
	if err != nil {
		t.Fatalf("engine failure must degrade, got error %v", err)
	}
	if resp.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want 0 after failed passes", resp.Confidence)
	}
	if resp.FileType != "handwritten_image" {
		t.Fatalf("file type = %q, want the lowest band", resp.FileType)
	}
	if resp.ExtractedText != NoTextPlaceholder {
		t.Fatalf("text = %q, want the placeholder literal", resp.ExtractedText)
	}
}

func TestConfidenceRoundedToTwoDecimals(t *testing.T) {
	engine := &stubEngine{standard: []ocr.Result{result("ok", 84, 85, 87)}}
	p := New(
		WithFetcher(&stubFetcher{data: pngBytes(t)}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/scan.png")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	// (84+85+87)/3 = 85.333...
	if resp.Confidence != 85.33 {
		t.Fatalf("confidence = %v, want 85.33", resp.Confidence)
	}
	if resp.Confidence < 0 || resp.Confidence > 100 {
		t.Fatalf("confidence %v out of [0,100]", resp.Confidence)
	}
}

func TestPipelineIsDeterministic(t *testing.T) {
	build := func() *Pipeline {
		return New(
			WithFetcher(&stubFetcher{data: pngBytes(t)}),
			WithEngine(&stubEngine{standard: []ocr.Result{result("stable", 72)}}),
			WithToolkit(&sigToolkit{lapVar: 300}),
		)
	}
	first, err := build().ClassifyAndExtract(context.Background(), "http://example.com/same.png")
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	second, err := build().ClassifyAndExtract(context.Background(), "http://example.com/same.png")
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("responses differ:\n%+v\n%+v", first, second)
	}
}

func TestPreviewFirstPage(t *testing.T) {
	p := New(
		WithFetcher(&stubFetcher{data: []byte("%PDF-")}),
		WithRasterizer(&stubRasterizer{pages: 2}),
		WithToolkit(&sigToolkit{}),
	)
	data, err := p.PreviewFirstPage(context.Background(), "http://example.com/doc.pdf")
	if err != nil {
		t.Fatalf("PreviewFirstPage() error = %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("preview is not decodable PNG: %v", err)
	}
}

func TestPreviewFirstPageWithoutRasterizer(t *testing.T) {
	p := New(WithFetcher(&stubFetcher{data: []byte("%PDF-")}))
	_, err := p.PreviewFirstPage(context.Background(), "http://example.com/doc.pdf")
	var pe *ProcessingError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProcessingError", err)
	}
}

func TestTexturedImageTriggersEnhancedAndAverages(t *testing.T) {
	engine := &stubEngine{
		standard: []ocr.Result{result("faint print", 70)},
		enhanced: result("clearer print", 90),
	}
	p := New(
		WithFetcher(&stubFetcher{data: pngBytes(t)}),
		WithEngine(engine),
		WithToolkit(&sigToolkit{lapVar: 300}),
	)

	resp, err := p.ClassifyAndExtract(context.Background(), "http://example.com/texture.png")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error = %v", err)
	}
	if got := engine.modeCalls(ocr.ModeEnhanced); got != 1 {
		t.Fatalf("enhanced passes = %d, want 1 (texture trigger)", got)
	}
	// (70+90)/2 = 80 lands in the high band.
	if resp.Confidence != 80.0 {
		t.Fatalf("confidence = %v, want 80", resp.Confidence)
	}
	if resp.FileType != "printed_image" {
		t.Fatalf("file type = %q, want printed_image after averaging", resp.FileType)
	}
}
