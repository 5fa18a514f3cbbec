// Command docscan classifies a document URL and extracts its text.
//
// Usage:
//
//	docscan [flags] <url>
//
// Requires Tesseract and OpenCV at runtime; see the gosseract and gocv
// installation notes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/wudi/docscan/improc/opencv"
	"github.com/wudi/docscan/observability"
	"github.com/wudi/docscan/ocr/tesseract"
	"github.com/wudi/docscan/pipeline"
	"github.com/wudi/docscan/raster/mupdf"
)

type options struct {
	url       string
	languages []string
	timeout   time.Duration
	verbose   bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docscan: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "docscan: %v\n", err)
		var fe *pipeline.FetchError
		if errors.As(err, &fe) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: docscan [flags] <url>\n")
		flag.PrintDefaults()
	}
	langs := flag.String("langs", "", "Comma-separated recognition language hints (e.g. eng,deu)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall processing deadline")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return opts, errors.New("exactly one document URL is required")
	}
	opts.url = flag.Arg(0)
	if *langs != "" {
		opts.languages = strings.Split(*langs, ",")
	}
	opts.timeout = *timeout
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	toolkit := opencv.New()
	p := pipeline.New(
		pipeline.WithToolkit(toolkit),
		pipeline.WithEngine(tesseract.NewEngine(
			tesseract.WithToolkit(toolkit),
			tesseract.WithLogger(log),
		)),
		pipeline.WithRasterizer(mupdf.New()),
		pipeline.WithLanguages(opts.languages...),
		pipeline.WithLogger(log),
	)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	resp, err := p.ClassifyAndExtract(ctx, opts.url)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
