// Package fetch retrieves document bytes over HTTP and classifies the
// container format from the URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wudi/docscan/observability"
)

// Timeout bounds the whole fetch, including body download. Failures are not
// retried here; retry policy belongs to the caller.
const Timeout = 30 * time.Second

// Some object stores reject default Go user agents, so fetches present a
// desktop browser.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Kind is the container format of a fetched document.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// KindForURL decides the container kind purely from a case-insensitive .pdf
// suffix; everything else is treated as a raster image until decode time.
func KindForURL(url string) Kind {
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return KindPDF
	}
	return KindImage
}

// Document is an immutable fetched payload plus its declared container kind.
type Document struct {
	URL  string
	Kind Kind
	Data []byte
}

// Fetcher downloads documents with a fixed timeout and user agent.
type Fetcher struct {
	client *http.Client
	log    observability.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client; the caller owns its timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLogger sets the logger for fetch telemetry.
func WithLogger(log observability.Logger) Option {
	return func(f *Fetcher) {
		if log != nil {
			f.log = log
		}
	}
}

// New returns a fetcher with the default 30s-timeout client.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: Timeout},
		log:    observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a single GET and returns the body with the declared kind.
// Network failures and non-2xx statuses surface as errors; nothing is
// retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}

	doc := &Document{URL: url, Kind: KindForURL(url), Data: data}
	f.log.Debug("fetched document",
		observability.String("url", url),
		observability.String("kind", string(doc.Kind)),
		observability.Int(observability.MetricFetchBytes, len(data)),
		observability.Int64(observability.MetricFetchTime, time.Since(start).Milliseconds()),
	)
	return doc, nil
}
