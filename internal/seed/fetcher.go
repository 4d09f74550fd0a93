package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/hyperscrape/internal/crawler"
	"github.com/nao1215/hyperscrape/internal/model"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultUserAgent identifies seed fetches.
	DefaultUserAgent = "hyperscrape (+https://github.com/nao1215/hyperscrape)"
	// DefaultMaxBodySize limits how much of a seed page is read.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024
	// DefaultConcurrency is the number of seed pages fetched at once.
	DefaultConcurrency = 4
)

// Fetcher scrapes web pages for drive addresses. Each URL is fetched exactly
// once; links to other pages are never followed.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	concurrency int
	logger      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size. Zero keeps the default.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithConcurrency sets how many URLs ScrapeAll fetches at once.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher using client. A nil client gets a plain
// client with a 30 second timeout.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Scrape fetches url once and returns the drive keys its body references,
// in order of appearance, duplicates removed.
// Failures are returned as *crawler.OpError of kind KindFetch.
func (f *Fetcher) Scrape(ctx context.Context, url string) ([]model.Key, error) {
	text, err := f.fetch(ctx, url)
	if err != nil {
		return nil, crawler.NewFetchError(url, err)
	}

	keys := crawler.ExtractKeys(text)
	seen := make(map[model.Key]struct{}, len(keys))
	out := make([]model.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	f.logger.Debug("scraped seed page", "url", url, "keys", len(out))
	return out, nil
}

// fetch performs the GET and returns the body decoded to UTF-8.
func (f *Fetcher) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body := io.LimitReader(resp.Body, f.maxBodySize)
	reader, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset: scrape the raw bytes; addresses are ASCII anyway.
		reader = body
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Result is the outcome of scraping one seed URL.
type Result struct {
	URL  string
	Keys []model.Key
	Err  error
}

// ScrapeAll scrapes every URL concurrently and returns one Result per URL,
// in input order. A failing URL never affects the others.
func (f *Fetcher) ScrapeAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			keys, err := f.Scrape(gctx, url)
			results[i] = Result{URL: url, Keys: keys, Err: err}
			return nil
		})
	}
	_ = g.Wait() // Scrape failures are carried in the results.

	return results
}
