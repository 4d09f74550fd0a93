// Package metrics exposes crawl progress to Prometheus.
//
// Prometheus implements crawler.Recorder; pass it to the crawler with
// crawler.WithRecorder and serve it with Serve while the crawl runs.
package metrics
