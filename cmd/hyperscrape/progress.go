package main

import (
	"fmt"
	"io"

	"github.com/nao1215/hyperscrape/internal/crawler"
	"github.com/nao1215/hyperscrape/internal/model"
	"github.com/schollz/progressbar/v3"
)

// progressObserver renders an indeterminate spinner while the crawl runs.
// The total number of drives is unknown until the frontier is exhausted, so
// the bar counts visited drives instead of showing a percentage.
type progressObserver struct {
	bar *progressbar.ProgressBar
}

var _ crawler.Observer = (*progressObserver)(nil)

// newProgressObserver creates a spinner writing to w.
func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("crawling"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// OnStep advances the spinner and describes the drive about to be opened.
func (p *progressObserver) OnStep(key model.Key, m model.Metrics) {
	p.bar.Describe(fmt.Sprintf("%s (pending %d, visited %d)", key.Short(), m.Pending, m.Visited))
	_ = p.bar.Add(1) //nolint:errcheck // rendering errors are not actionable
}

// OnFailure is a no-op; failures are logged and reported.
func (p *progressObserver) OnFailure(*crawler.OpError) {}

// OnFinish clears the spinner.
func (p *progressObserver) OnFinish(*model.CrawlReport) {
	_ = p.bar.Finish() //nolint:errcheck // rendering errors are not actionable
}
