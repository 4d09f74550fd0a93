package report

import (
	"io"

	"github.com/nao1215/hyperscrape/internal/model"
)

// Writer writes a finished crawl report in some format.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes the same report to several Writers, e.g. a text
// summary to the terminal and JSON to a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every Writer and stops on the first error.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusOrder is the order statuses are listed in every format.
var statusOrder = []model.DriveStatus{
	model.DriveStatusCrawled,
	model.DriveStatusUnlisted,
	model.DriveStatusUnreachable,
}

// failureKinds is the order failure kinds are listed in every format.
var failureKinds = []string{"open", "list", "read", "stat", "mount", "fetch"}

// runState describes how the run ended.
func runState(r *model.CrawlReport) string {
	if r.Canceled {
		return "Canceled (partial results)"
	}
	return "Complete"
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
