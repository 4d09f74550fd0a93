package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/hyperscrape/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// version, when set, wraps the report in a JSONReport envelope.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion wraps the report in an envelope carrying the tool version
// and a summary block.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	if w.version == "" {
		return w.writeJSON(report)
	}
	return w.writeJSON(NewJSONReport(report, w.version))
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// Summary is the aggregate view of a report.
type Summary struct {
	Visited  int            `json:"visited"`
	Pending  int            `json:"pending"`
	Mounted  int            `json:"mounted"`
	Edges    int            `json:"edges"`
	Statuses map[string]int `json:"statuses"`
	Failures map[string]int `json:"failures"`
	Elapsed  string         `json:"elapsed"`
}

// NewSummary computes the summary of a report.
func NewSummary(r *model.CrawlReport) Summary {
	statuses := make(map[string]int, len(statusOrder))
	for status, n := range r.StatusCounts() {
		statuses[status.String()] = n
	}
	return Summary{
		Visited:  r.Metrics.Visited,
		Pending:  r.Metrics.Pending,
		Mounted:  r.Metrics.Mounted,
		Edges:    r.EdgeCount(),
		Statuses: statuses,
		Failures: r.FailureCounts(),
		Elapsed:  r.Metrics.ElapsedHuman(),
	}
}

// JSONReport is the envelope written by WithVersion.
type JSONReport struct {
	Version string             `json:"version"`
	Summary Summary            `json:"summary"`
	Report  *model.CrawlReport `json:"report"`
}

// NewJSONReport wraps a report with version information and its summary.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: NewSummary(report),
		Report:  report,
	}
}
