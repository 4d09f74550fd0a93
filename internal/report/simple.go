package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/hyperscrape/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SimpleWriter outputs human-readable plain text for the terminal.
type SimpleWriter struct {
	baseWriter

	// showDrives lists every visited drive, not just the summary.
	showDrives bool

	// verbose adds links, mounts and each failure message.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithDrives lists every visited drive.
func WithDrives(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showDrives = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output), showDrives: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	if w.showDrives {
		w.writeDrives(&sb, report)
	}
	w.writeFailures(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, c string) {
	sb.WriteString(strings.Repeat(c, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title + "\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *model.CrawlReport) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                        HYPERSCRAPE CRAWL REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Run:      %s\n", r.RunID)
	fmt.Fprintf(sb, "Started:  %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Order:    %s\n", strings.ToUpper(r.Order))
	fmt.Fprintf(sb, "Seeds:    %d\n", len(r.Seeds))
	fmt.Fprintf(sb, "Status:   %s\n", runState(r))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, r *model.CrawlReport) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Visited:  %d\n", r.Metrics.Visited)
	fmt.Fprintf(sb, "  Pending:  %d\n", r.Metrics.Pending)
	if r.MountMode {
		fmt.Fprintf(sb, "  Mounted:  %d\n", r.Metrics.Mounted)
	}
	fmt.Fprintf(sb, "  Edges:    %d\n", r.EdgeCount())
	fmt.Fprintf(sb, "  Elapsed:  %s\n", r.Metrics.ElapsedHuman())
	sb.WriteString("\n")

	title := cases.Title(language.English)
	counts := r.StatusCounts()
	for _, status := range statusOrder {
		fmt.Fprintf(sb, "  %-12s %d\n", title.String(status.String())+":", counts[status])
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDrives(sb *strings.Builder, r *model.CrawlReport) {
	if len(r.Drives) == 0 {
		return
	}
	section(sb, "DRIVES")

	for _, d := range r.Drives {
		marker := "[+]"
		if d.Status != model.DriveStatusCrawled {
			marker = "[!]"
		}
		fmt.Fprintf(sb, "  %s %s  depth=%d files=%d links=%d mounts=%d",
			marker, d.Key.URI(), d.Depth, d.FilesScraped, len(d.Links), len(d.Mounts))
		if d.Mounted {
			sb.WriteString(" (mounted)")
		}
		sb.WriteString("\n")
		if d.Error != "" {
			fmt.Fprintf(sb, "      %s: %s\n", d.Status, d.Error)
		}
		if w.verbose {
			for _, k := range d.Links {
				fmt.Fprintf(sb, "      -> %s\n", k.URI())
			}
			for _, k := range d.Mounts {
				fmt.Fprintf(sb, "      => %s (mount)\n", k.URI())
			}
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, r *model.CrawlReport) {
	if len(r.Failures) == 0 {
		return
	}
	section(sb, "FAILURES")

	counts := r.FailureCounts()
	for _, kind := range failureKinds {
		if counts[kind] > 0 {
			fmt.Fprintf(sb, "  %-6s %d\n", kind, counts[kind])
		}
	}
	if w.verbose {
		sb.WriteString("\n")
		for _, f := range r.Failures {
			where := f.Path
			if !f.Key.IsZero() {
				where = f.Key.Short() + ":" + f.Path
			}
			fmt.Fprintf(sb, "  * [%s] %s %s\n", f.Kind, where, f.Message)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by hyperscrape\n")
	sb.WriteString("https://github.com/nao1215/hyperscrape\n")
	rule(sb, "=")
}
