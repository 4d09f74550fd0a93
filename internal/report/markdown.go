package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/hyperscrape/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs GitHub flavored Markdown with summary tables and
// a mermaid pie chart of drive outcomes.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeDrives(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *model.CrawlReport) {
	md.H1("Hyperscrape Crawl Report")
	md.PlainText("")

	status := "✅ " + runState(r)
	if r.Canceled {
		status = "⚠️ " + runState(r)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + r.RunID + "`"},
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Order", r.Order},
			{"Seeds", strconv.Itoa(len(r.Seeds))},
			{"Elapsed", r.Metrics.ElapsedHuman()},
			{"Status", status},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, r *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	title := cases.Title(language.English)
	counts := r.StatusCounts()
	rows := [][]string{
		{"Visited", strconv.Itoa(r.Metrics.Visited)},
		{"Pending", strconv.Itoa(r.Metrics.Pending)},
	}
	if r.MountMode {
		rows = append(rows, []string{"Mounted", strconv.Itoa(r.Metrics.Mounted)})
	}
	rows = append(rows, []string{"Edges", strconv.Itoa(r.EdgeCount())})
	for _, status := range statusOrder {
		rows = append(rows, []string{title.String(status.String()), strconv.Itoa(counts[status])})
	}
	md.Table(markdown.TableSet{Header: []string{"Metric", "Count"}, Rows: rows})
	md.PlainText("")

	if len(r.Drives) > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Drive Outcomes"),
			piechart.WithShowData(true),
		)
		for _, status := range statusOrder {
			if counts[status] > 0 {
				chart.LabelAndIntValue(title.String(status.String()), uint64(counts[status])) //nolint:gosec // counts are never negative
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case r.Canceled:
		md.Warningf("The crawl was canceled with %d drive(s) still pending.", r.Metrics.Pending)
	case len(r.Failures) > 0:
		md.Note(fmt.Sprintf("%d recoverable failure(s) occurred; see the Failures section.", len(r.Failures)))
	default:
		md.Tip("Every discovered drive was crawled without failures.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDrives(md *markdown.Markdown, r *model.CrawlReport) {
	md.H2("Drives")
	md.PlainText("")

	if len(r.Drives) == 0 {
		md.PlainText("No drives were visited.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(r.Drives))
	for i, d := range r.Drives {
		mounted := "-"
		if d.Mounted {
			mounted = "yes"
		}
		rows[i] = []string{
			"`" + d.Key.Short() + "`",
			d.Status.String(),
			strconv.Itoa(d.Depth),
			strconv.Itoa(d.FilesScraped),
			strconv.Itoa(len(d.Links)),
			strconv.Itoa(len(d.Mounts)),
			mounted,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Key", "Status", "Depth", "Files", "Links", "Mounts", "Mounted"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, r *model.CrawlReport) {
	if len(r.Failures) == 0 {
		return
	}
	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(r.Failures))
	for i, f := range r.Failures {
		key := "-"
		if !f.Key.IsZero() {
			key = "`" + f.Key.Short() + "`"
		}
		path := f.Path
		if path == "" {
			path = "-"
		}
		rows[i] = []string{f.Kind, key, truncateString(path, 40), truncateString(f.Message, 60)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Drive", "Path", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [hyperscrape](https://github.com/nao1215/hyperscrape)*")
}
