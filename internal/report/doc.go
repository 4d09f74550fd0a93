// Package report renders crawl reports.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for tool integration, optionally wrapped with a summary
//   - MarkdownWriter: GitHub flavored Markdown with a mermaid pie chart
//
// All writers implement Writer and can be combined with MultiWriter.
package report
