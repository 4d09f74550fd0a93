// Package database exports crawl results to SQLite.
//
// GraphDB stores each finished run as three tables: runs (one row per
// crawl, with the full JSON report), drives (one row per visited drive)
// and links (one row per link or mount edge). The export is write-only
// from the crawler's point of view; the history command reads it to list
// past runs and compare their drive sets.
//
// The database uses modernc.org/sqlite, a CGO-free driver, so the binary
// cross-compiles without a C toolchain.
package database
