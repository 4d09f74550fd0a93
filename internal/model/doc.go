// Package model defines the core data structures used throughout hyperscrape.
//
// This package contains the following main types:
//   - Key: A validated drive key (64 lowercase hex characters)
//   - Stat and Mount: Per-entry metadata reported by a drive
//   - CrawlReport: The result of one crawl run, one DriveRecord per drive
//   - Metrics: A snapshot of crawl progress
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, the drive backends, the report writers and the
// graph export all use these types.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
