// Package crawler provides the drive graph crawl engine.
//
// # Architecture
//
// The package is designed around the Crawler type, which drains a Frontier
// of drive keys. For every key it opens the drive through an Accessor, lists
// it recursively, reads the entries the Policy marks as scrapable, extracts
// hyper:// addresses from their content and feeds the keys back into the
// frontier. Drives mounted inside a drive are always followed. The loop ends
// when the frontier is empty.
//
// # Components
//
//   - Crawler: The orchestrator that drives one crawl to completion
//   - Frontier: Deduplicating work set; a key is visited at most once
//   - Policy: Decides which paths are read and which sub-trees are skipped
//   - ScrapeAddresses / ExtractKeys: Address extraction from text
//   - Accessor, Drive, MountableDrive: The capability the engine requires
//
// # Failure handling
//
// Failures are scoped to one key or entry. A drive that cannot be opened or
// listed stays visited and contributes nothing; a file that cannot be read
// is skipped. Each failure is reported as an *OpError to the Observer and
// recorded in the crawl report. Only an unreachable transport at seed time
// (ErrConnection) aborts a run. Nothing is retried.
//
// # Usage
//
//	c := crawler.NewCrawler(store, crawler.WithOrder(crawler.OrderLIFO))
//	report, err := c.Run(ctx, []model.Key{root})
package crawler
