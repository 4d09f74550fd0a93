// Package seed turns the URIs given on the command line into crawl seeds.
//
// Drive references (hyper://<key> or a bare key) go straight into the
// frontier. HTTP(S) URLs are fetched exactly once and scraped for drive
// addresses; the pages they link to are never followed.
package seed
