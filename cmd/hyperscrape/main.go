// Package main provides the entry point for the hyperscrape CLI.
//
// hyperscrape crawls hyper:// drives: starting from seed keys or web pages
// that mention them, it reads every drive it can reach, scrapes its files
// for further drive addresses and follows mounts until nothing new is found.
//
// Usage:
//
//	hyperscrape crawl <key|hyper://key|url>...
//	hyperscrape history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
