// Package config provides configuration structures and utilities for
// hyperscrape: the crawl options set from CLI flags, and the optional
// .hyperscrape YAML file with per-drive settings.
package config
