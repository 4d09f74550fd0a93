package crawler

import (
	"regexp"

	"github.com/nao1215/hyperscrape/internal/model"
)

// addressPattern matches a drive address embedded in text.
// It is not anchored, so a longer hex run still yields its first 64 characters.
var addressPattern = regexp.MustCompile(`hyper://[0-9a-f]{64}`)

// ScrapeAddresses returns every drive address in text, left to right.
// Duplicates are preserved; deduplication happens in the frontier.
func ScrapeAddresses(text string) []string {
	return addressPattern.FindAllString(text, -1)
}

// ExtractKeys scrapes text for drive addresses and normalizes them into keys.
// Invalid references are dropped silently. Duplicates are preserved.
func ExtractKeys(text string) []model.Key {
	refs := ScrapeAddresses(text)
	if len(refs) == 0 {
		return nil
	}
	keys := make([]model.Key, 0, len(refs))
	for _, ref := range refs {
		if k, ok := model.NormalizeKey(ref); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// uniqueKeys returns keys with duplicates removed, keeping first occurrences.
func uniqueKeys(keys []model.Key) []model.Key {
	seen := make(map[model.Key]struct{}, len(keys))
	out := make([]model.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
