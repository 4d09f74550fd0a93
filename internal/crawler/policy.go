package crawler

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/nao1215/hyperscrape/internal/model"
)

// DefaultExclusions are directory names never scraped, at any depth.
var DefaultExclusions = []string{"node_modules", ".git"}

// DefaultExtensions are the file extensions scanned for addresses.
var DefaultExtensions = []string{".htm", ".html", ".md", ".xml", ".json", ".js", ".css"}

// metadataExtensions are image formats that can carry EXIF text tags.
var metadataExtensions = []string{".jpg", ".jpeg", ".tif", ".tiff"}

// Policy decides which entries of a drive listing are read for addresses.
//
// Design decision: Exclusions match whole path segments anywhere in the path,
// not only at the root, so vendored trees nested deep inside a drive are
// skipped as well.
type Policy struct {
	exclusions     map[string]struct{}
	extensions     map[string]struct{}
	ignorePatterns []string
	imageMetadata  bool
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithExclusions replaces the excluded directory names.
func WithExclusions(names []string) PolicyOption {
	return func(p *Policy) {
		p.exclusions = toSet(names, false)
	}
}

// WithExtensions replaces the scrapable extensions.
// Extensions may be given with or without the leading dot.
func WithExtensions(exts []string) PolicyOption {
	return func(p *Policy) {
		p.extensions = toSet(exts, true)
	}
}

// WithIgnorePatterns sets glob patterns for paths to skip.
// Patterns use glob syntax (e.g., "drafts/*", "*.min.js").
func WithIgnorePatterns(patterns []string) PolicyOption {
	return func(p *Policy) {
		p.ignorePatterns = patterns
	}
}

// WithImageMetadata enables scraping EXIF text tags of JPEG and TIFF files.
func WithImageMetadata(enabled bool) PolicyOption {
	return func(p *Policy) {
		p.imageMetadata = enabled
	}
}

// NewPolicy creates a Policy with the default exclusions and extensions.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{
		exclusions: toSet(DefaultExclusions, false),
		extensions: toSet(DefaultExtensions, true),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsExcludedPath reports whether any segment of p is an excluded name,
// or p matches one of the ignore patterns.
func (p *Policy) IsExcludedPath(entry string) bool {
	for _, segment := range strings.Split(entry, "/") {
		if _, ok := p.exclusions[segment]; ok {
			return true
		}
	}
	for _, pattern := range p.ignorePatterns {
		if matchPattern(pattern, entry) {
			return true
		}
	}
	return false
}

// IsScrapable reports whether entry has an allowed extension and is not excluded.
// Extensions are compared case-insensitively.
func (p *Policy) IsScrapable(entry string) bool {
	ext := strings.ToLower(path.Ext(entry))
	if _, ok := p.extensions[ext]; !ok {
		return false
	}
	return !p.IsExcludedPath(entry)
}

// IsMetadataScrapable reports whether entry is an image whose EXIF metadata
// should be scanned. Always false unless WithImageMetadata(true) was given.
func (p *Policy) IsMetadataScrapable(entry string) bool {
	if !p.imageMetadata {
		return false
	}
	ext := strings.ToLower(path.Ext(entry))
	for _, e := range metadataExtensions {
		if ext == e {
			return !p.IsExcludedPath(entry)
		}
	}
	return false
}

// FilterScrapable returns the entries for which IsScrapable is true, in order.
func (p *Policy) FilterScrapable(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if p.IsScrapable(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterMetadata returns the entries for which IsMetadataScrapable is true.
func (p *Policy) FilterMetadata(entries []string) []string {
	if !p.imageMetadata {
		return nil
	}
	out := make([]string, 0)
	for _, e := range entries {
		if p.IsMetadataScrapable(e) {
			out = append(out, e)
		}
	}
	return out
}

// StatFunc looks up the metadata of one entry.
type StatFunc func(ctx context.Context, entry string) (model.Stat, error)

// FilterMounts stats every entry and returns the keys of mounted drives.
// A stat failure contributes nothing for that entry and never aborts the
// batch; the failures are returned so callers can report them.
// The returned OpErrors carry no key; the caller fills it in.
func FilterMounts(ctx context.Context, entries []string, stat StatFunc) ([]model.Key, []*OpError) {
	keys := make([]model.Key, 0)
	var failures []*OpError
	for _, e := range entries {
		st, err := stat(ctx, e)
		if err != nil {
			failures = append(failures, newOpError(KindStat, model.Key{}, e, err))
			continue
		}
		if st.IsMount() {
			keys = append(keys, st.MountKey())
		}
	}
	return keys, failures
}

// toSet builds a lookup set. With ext set, names are lowercased and given a
// leading dot when missing.
func toSet(names []string, ext bool) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if ext {
			n = strings.ToLower(n)
			if !strings.HasPrefix(n, ".") {
				n = "." + n
			}
		}
		set[n] = struct{}{}
	}
	return set
}

// matchPattern checks if a drive path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "drafts/*" matches "drafts/a.md" and "drafts/sub/b.md"
//   - "*.min.js" matches "assets/app.min.js"
func matchPattern(pattern, entry string) bool {
	pattern = strings.TrimPrefix(pattern, "/")
	entry = strings.TrimPrefix(entry, "/")

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(entry, prefix+"/") || entry == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(entry, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, entry); err == nil && matched {
		return true
	}

	// Patterns without a separator also match the base name.
	if !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, path.Base(entry)); err == nil && matched {
			return true
		}
	}

	return false
}
