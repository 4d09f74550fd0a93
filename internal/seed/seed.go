package seed

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/hyperscrape/internal/model"
)

// ErrUnsupportedSeed is returned for seeds that are neither HTTP(S) URLs
// nor drive references.
var ErrUnsupportedSeed = errors.New("unsupported seed: expected http(s) URL, hyper:// address or drive key")

// Kind classifies a seed.
type Kind int

const (
	// KindDrive is a drive reference, queued directly.
	KindDrive Kind = iota
	// KindHTTP is a web page, fetched once and scraped for addresses.
	KindHTTP
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDrive:
		return "drive"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Seed is one classified seed.
type Seed struct {
	// Kind tells how the seed is used.
	Kind Kind
	// Key is set for KindDrive seeds.
	Key model.Key
	// URL is set for KindHTTP seeds.
	URL string
}

// Classify turns one user-supplied URI into a Seed.
// "http://" and "https://" URLs are HTTP seeds. Everything else is read as
// a drive reference the way addresses found in drive content are: a
// "hyper://" prefix is stripped and the first 64 characters must form a key,
// so "<key>/index.html" seeds the drive <key>. Anything else is rejected.
func Classify(uri string) (Seed, error) {
	uri = strings.TrimSpace(uri)
	lower := strings.ToLower(uri)

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return Seed{Kind: KindHTTP, URL: uri}, nil
	}

	k, ok := model.NormalizeKey(uri)
	if !ok {
		return Seed{}, fmt.Errorf("%w: %q", ErrUnsupportedSeed, uri)
	}
	return Seed{Kind: KindDrive, Key: k}, nil
}

// ClassifyAll classifies every URI. Keys and URLs are returned in input
// order. Invalid seeds are logged at warn level and dropped, so one typo
// never discards the valid seeds next to it. A nil logger uses
// slog.Default().
func ClassifyAll(uris []string, logger *slog.Logger) ([]model.Key, []string) {
	if logger == nil {
		logger = slog.Default()
	}

	keys := make([]model.Key, 0, len(uris))
	urls := make([]string, 0)
	for _, uri := range uris {
		s, err := Classify(uri)
		if err != nil {
			logger.Warn("ignoring invalid seed", "seed", uri, "error", err)
			continue
		}
		switch s.Kind {
		case KindHTTP:
			urls = append(urls, s.URL)
		default:
			keys = append(keys, s.Key)
		}
	}
	return keys, urls
}
