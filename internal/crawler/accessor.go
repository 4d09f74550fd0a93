package crawler

import (
	"context"

	"github.com/nao1215/hyperscrape/internal/model"
)

// Drive is a handle to one drive.
// Paths are slash-separated and relative to the drive root; "" and "/" both
// name the root. Implementations own no traversal state.
type Drive interface {
	// List returns the entries below dir. With recursive set, entries of all
	// subdirectories are included; mounted drives are reported as entries but
	// not descended into.
	List(ctx context.Context, dir string, recursive bool) ([]string, error)

	// Read returns the content of a regular file.
	Read(ctx context.Context, path string) ([]byte, error)

	// Stat returns the metadata of an entry, including its mount descriptor.
	Stat(ctx context.Context, path string) (model.Stat, error)
}

// MountableDrive is a locally writable drive that other drives can be
// mounted into.
type MountableDrive interface {
	Drive

	// Mount attaches the drive identified by source at target.
	// It fails if the target already exists.
	Mount(ctx context.Context, source model.Key, target string) error
}

// Accessor acquires drive handles by key.
// The crawler is indifferent to the transport behind it.
type Accessor interface {
	Open(ctx context.Context, key model.Key) (Drive, error)
}

// Pinger is implemented by accessors whose transport can be checked before
// a crawl starts. A failing Ping aborts Run with ErrConnection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AccessorFunc adapts a function to the Accessor interface.
type AccessorFunc func(ctx context.Context, key model.Key) (Drive, error)

// Open calls f(ctx, key).
func (f AccessorFunc) Open(ctx context.Context, key model.Key) (Drive, error) {
	return f(ctx, key)
}
