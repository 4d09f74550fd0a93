package drive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nao1215/hyperscrape/internal/crawler"
	"github.com/nao1215/hyperscrape/internal/model"
)

// LocalStore serves drives that are synced to the local filesystem.
// Each drive lives in a directory named after its key:
//
//	<root>/<key>/...
//
// A mount is a symbolic link whose target is the hyper:// address of the
// mounted drive. Listings report mounts as entries and never descend into
// them.
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithLocalLogger sets a custom logger.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(s *LocalStore) {
		s.logger = logger
	}
}

// NewLocalStore creates a store rooted at root. The directory is created
// if it does not exist.
func NewLocalStore(root string, opts ...LocalOption) (*LocalStore, error) {
	if root == "" {
		return nil, ErrEmptyStoreRoot
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create drive store %s: %w", root, err)
	}

	s := &LocalStore{root: root}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Root returns the store directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Ping implements crawler.Pinger. It fails when the store directory is
// missing or not a directory.
func (s *LocalStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("drive store %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("drive store %s: %w", s.root, ErrNotDirectory)
	}
	return nil
}

// Open implements crawler.Accessor.
func (s *LocalStore) Open(ctx context.Context, key model.Key) (crawler.Drive, error) {
	return s.OpenLocal(ctx, key)
}

// OpenLocal returns the drive for key as a *LocalDrive.
func (s *LocalStore) OpenLocal(_ context.Context, key model.Key) (*LocalDrive, error) {
	if key.IsZero() {
		return nil, model.ErrEmptyKey
	}
	dir := filepath.Join(s.root, key.String())
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("drive %s: %w", key.Short(), ErrDriveNotFound)
		}
		return nil, fmt.Errorf("drive %s: %w", key.Short(), err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drive %s: %w", key.Short(), ErrNotDirectory)
	}
	return &LocalDrive{key: key, dir: dir}, nil
}

// Create returns the drive for key, creating its directory if needed.
// Use it for the writable root drive in mount mode.
func (s *LocalStore) Create(ctx context.Context, key model.Key) (*LocalDrive, error) {
	if key.IsZero() {
		return nil, model.ErrEmptyKey
	}
	if err := os.MkdirAll(filepath.Join(s.root, key.String()), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create drive %s: %w", key.Short(), err)
	}
	s.logger.Debug("drive directory ready", "key", key.Short())
	return s.OpenLocal(ctx, key)
}

// Keys returns the keys of all drives present in the store, sorted.
// Directories that are not named after a key are ignored.
func (s *LocalStore) Keys() ([]model.Key, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive store: %w", err)
	}
	keys := make([]model.Key, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if k, err := model.NewKey(e.Name()); err == nil {
			keys = append(keys, k)
		}
	}
	model.SortKeys(keys)
	return keys, nil
}

// LocalDrive is one drive of a LocalStore.
type LocalDrive struct {
	key model.Key
	dir string
}

// Key returns the drive key.
func (d *LocalDrive) Key() model.Key {
	return d.key
}

// resolve maps a drive path to a filesystem path inside the drive.
// ".." segments cannot climb above the drive root.
func (d *LocalDrive) resolve(p string) string {
	clean := path.Clean("/" + p)
	return filepath.Join(d.dir, filepath.FromSlash(clean))
}

// List implements crawler.Drive. Entries are slash-separated paths relative
// to the drive root, directories included, in lexical order.
func (d *LocalDrive) List(ctx context.Context, dir string, recursive bool) ([]string, error) {
	base := d.resolve(dir)
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list %s: %w", dir, ErrNotDirectory)
	}

	entries := make([]string, 0)

	if !recursive {
		items, err := os.ReadDir(base)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, item := range items {
			entries = append(entries, d.relative(filepath.Join(base, item.Name())))
		}
		return entries, nil
	}

	// WalkDir does not follow symbolic links, so mounts are listed but not entered.
	err = filepath.WalkDir(base, func(p string, _ fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == base {
			return nil
		}
		entries = append(entries, d.relative(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return entries, nil
}

// relative converts a filesystem path inside the drive to a drive path.
func (d *LocalDrive) relative(p string) string {
	rel, err := filepath.Rel(d.dir, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// Read implements crawler.Drive. Only regular files can be read.
func (d *LocalDrive) Read(_ context.Context, p string) ([]byte, error) {
	full := d.resolve(p)
	info, err := os.Lstat(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("read %s: %w", p, ErrNotRegularFile)
	}
	data, err := os.ReadFile(full) //nolint:gosec // path is confined to the drive directory
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// Stat implements crawler.Drive. A symbolic link pointing at a hyper://
// address is reported as a mount.
func (d *LocalDrive) Stat(_ context.Context, p string) (model.Stat, error) {
	full := d.resolve(p)
	info, err := os.Lstat(full)
	if err != nil {
		return model.Stat{}, fmt.Errorf("stat %s: %w", p, err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return model.Stat{}, fmt.Errorf("stat %s: %w", p, err)
		}
		if strings.HasPrefix(target, model.Scheme) {
			if k, ok := model.NormalizeKey(target); ok {
				return model.Stat{Mount: &model.Mount{Key: k}}, nil
			}
		}
		return model.Stat{}, nil
	}

	st := model.Stat{IsDir: info.IsDir()}
	if info.Mode().IsRegular() {
		st.Size = info.Size()
	}
	return st, nil
}

// Mount implements crawler.MountableDrive by creating a symbolic link at
// target that points at the source drive's address.
func (d *LocalDrive) Mount(_ context.Context, source model.Key, target string) error {
	if source.IsZero() {
		return model.ErrEmptyKey
	}
	full := d.resolve(target)
	if full == d.dir {
		return fmt.Errorf("mount %s: %w", target, ErrMountExists)
	}
	if _, err := os.Lstat(full); err == nil {
		return fmt.Errorf("mount %s: %w", target, ErrMountExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("mount %s: %w", target, err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("mount %s: %w", target, err)
	}
	if err := os.Symlink(source.URI(), full); err != nil {
		return fmt.Errorf("mount %s: %w", target, err)
	}
	return nil
}
