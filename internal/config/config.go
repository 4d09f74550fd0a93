package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "hyperscrape"

	// BackendLocal reads drives from a directory tree on disk.
	BackendLocal = "local"

	// BackendRemote talks to a drive daemon over JSON-RPC.
	BackendRemote = "remote"

	// DefaultBackend is the drive backend used when none is given.
	DefaultBackend = BackendLocal

	// DefaultEndpoint is where a local drive daemon usually listens.
	DefaultEndpoint = "http://127.0.0.1:3101"

	// DefaultOrder drains the frontier newest-first.
	DefaultOrder = "lifo"

	// DefaultTimeout bounds each request to the daemon or a seed page.
	// Drives are fetched from peers on first access, so this is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultConcurrency is the number of files of one drive read in parallel.
	DefaultConcurrency = 4

	// DefaultDelay is the pause between opening two drives. Zero means none.
	DefaultDelay time.Duration = 0

	// DefaultTorStartupTimeout is how long the embedded Tor daemon may take
	// to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultUserAgent identifies hyperscrape when fetching seed pages.
	DefaultUserAgent = "hyperscrape/1.0 (+https://github.com/nao1215/hyperscrape)"

	// DefaultMaxBodySize limits how much of a seed page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for a crawl.
// It is populated from CLI flags and the optional config file and passed
// down explicitly; there is no global configuration state.
type Config struct {
	// Seeds are the drive keys, hyper:// addresses and HTTP(S) URLs the
	// crawl starts from.
	Seeds []string

	// Backend selects how drives are accessed: "local" or "remote".
	Backend string

	// StoreDir is the root directory of the local drive store.
	StoreDir string

	// Endpoint is the base URL of the drive daemon for the remote backend.
	Endpoint string

	// Token authenticates against the drive daemon. Never logged.
	Token string

	// Mount enables mount mode: every visited drive is mounted into RootKey.
	Mount bool

	// RootKey is the drive that receives mounts in mount mode.
	RootKey string

	// Order is the frontier drain order: "lifo" or "fifo".
	Order string

	// Concurrency is the number of files of one drive read in parallel.
	Concurrency int

	// Delay is the pause between opening two drives.
	Delay time.Duration

	// Timeout bounds each HTTP request to the daemon or a seed page.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for all HTTP traffic.
	ProxyAddress string

	// EmbeddedTor starts a private Tor daemon and routes HTTP traffic
	// through it. Takes precedence over ProxyAddress.
	EmbeddedTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap.
	TorStartupTimeout time.Duration

	// ConfigFilePath is the path to the configuration file.
	// If empty, the file is searched in the usual locations.
	ConfigFilePath string

	// File is the loaded configuration file, if any.
	File *File

	// JSONReport writes the report as JSON. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes the report as Markdown. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report; stdout when empty.
	ReportFile string

	// DBDir is the directory holding the graph export database.
	DBDir string

	// SaveToDB exports the crawl graph after each run.
	SaveToDB bool

	// Progress renders a console spinner during the crawl.
	Progress bool

	// MetricsAddr serves Prometheus metrics at this address when set.
	MetricsAddr string

	// LogJSON switches log output to JSON lines.
	LogJSON bool

	// ScrapeImages scans EXIF text tags of JPEG and TIFF files.
	ScrapeImages bool

	// Verbose enables debug logging.
	Verbose bool

	// UserAgent is sent with seed page requests.
	UserAgent string

	// MaxBodySize is the maximum seed page size in bytes.
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Backend:           DefaultBackend,
		StoreDir:          filepath.Join(XDGDataDir(), "drives"),
		Endpoint:          DefaultEndpoint,
		Order:             DefaultOrder,
		Concurrency:       DefaultConcurrency,
		Delay:             DefaultDelay,
		Timeout:           DefaultTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for hyperscrape.
// On Linux: ~/.local/share/hyperscrape
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for hyperscrape.
// On Linux: ~/.config/hyperscrape
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for hyperscrape.
// On Linux: ~/.cache/hyperscrape
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 && c.RootKey == "" {
		return ErrNoSeeds
	}

	switch c.Backend {
	case BackendLocal:
		if c.StoreDir == "" {
			return ErrMissingStoreDir
		}
	case BackendRemote:
		if c.Endpoint == "" {
			return ErrMissingEndpoint
		}
	default:
		return ErrInvalidBackend
	}

	if c.Mount && c.RootKey == "" {
		return ErrMissingRootKey
	}

	if c.Order != "lifo" && c.Order != "fifo" {
		return ErrInvalidOrder
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
