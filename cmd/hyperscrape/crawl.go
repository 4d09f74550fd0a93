package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/hyperscrape/internal/config"
	"github.com/nao1215/hyperscrape/internal/crawler"
	"github.com/nao1215/hyperscrape/internal/database"
	"github.com/nao1215/hyperscrape/internal/drive"
	hlog "github.com/nao1215/hyperscrape/internal/log"
	"github.com/nao1215/hyperscrape/internal/metrics"
	"github.com/nao1215/hyperscrape/internal/model"
	"github.com/nao1215/hyperscrape/internal/report"
	"github.com/nao1215/hyperscrape/internal/seed"
	"github.com/nao1215/hyperscrape/internal/transport"
	"github.com/spf13/cobra"
)

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 5 * time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [key|hyper://key|url]...",
		Short: "Crawl hyper:// drives starting from the given seeds",
		Long: `Crawl visits every hyper:// drive reachable from the given seeds.

Seeds may be 64-character drive keys, hyper:// addresses or http(s) URLs.
A URL is fetched once and scraped for hyper:// addresses; the pages it
links to are not followed. Each drive is visited exactly once: its listing
is read, its text files are scanned for addresses and its mounts are
followed.

Examples:
  # Crawl drives from the local store (~/.local/share/hyperscrape/drives)
  hyperscrape crawl hyper://0123...cdef

  # Crawl through a drive daemon
  hyperscrape crawl --backend remote --endpoint http://127.0.0.1:3101 0123...cdef

  # Seed from a web page, reach it through Tor
  hyperscrape crawl --embedded-tor https://example.com/drives.html

  # Mount every visited drive into a root drive
  hyperscrape crawl --mount --root-key fedc...3210 0123...cdef

  # Crawl everything reachable from the root drive itself
  hyperscrape crawl --root-key fedc...3210

  # Write a Markdown report and keep the crawl graph for later
  hyperscrape crawl -m -o report.md --db 0123...cdef

When no seed is given, the seeds listed in the configuration file are used.`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Drive backend flags
	cmd.Flags().StringP("backend", "B", config.DefaultBackend,
		"Drive backend: local or remote")
	cmd.Flags().String("store", filepath.Join(config.XDGDataDir(), "drives"),
		"Root directory of the local drive store")
	cmd.Flags().String("endpoint", config.DefaultEndpoint,
		"Drive daemon endpoint for the remote backend")
	cmd.Flags().String("token", "",
		"Drive daemon access token (or HYPERSCRAPE_TOKEN)")
	cmd.Flags().Bool("mount", false,
		"Mount every visited drive into the root drive")
	cmd.Flags().String("root-key", "",
		"Key of the root working drive; it is crawled first and receives the mounts of --mount")

	// Crawl behavior flags
	cmd.Flags().String("order", config.DefaultOrder,
		"Frontier order: lifo (depth-first) or fifo (breadth-first)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of files of one drive read in parallel")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Minimum pause between opening two drives")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request to the daemon or a seed page")
	cmd.Flags().Bool("scrape-images", false,
		"Also scan EXIF text tags of JPEG and TIFF files")

	// Network flags
	cmd.Flags().StringP("proxy", "x", "",
		"Route HTTP traffic through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("embedded-tor", false,
		"Start a private Tor daemon and route HTTP traffic through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .hyperscrape in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("db", "",
		"Save the crawl graph to hyperscrape.db in this directory")
	cmd.Flags().Lookup("db").NoOptDefVal = config.XDGDataDir()

	// Observability flags
	cmd.Flags().Bool("progress", false,
		"Show a progress spinner on stderr")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics at this address (e.g., :9090)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON lines")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, stopping after the current drive...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildCrawlConfig creates a Config from cobra command flags and the
// configuration file.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.Backend, err = flags.GetString("backend"); err != nil {
		return nil, err
	}
	if cfg.StoreDir, err = flags.GetString("store"); err != nil {
		return nil, err
	}
	if cfg.Endpoint, err = flags.GetString("endpoint"); err != nil {
		return nil, err
	}
	if cfg.Token, err = flags.GetString("token"); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("HYPERSCRAPE_TOKEN")
	}
	if cfg.Mount, err = flags.GetBool("mount"); err != nil {
		return nil, err
	}
	if cfg.RootKey, err = flags.GetString("root-key"); err != nil {
		return nil, err
	}
	if cfg.Order, err = flags.GetString("order"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ScrapeImages, err = flags.GetBool("scrape-images"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.EmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db"); err != nil {
		return nil, err
	}
	cfg.SaveToDB = cfg.DBDir != ""
	if cfg.Progress, err = flags.GetBool("progress"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If the user named a config file, it must exist. Otherwise a missing
	// file just means an empty configuration.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.File = &config.File{Drives: make(map[string]config.DriveConfig)}
	}

	cfg.Seeds = args
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = cfg.File.Seeds
	}

	return cfg, nil
}

// setupLogger creates a secure structured logger writing to w.
func setupLogger(w io.Writer, verbose, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return hlog.NewSecureJSONLogger(w, verbose)
	}
	return hlog.NewSecureLogger(w, verbose)
}

// runCrawl executes the crawl described by cfg.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	if cfg.File == nil {
		cfg.File = &config.File{}
	}

	keys, urls := seed.ClassifyAll(cfg.Seeds, logger)

	// The root drive is the working location: its own content seeds the crawl.
	if cfg.RootKey != "" {
		rootKey, ok := model.NormalizeKey(cfg.RootKey)
		if !ok {
			return fmt.Errorf("invalid root key %q: %w", cfg.RootKey, model.ErrInvalidKey)
		}
		keys = append([]model.Key{rootKey}, keys...)
	}

	logger.Info("starting crawl",
		"seeds", len(cfg.Seeds),
		"backend", cfg.Backend,
		"order", cfg.Order,
		"mount", cfg.Mount,
	)

	client, stopTor, err := newTransport(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer stopTor()

	var seedFailures []model.Failure
	if len(urls) > 0 {
		var scraped []model.Key
		scraped, seedFailures = scrapeSeedPages(ctx, cfg, client, logger, urls)
		keys = append(keys, scraped...)
	}

	accessor, mountRoot, err := newAccessor(ctx, cfg, client, logger)
	if err != nil {
		return err
	}

	opts, err := crawlerOptions(cfg, logger, stderr)
	if err != nil {
		return err
	}
	if mountRoot != nil {
		rootKey, _ := model.NormalizeKey(cfg.RootKey)
		opts = append(opts, crawler.WithMountRoot(mountRoot, rootKey))
	}

	var server *metrics.Server
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus()
		server, err = metrics.Serve(cfg.MetricsAddr, prom, logger)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info("serving metrics", "addr", "http://"+server.Addr()+"/metrics")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to stop metrics server", "error", err)
			}
		}()
		opts = append(opts, crawler.WithRecorder(prom))
	}

	crawlReport, runErr := crawler.NewCrawler(accessor, opts...).Run(ctx, keys)
	if crawlReport == nil {
		if errors.Is(runErr, crawler.ErrNoSeeds) && len(seedFailures) > 0 {
			return fmt.Errorf("%w: every seed page failed (first: %s)", runErr, seedFailures[0].Message)
		}
		return runErr
	}
	if len(seedFailures) > 0 {
		crawlReport.Failures = append(seedFailures, crawlReport.Failures...)
	}

	if err := outputReport(cfg, crawlReport, stdout); err != nil {
		logger.Error("report failed", "error", err)
	}

	if cfg.SaveToDB {
		if err := saveCrawlReport(ctx, cfg.DBDir, crawlReport, logger); err != nil {
			logger.Error("failed to save crawl graph", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("crawl interrupted after %d drives: %w", crawlReport.Metrics.Visited, runErr)
	}
	return nil
}

// newTransport builds the HTTP transport shared by the seed fetcher and the
// remote backend. The returned stop function must always be called.
func newTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*transport.Client, func(), error) {
	noop := func() {}

	if cfg.EmbeddedTor {
		return startEmbeddedTor(ctx, cfg, logger, stderr)
	}

	client, err := transport.NewClient(cfg.ProxyAddress, cfg.Timeout)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create transport: %w", err)
	}

	if cfg.ProxyAddress != "" {
		if err := client.CheckConnection(ctx); err != nil {
			return nil, noop, fmt.Errorf("proxy check failed: %w (make sure the proxy is running at %s)",
				err, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	return client, noop, nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client bound
// to it together with a function that stops the daemon.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*transport.Client, func(), error) {
	noop := func() {}

	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started", "socksAddr", embeddedTor.SocksAddr())

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		stop()
		return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if err := client.CheckConnection(ctx); err != nil {
		stop()
		return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}

	return client, stop, nil
}

// scrapeSeedPages fetches every seed URL once and returns the keys found.
// Pages that cannot be fetched become report failures.
func scrapeSeedPages(
	ctx context.Context,
	cfg *config.Config,
	client *transport.Client,
	logger *slog.Logger,
	urls []string,
) ([]model.Key, []model.Failure) {
	fetcher := seed.NewFetcher(client.NewHTTPClient(),
		seed.WithUserAgent(cfg.UserAgent),
		seed.WithMaxBodySize(cfg.MaxBodySize),
		seed.WithLogger(logger),
	)

	var keys []model.Key
	var failures []model.Failure
	for _, r := range fetcher.ScrapeAll(ctx, urls) {
		if r.Err != nil {
			logger.Warn("seed page failed", "url", r.URL, "error", r.Err)
			var opErr *crawler.OpError
			if errors.As(r.Err, &opErr) {
				failures = append(failures, opErr.Failure())
			} else {
				failures = append(failures, model.Failure{
					Kind:    crawler.KindFetch.String(),
					Path:    r.URL,
					Message: r.Err.Error(),
				})
			}
			continue
		}
		logger.Info("seed page scraped", "url", r.URL, "keys", len(r.Keys))
		keys = append(keys, r.Keys...)
	}
	return keys, failures
}

// newAccessor opens the configured drive backend. In mount mode it also
// returns the writable root drive.
func newAccessor(
	ctx context.Context,
	cfg *config.Config,
	client *transport.Client,
	logger *slog.Logger,
) (crawler.Accessor, crawler.MountableDrive, error) {
	var rootKey model.Key
	if cfg.Mount {
		k, ok := model.NormalizeKey(cfg.RootKey)
		if !ok {
			return nil, nil, fmt.Errorf("invalid root key %q: %w", cfg.RootKey, model.ErrInvalidKey)
		}
		rootKey = k
	}

	switch cfg.Backend {
	case config.BackendRemote:
		httpClient := client.HTTPClientWithHeaders(map[string]string{
			"User-Agent": cfg.UserAgent,
		})
		remote, err := drive.NewRemoteClient(cfg.Endpoint,
			drive.WithHTTPClient(httpClient),
			drive.WithToken(cfg.Token),
			drive.WithRemoteLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		if !cfg.Mount {
			return remote, nil, nil
		}
		root, err := remote.OpenRemote(ctx, rootKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open root drive: %w", err)
		}
		return remote, root, nil

	default:
		store, err := drive.NewLocalStore(cfg.StoreDir, drive.WithLocalLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if !cfg.Mount {
			return store, nil, nil
		}
		root, err := store.Create(ctx, rootKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open root drive: %w", err)
		}
		return store, root, nil
	}
}

// crawlerOptions translates cfg into crawler options.
func crawlerOptions(cfg *config.Config, logger *slog.Logger, stderr io.Writer) ([]crawler.Option, error) {
	order, err := crawler.ParseOrder(cfg.Order)
	if err != nil {
		return nil, err
	}

	opts := []crawler.Option{
		crawler.WithLogger(logger),
		crawler.WithOrder(order),
		crawler.WithReadConcurrency(cfg.Concurrency),
		crawler.WithDelay(cfg.Delay),
		crawler.WithPolicy(newPolicy(cfg, cfg.File.Defaults)),
	}

	for k := range cfg.File.Drives {
		key, ok := model.NormalizeKey(k)
		if !ok {
			logger.Warn("ignoring drive entry with invalid key in config file", "key", k)
			continue
		}
		opts = append(opts, crawler.WithDrivePolicy(key, newPolicy(cfg, cfg.File.DriveConfig(k))))
	}

	skipped := make([]model.Key, 0)
	for _, k := range cfg.File.SkippedDrives() {
		if key, ok := model.NormalizeKey(k); ok {
			skipped = append(skipped, key)
		}
	}
	if len(skipped) > 0 {
		opts = append(opts, crawler.WithSkipKeys(skipped...))
	}

	observers := []crawler.Observer{crawler.NewLogObserver(logger)}
	if cfg.Progress {
		observers = append(observers, newProgressObserver(stderr))
	}
	opts = append(opts, crawler.WithObserver(crawler.MultiObserver(observers...)))

	return opts, nil
}

// newPolicy builds the scrape policy for one drive configuration.
func newPolicy(cfg *config.Config, dc config.DriveConfig) *crawler.Policy {
	policyOpts := []crawler.PolicyOption{
		crawler.WithImageMetadata(cfg.ScrapeImages),
	}
	if len(cfg.File.Exclusions) > 0 {
		policyOpts = append(policyOpts, crawler.WithExclusions(cfg.File.Exclusions))
	}
	if len(cfg.File.Extensions) > 0 {
		policyOpts = append(policyOpts, crawler.WithExtensions(cfg.File.Extensions))
	}
	if len(dc.IgnorePatterns) > 0 {
		policyOpts = append(policyOpts, crawler.WithIgnorePatterns(dc.IgnorePatterns))
	}
	return crawler.NewPolicy(policyOpts...)
}

// outputReport writes the crawl report in the requested format.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list every drive key found, so keep them owner-readable.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, output).Write(crawlReport)
	return err
}

// newReportWriter picks the report writer for the requested format.
func newReportWriter(jsonFormat, markdownFormat, verbose bool, w io.Writer) report.Writer {
	switch {
	case jsonFormat:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case markdownFormat:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(verbose))
	}
}

// saveCrawlReport exports the crawl graph to the database in dbDir.
func saveCrawlReport(ctx context.Context, dbDir string, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// A canceled run still deserves its graph on disk.
	if err := db.SaveReport(context.WithoutCancel(ctx), crawlReport); err != nil {
		return err
	}

	logger.Info("crawl graph saved", "db", db.Path(), "run_id", crawlReport.RunID)
	return nil
}
