package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/hyperscrape/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Crawler walks the drive graph reachable from a set of seed keys.
// A Crawler holds only configuration; every Run builds its own session, so
// one Crawler can run several independent crawls at the same time.
type Crawler struct {
	// accessor opens drive handles by key.
	accessor Accessor

	// policy selects the entries read for addresses.
	policy *Policy

	// drivePolicies override policy for individual drives.
	drivePolicies map[model.Key]*Policy

	// skip holds keys that are never queued.
	skip map[model.Key]struct{}

	// order is the frontier drain order.
	order Order

	// mountRoot, when set, receives a mount for every visited drive.
	mountRoot MountableDrive

	// mountSelf is the key of mountRoot itself, which is never mounted into itself.
	mountSelf model.Key

	// readConcurrency bounds parallel file reads within one drive.
	// 1 reads files one at a time.
	readConcurrency int

	// limiter spaces out drive visits. Nil means no delay.
	limiter *rate.Limiter

	logger   *slog.Logger
	observer Observer
	recorder Recorder

	// newRunID generates run identifiers.
	newRunID func() string
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithPolicy sets the scrape policy. Default is NewPolicy().
func WithPolicy(p *Policy) Option {
	return func(c *Crawler) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithDrivePolicy overrides the scrape policy for one drive.
func WithDrivePolicy(key model.Key, p *Policy) Option {
	return func(c *Crawler) {
		if p == nil || key.IsZero() {
			return
		}
		if c.drivePolicies == nil {
			c.drivePolicies = make(map[model.Key]*Policy)
		}
		c.drivePolicies[key] = p
	}
}

// WithSkipKeys prevents the given drives from ever being queued,
// whether they appear as seeds, links or mounts.
func WithSkipKeys(keys ...model.Key) Option {
	return func(c *Crawler) {
		if c.skip == nil {
			c.skip = make(map[model.Key]struct{}, len(keys))
		}
		for _, k := range keys {
			c.skip[k] = struct{}{}
		}
	}
}

// WithOrder sets the frontier drain order. Default is OrderLIFO.
func WithOrder(o Order) Option {
	return func(c *Crawler) {
		c.order = o
	}
}

// WithMountRoot enables mount mode: every visited drive that is not yet
// mounted in root is mounted at a path named after its key. self is the key
// of root and is skipped. Mounting is best effort and never blocks crawling.
func WithMountRoot(root MountableDrive, self model.Key) Option {
	return func(c *Crawler) {
		c.mountRoot = root
		c.mountSelf = self
	}
}

// WithReadConcurrency sets how many files of one drive are read in parallel.
// Values below 1 are ignored.
func WithReadConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.readConcurrency = n
		}
	}
}

// WithDelay waits at least d between opening two drives.
// Zero or negative disables the delay.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(c *Crawler) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Crawler) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithRunIDFunc overrides how run identifiers are generated.
func WithRunIDFunc(f func() string) Option {
	return func(c *Crawler) {
		if f != nil {
			c.newRunID = f
		}
	}
}

// NewCrawler creates a Crawler that opens drives through accessor.
func NewCrawler(accessor Accessor, opts ...Option) *Crawler {
	c := &Crawler{
		accessor:        accessor,
		policy:          NewPolicy(),
		order:           OrderLIFO,
		readConcurrency: 1,
		observer:        NopObserver{},
		recorder:        nopRecorder{},
		newRunID:        uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Run crawls until no undiscovered drive remains and returns the report.
//
// Run fails only when the transport is unreachable before the first drive is
// opened (ErrConnection) or when seeds contains no valid key (ErrNoSeeds).
// Every other failure is recorded in the report and the crawl continues.
// If ctx is canceled, Run stops between drives and returns the partial
// report together with ctx.Err().
func (c *Crawler) Run(ctx context.Context, seeds []model.Key) (*model.CrawlReport, error) {
	if p, ok := c.accessor.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
	}

	s := c.newSession(seeds)
	if s.frontier.Add(c.admit(seeds)...) == 0 {
		return nil, ErrNoSeeds
	}
	c.recorder.FrontierSize(s.frontier.Len(), 0)

	c.logger.Debug("crawl started",
		"run_id", s.report.RunID,
		"seeds", len(seeds),
		"order", c.order.String(),
	)

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		key, ok := s.frontier.Drain()
		if !ok {
			break
		}
		depth, _ := s.frontier.Depth(key)
		c.observer.OnStep(key, s.metrics())

		mounted := c.mount(ctx, s, key)

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				s.addRecord(model.DriveRecord{
					Key:          key,
					DiscoveryKey: key.DiscoveryKey(),
					Status:       model.DriveStatusUnreachable,
					Depth:        depth,
					Mounted:      mounted,
					Error:        err.Error(),
				})
				runErr = ctx.Err()
				if runErr == nil {
					runErr = err
				}
				break
			}
		}

		rec := c.crawlDrive(ctx, s, key, depth)
		rec.Mounted = mounted
		s.addRecord(rec)
		c.recorder.DriveVisited(rec.Status.String())
		c.recorder.FrontierSize(s.frontier.Len(), s.frontier.Crawled())
	}

	report := s.finish(runErr != nil)
	c.logger.Debug("crawl finished",
		"run_id", report.RunID,
		"visited", report.Metrics.Visited,
		"pending", report.Metrics.Pending,
		"failures", len(report.Failures),
		"elapsed", report.Metrics.ElapsedHuman(),
	)
	c.observer.OnFinish(report)
	return report, runErr
}

// mount attaches key to the root drive unless it is already mounted there.
// It reports whether this call created the mount.
func (c *Crawler) mount(ctx context.Context, s *session, key model.Key) bool {
	if c.mountRoot == nil || key == c.mountSelf {
		return false
	}

	target := key.String()
	// A target that mounts another drive is left alone; Mount reports it.
	if st, err := c.mountRoot.Stat(ctx, target); err == nil && st.IsMount() && st.MountKey() == key {
		return false
	}

	if err := c.mountRoot.Mount(ctx, key, target); err != nil {
		c.fail(s, newOpError(KindMount, key, target, err))
		return false
	}

	s.mu.Lock()
	s.mounted++
	s.mu.Unlock()
	c.recorder.DriveMounted()
	return true
}

// crawlDrive processes one drive: list it, scrape its scrapable files and
// follow its mounts. Failures are recorded and never returned.
func (c *Crawler) crawlDrive(ctx context.Context, s *session, key model.Key, depth int) model.DriveRecord {
	rec := model.DriveRecord{
		Key:          key,
		DiscoveryKey: key.DiscoveryKey(),
		Status:       model.DriveStatusCrawled,
		Depth:        depth,
	}

	drive, err := c.accessor.Open(ctx, key)
	if err != nil {
		c.fail(s, newOpError(KindOpen, key, "", err))
		rec.Status = model.DriveStatusUnreachable
		rec.Error = err.Error()
		return rec
	}

	entries, err := drive.List(ctx, "", true)
	if err != nil {
		c.fail(s, newOpError(KindList, key, "", err))
		rec.Status = model.DriveStatusUnlisted
		rec.Error = err.Error()
		return rec
	}
	rec.Entries = len(entries)

	policy := c.policyFor(key)
	scan := &driveScan{key: key, depth: depth}
	c.scrapeFiles(ctx, s, drive, scan, policy.FilterScrapable(entries), func(data []byte) string {
		return string(data)
	})
	c.scrapeFiles(ctx, s, drive, scan, policy.FilterMetadata(entries), MetadataText)

	mounts, statErrs := FilterMounts(ctx, entries, drive.Stat)
	for _, e := range statErrs {
		e.Key = key
		c.fail(s, e)
	}
	mounts = uniqueKeys(mounts)
	if added := s.frontier.AddAt(depth+1, c.admit(mounts)...); added > 0 {
		c.recorder.KeysDiscovered(added)
	}

	rec.FilesScraped = scan.scraped
	rec.FilesFailed = scan.failed
	rec.Links = uniqueKeys(scan.links)
	rec.Mounts = mounts

	c.logger.Debug("drive crawled",
		"key", key.Short(),
		"entries", rec.Entries,
		"scraped", rec.FilesScraped,
		"failed", rec.FilesFailed,
		"links", len(rec.Links),
		"mounts", len(rec.Mounts),
	)
	return rec
}

// driveScan accumulates the results of scraping one drive's files.
type driveScan struct {
	key     model.Key
	depth   int
	mu      sync.Mutex
	scraped int
	failed  int
	links   []model.Key
}

// scrapeFiles reads every path, turns its content into text and adds the
// keys found to the frontier. A failed read skips only that file.
func (c *Crawler) scrapeFiles(
	ctx context.Context,
	s *session,
	drive Drive,
	scan *driveScan,
	paths []string,
	text func([]byte) string,
) {
	if len(paths) == 0 {
		return
	}

	if c.readConcurrency <= 1 {
		for _, p := range paths {
			c.scrapeFile(ctx, s, drive, scan, p, text)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.readConcurrency)
	for _, p := range paths {
		g.Go(func() error {
			c.scrapeFile(gctx, s, drive, scan, p, text)
			return nil
		})
	}
	_ = g.Wait() // Goroutines never return errors; failures are recorded.
}

// scrapeFile reads one file and queues the keys it references.
func (c *Crawler) scrapeFile(
	ctx context.Context,
	s *session,
	drive Drive,
	scan *driveScan,
	path string,
	text func([]byte) string,
) {
	data, err := drive.Read(ctx, path)
	if err != nil {
		c.recorder.FileRead(false)
		c.fail(s, newOpError(KindRead, scan.key, path, err))
		scan.mu.Lock()
		scan.failed++
		scan.mu.Unlock()
		return
	}
	c.recorder.FileRead(true)

	keys := ExtractKeys(text(data))
	if added := s.frontier.AddAt(scan.depth+1, c.admit(keys)...); added > 0 {
		c.recorder.KeysDiscovered(added)
	}

	scan.mu.Lock()
	scan.scraped++
	scan.links = append(scan.links, keys...)
	scan.mu.Unlock()
}

// policyFor returns the scrape policy for key.
func (c *Crawler) policyFor(key model.Key) *Policy {
	if p, ok := c.drivePolicies[key]; ok {
		return p
	}
	return c.policy
}

// admit drops skipped keys.
func (c *Crawler) admit(keys []model.Key) []model.Key {
	if len(c.skip) == 0 {
		return keys
	}
	out := make([]model.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := c.skip[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// fail records a recoverable failure and forwards it to the observer.
func (c *Crawler) fail(s *session, err *OpError) {
	s.mu.Lock()
	s.report.Failures = append(s.report.Failures, err.Failure())
	s.mu.Unlock()

	c.recorder.Failure(err.Kind.String())
	c.logger.Debug("crawl step failed", "kind", err.Kind.String(), "error", err)
	c.observer.OnFailure(err)
}

// session is the traversal state of one Run.
// It is never shared outside the Run that created it.
type session struct {
	frontier *Frontier
	started  time.Time

	mu      sync.Mutex
	mounted int
	report  *model.CrawlReport
}

// newSession creates the state for one run.
func (c *Crawler) newSession(seeds []model.Key) *session {
	report := model.NewCrawlReport(c.newRunID(), uniqueKeys(nonZero(seeds)), c.order.String())
	report.MountMode = c.mountRoot != nil
	return &session{
		frontier: NewFrontier(c.order),
		started:  time.Now(),
		report:   report,
	}
}

// metrics returns a snapshot of the current progress.
func (s *session) metrics() model.Metrics {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()
	return model.Metrics{
		Visited: s.frontier.Crawled(),
		Pending: s.frontier.Len(),
		Mounted: mounted,
		Elapsed: time.Since(s.started),
	}
}

// addRecord appends a drive record to the report.
func (s *session) addRecord(rec model.DriveRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Drives = append(s.report.Drives, rec)
}

// finish seals the report with the final metrics.
func (s *session) finish(canceled bool) *model.CrawlReport {
	m := s.metrics()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Metrics = m
	s.report.FinishedAt = s.started.Add(m.Elapsed)
	s.report.StartedAt = s.started
	s.report.Canceled = canceled
	return s.report
}

// nonZero drops zero keys.
func nonZero(keys []model.Key) []model.Key {
	out := make([]model.Key, 0, len(keys))
	for _, k := range keys {
		if !k.IsZero() {
			out = append(out, k)
		}
	}
	return out
}

// IsConnectionError reports whether err means the drive transport is down.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}
