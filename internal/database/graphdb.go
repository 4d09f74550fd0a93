package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/hyperscrape/internal/model"
)

// DBFileName is the database file created inside the database directory.
const DBFileName = "hyperscrape.db"

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("run not found")

// GraphDB stores finished crawl reports as a drive graph: one row per run,
// one row per visited drive and one row per link or mount edge.
// It is an export target only; nothing reads it back during a crawl.
type GraphDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures GraphDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the graph database inside dbDir.
// With CreateIfNotExists false, a missing database is an error.
func Open(dbDir string, opts Options) (*GraphDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	gdb := &GraphDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := gdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return gdb, nil
}

// Path returns the database file path.
func (g *GraphDB) Path() string {
	return g.dbPath
}

// Close closes the database connection.
func (g *GraphDB) Close() error {
	return g.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (g *GraphDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		frontier_order TEXT NOT NULL,
		visited INTEGER NOT NULL,
		pending INTEGER NOT NULL,
		mounted INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		canceled INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per drive visited in a run
	CREATE TABLE IF NOT EXISTS drives (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		drive_key TEXT NOT NULL,
		discovery_key TEXT NOT NULL,
		status TEXT NOT NULL,
		depth INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		files_scraped INTEGER NOT NULL,
		files_failed INTEGER NOT NULL,
		mounted INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, drive_key)
	);

	CREATE INDEX IF NOT EXISTS idx_drives_key ON drives(drive_key);

	-- Edges between drives: content links and mounts
	CREATE TABLE IF NOT EXISTS links (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		from_key TEXT NOT NULL,
		to_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (run_id, from_key, to_key, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_links_to ON links(to_key);
	`

	_, err := g.db.ExecContext(context.Background(), schema)
	return err
}

// Edge kinds stored in the links table.
const (
	EdgeLink  = "link"
	EdgeMount = "mount"
)

// SaveReport writes a finished report in one transaction.
// Saving the same run twice replaces the earlier copy.
func (g *GraphDB) SaveReport(ctx context.Context, report *model.CrawlReport) (err error) {
	if report == nil || report.RunID == "" {
		return errors.New("report has no run id")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		"DELETE FROM links WHERE run_id = ?",
		"DELETE FROM drives WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err = tx.ExecContext(ctx, stmt, report.RunID); err != nil {
			return fmt.Errorf("failed to replace run: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, finished_at, frontier_order, visited, pending, mounted, failures, canceled, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.StartedAt.UTC().Format(timeLayout),
		report.FinishedAt.UTC().Format(timeLayout),
		report.Order,
		report.Metrics.Visited,
		report.Metrics.Pending,
		report.Metrics.Mounted,
		len(report.Failures),
		report.Canceled,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	driveStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO drives (run_id, drive_key, discovery_key, status, depth, entries, files_scraped, files_failed, mounted, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare drive insert: %w", err)
	}
	defer driveStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO links (run_id, from_key, to_key, kind) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer linkStmt.Close()

	for _, d := range report.Drives {
		if _, err = driveStmt.ExecContext(ctx,
			report.RunID,
			d.Key.String(),
			d.DiscoveryKey,
			d.Status.String(),
			d.Depth,
			d.Entries,
			d.FilesScraped,
			d.FilesFailed,
			d.Mounted,
			d.Error,
		); err != nil {
			return fmt.Errorf("failed to insert drive %s: %w", d.Key.Short(), err)
		}

		for _, to := range d.Links {
			if _, err = linkStmt.ExecContext(ctx, report.RunID, d.Key.String(), to.String(), EdgeLink); err != nil {
				return fmt.Errorf("failed to insert link: %w", err)
			}
		}
		for _, to := range d.Mounts {
			if _, err = linkStmt.ExecContext(ctx, report.RunID, d.Key.String(), to.String(), EdgeMount); err != nil {
				return fmt.Errorf("failed to insert mount edge: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// RunSummary is the stored metadata of one run.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Order      string
	Visited    int
	Pending    int
	Mounted    int
	Failures   int
	Canceled   bool
}

// ListRuns returns stored runs, newest first. limit <= 0 returns all runs.
func (g *GraphDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, started_at, finished_at, frontier_order, visited, pending, mounted, failures, canceled
	FROM runs
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Order, &r.Visited, &r.Pending, &r.Mounted, &r.Failures, &r.Canceled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetReport returns the full stored report of a run.
func (g *GraphDB) GetReport(ctx context.Context, runID string) (*model.CrawlReport, error) {
	var reportJSON string
	err := g.db.QueryRowContext(ctx, "SELECT report_json FROM runs WHERE id = ?", runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// DriveRow is one stored drive of a run.
type DriveRow struct {
	Key          string
	Status       string
	Depth        int
	FilesScraped int
	Mounted      bool
}

// RunDrives returns the drives visited in a run, ordered by depth then key.
func (g *GraphDB) RunDrives(ctx context.Context, runID string) ([]DriveRow, error) {
	rows, err := g.db.QueryContext(ctx, `
	SELECT drive_key, status, depth, files_scraped, mounted
	FROM drives
	WHERE run_id = ?
	ORDER BY depth, drive_key
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drives: %w", err)
	}
	defer rows.Close()

	var out []DriveRow
	for rows.Next() {
		var d DriveRow
		if err := rows.Scan(&d.Key, &d.Status, &d.Depth, &d.FilesScraped, &d.Mounted); err != nil {
			return nil, fmt.Errorf("failed to scan drive: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Referrers returns the drives that linked to or mounted key in a run.
func (g *GraphDB) Referrers(ctx context.Context, runID, key string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `
	SELECT DISTINCT from_key FROM links
	WHERE run_id = ? AND to_key = ?
	ORDER BY from_key
	`, runID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query referrers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan referrer: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RunDiff compares the drive sets of two runs.
type RunDiff struct {
	OldRunID string
	NewRunID string

	// Added are drives visited in the new run only.
	Added []string
	// Removed are drives visited in the old run only.
	Removed []string
	// Changed are drives visited in both runs whose status differs.
	Changed []StatusChange
}

// StatusChange is a drive whose outcome changed between two runs.
type StatusChange struct {
	Key       string
	OldStatus string
	NewStatus string
}

// HasChanges reports whether the two runs differ.
func (d *RunDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// DiffRuns compares two stored runs.
func (g *GraphDB) DiffRuns(ctx context.Context, oldRunID, newRunID string) (*RunDiff, error) {
	oldDrives, err := g.statusByKey(ctx, oldRunID)
	if err != nil {
		return nil, err
	}
	newDrives, err := g.statusByKey(ctx, newRunID)
	if err != nil {
		return nil, err
	}

	oldStatus := statusMap(oldDrives)
	newStatus := statusMap(newDrives)

	diff := &RunDiff{OldRunID: oldRunID, NewRunID: newRunID}
	for _, d := range newDrives {
		old, ok := oldStatus[d.Key]
		switch {
		case !ok:
			diff.Added = append(diff.Added, d.Key)
		case old != d.Status:
			diff.Changed = append(diff.Changed, StatusChange{Key: d.Key, OldStatus: old, NewStatus: d.Status})
		}
	}
	for _, d := range oldDrives {
		if _, ok := newStatus[d.Key]; !ok {
			diff.Removed = append(diff.Removed, d.Key)
		}
	}
	return diff, nil
}

// statusByKey returns the drives of a run sorted by key.
// A run with no row in runs is ErrRunNotFound.
func (g *GraphDB) statusByKey(ctx context.Context, runID string) ([]DriveRow, error) {
	var exists int
	err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := g.db.QueryContext(ctx, "SELECT drive_key, status FROM drives WHERE run_id = ? ORDER BY drive_key", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drives: %w", err)
	}
	defer rows.Close()

	var out []DriveRow
	for rows.Next() {
		var d DriveRow
		if err := rows.Scan(&d.Key, &d.Status); err != nil {
			return nil, fmt.Errorf("failed to scan drive: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// statusMap indexes drive rows by key.
func statusMap(rows []DriveRow) map[string]string {
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Status
	}
	return m
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time if none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
