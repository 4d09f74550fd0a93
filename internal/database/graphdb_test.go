package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/hyperscrape/internal/model"
)

func testKey(c string) model.Key {
	return model.MustNewKey(strings.Repeat(c, 64))
}

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *GraphDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newReport builds a finished report: a links to b, b mounts c.
func newReport(runID string, started time.Time) *model.CrawlReport {
	a, b, c := testKey("a"), testKey("b"), testKey("c")
	r := model.NewCrawlReport(runID, []model.Key{a}, "lifo")
	r.StartedAt = started
	r.FinishedAt = started.Add(3 * time.Second)
	r.Drives = []model.DriveRecord{
		{Key: a, DiscoveryKey: a.DiscoveryKey(), Status: model.DriveStatusCrawled, Entries: 2, FilesScraped: 1, Links: []model.Key{b}},
		{Key: b, DiscoveryKey: b.DiscoveryKey(), Status: model.DriveStatusCrawled, Depth: 1, Mounts: []model.Key{c}, Mounted: true},
		{Key: c, DiscoveryKey: c.DiscoveryKey(), Status: model.DriveStatusUnreachable, Depth: 2, Error: "drive not found"},
	}
	r.Failures = []model.Failure{{Kind: "open", Key: c, Message: "drive not found"}}
	r.Metrics = model.Metrics{Visited: 3, Mounted: 1, Elapsed: 3 * time.Second}
	return r
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := db.SaveReport(context.Background(), newReport("run-1", time.Now())); err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil || len(runs) != 1 {
			t.Errorf("ListRuns() = %v, %v", runs, err)
		}
	})
}

func TestSaveReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := db.SaveReport(ctx, newReport("run-1", started)); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	t.Run("run summary", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		r := runs[0]
		if r.ID != "run-1" || r.Visited != 3 || r.Mounted != 1 || r.Failures != 1 || r.Order != "lifo" || r.Canceled {
			t.Errorf("unexpected summary: %+v", r)
		}
		if !r.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", r.StartedAt, started)
		}
	})

	t.Run("drives ordered by depth", func(t *testing.T) {
		drives, err := db.RunDrives(ctx, "run-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(drives) != 3 {
			t.Fatalf("expected 3 drives, got %d", len(drives))
		}
		if drives[0].Key != testKey("a").String() || drives[2].Status != "unreachable" || !drives[1].Mounted {
			t.Errorf("unexpected drives: %+v", drives)
		}
	})

	t.Run("edges", func(t *testing.T) {
		refs, err := db.Referrers(ctx, "run-1", testKey("c").String())
		if err != nil {
			t.Fatal(err)
		}
		if len(refs) != 1 || refs[0] != testKey("b").String() {
			t.Errorf("Referrers(c) = %v", refs)
		}
	})

	t.Run("full report round trip", func(t *testing.T) {
		got, err := db.GetReport(ctx, "run-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Drives) != 3 || got.Drives[2].Status != model.DriveStatusUnreachable {
			t.Errorf("unexpected report drives: %+v", got.Drives)
		}
	})

	t.Run("saving again replaces the run", func(t *testing.T) {
		r := newReport("run-1", started)
		r.Drives = r.Drives[:1]
		if err := db.SaveReport(ctx, r); err != nil {
			t.Fatal(err)
		}
		drives, err := db.RunDrives(ctx, "run-1")
		if err != nil || len(drives) != 1 {
			t.Errorf("RunDrives() = %v, %v", drives, err)
		}
	})

	t.Run("report without id is rejected", func(t *testing.T) {
		if err := db.SaveReport(ctx, &model.CrawlReport{}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestListRunsOrderAndLimit(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := db.SaveReport(ctx, newReport(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Errorf("ListRuns(2) = %+v", runs)
	}
}

func TestDiffRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	old := newReport("old", now)
	next := newReport("new", now.Add(time.Hour))
	next.Drives[2].Status = model.DriveStatusCrawled
	next.Drives[2].Error = ""
	d := testKey("d")
	next.Drives = append(next.Drives[1:], model.DriveRecord{Key: d, DiscoveryKey: d.DiscoveryKey(), Depth: 2})

	for _, r := range []*model.CrawlReport{old, next} {
		if err := db.SaveReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	diff, err := db.DiffRuns(ctx, "old", "new")
	if err != nil {
		t.Fatalf("DiffRuns() error = %v", err)
	}
	if !diff.HasChanges() {
		t.Fatal("expected changes")
	}
	if len(diff.Added) != 1 || diff.Added[0] != d.String() {
		t.Errorf("Added = %v", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != testKey("a").String() {
		t.Errorf("Removed = %v", diff.Removed)
	}
	if len(diff.Changed) != 1 || diff.Changed[0].OldStatus != "unreachable" || diff.Changed[0].NewStatus != "crawled" {
		t.Errorf("Changed = %+v", diff.Changed)
	}

	same, err := db.DiffRuns(ctx, "old", "old")
	if err != nil || same.HasChanges() {
		t.Errorf("diff of a run with itself = %+v, %v", same, err)
	}

	if _, err := db.DiffRuns(ctx, "old", "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.GetReport(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestDiffRunsManyDrives(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	key := func(i int) model.Key { return model.MustNewKey(fmt.Sprintf("%064x", i)) }
	build := func(runID string, from, to int, started time.Time, status func(int) model.DriveStatus) *model.CrawlReport {
		r := model.NewCrawlReport(runID, []model.Key{key(from)}, "fifo")
		r.StartedAt = started
		r.FinishedAt = started.Add(time.Second)
		for i := from; i < to; i++ {
			k := key(i)
			r.Drives = append(r.Drives, model.DriveRecord{Key: k, DiscoveryKey: k.DiscoveryKey(), Status: status(i)})
		}
		r.Metrics = model.Metrics{Visited: to - from}
		return r
	}

	crawled := func(int) model.DriveStatus { return model.DriveStatusCrawled }
	oddUnreachable := func(i int) model.DriveStatus {
		if i%2 == 1 {
			return model.DriveStatusUnreachable
		}
		return model.DriveStatusCrawled
	}

	for _, r := range []*model.CrawlReport{
		build("old", 0, 2000, now, crawled),
		build("new", 1000, 3000, now.Add(time.Hour), oddUnreachable),
	} {
		if err := db.SaveReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	diff, err := db.DiffRuns(ctx, "old", "new")
	if err != nil {
		t.Fatalf("DiffRuns() error = %v", err)
	}
	if len(diff.Added) != 1000 || diff.Added[0] != key(2000).String() {
		t.Errorf("Added = %d drives, first %v", len(diff.Added), diff.Added[:1])
	}
	if len(diff.Removed) != 1000 || diff.Removed[999] != key(999).String() {
		t.Errorf("Removed = %d drives", len(diff.Removed))
	}
	if len(diff.Changed) != 500 {
		t.Fatalf("Changed = %d drives, want 500", len(diff.Changed))
	}
	if c := diff.Changed[0]; c.Key != key(1001).String() || c.OldStatus != "crawled" || c.NewStatus != "unreachable" {
		t.Errorf("first change = %+v", c)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		zero bool
	}{
		{in: "2026-03-01T12:00:00.000000000Z"},
		{in: "2026-03-01T12:00:00Z"},
		{in: "2026-03-01 12:00:00"},
		{in: "not a time", zero: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.in); got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v", tt.in, got)
			}
		})
	}
}
