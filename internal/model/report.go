package model

import (
	"fmt"
	"time"
)

// DriveStatus is the outcome of processing one drive.
type DriveStatus int

const (
	// DriveStatusCrawled means the drive was listed and its files were scraped.
	DriveStatusCrawled DriveStatus = iota
	// DriveStatusUnreachable means no handle could be acquired for the drive.
	DriveStatusUnreachable
	// DriveStatusUnlisted means the handle was acquired but listing failed.
	DriveStatusUnlisted
)

// String returns the string representation of the DriveStatus.
func (s DriveStatus) String() string {
	switch s {
	case DriveStatusCrawled:
		return "crawled"
	case DriveStatusUnreachable:
		return "unreachable"
	case DriveStatusUnlisted:
		return "unlisted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DriveStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DriveStatus) UnmarshalText(text []byte) error {
	parsed, ok := ParseDriveStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown drive status %q", text)
	}
	*s = parsed
	return nil
}

// ParseDriveStatus converts a status name back into a DriveStatus.
func ParseDriveStatus(s string) (DriveStatus, bool) {
	switch s {
	case "crawled":
		return DriveStatusCrawled, true
	case "unreachable":
		return DriveStatusUnreachable, true
	case "unlisted":
		return DriveStatusUnlisted, true
	default:
		return DriveStatusCrawled, false
	}
}

// DriveRecord is what one crawl learned about one drive.
type DriveRecord struct {
	// Key identifies the drive.
	Key Key `json:"key"`

	// DiscoveryKey is the network discovery key derived from Key.
	DiscoveryKey string `json:"discovery_key"`

	// Status is the processing outcome.
	Status DriveStatus `json:"status"`

	// Depth is the number of hops from the nearest seed. Seeds have depth 0.
	Depth int `json:"depth"`

	// Entries is the number of entries the recursive listing returned.
	Entries int `json:"entries"`

	// FilesScraped is the number of files read and scanned for addresses.
	FilesScraped int `json:"files_scraped"`

	// FilesFailed is the number of scrapable files that could not be read.
	FilesFailed int `json:"files_failed"`

	// Links are the distinct keys referenced by the drive's content.
	Links []Key `json:"links,omitempty"`

	// Mounts are the keys of drives mounted inside this drive.
	Mounts []Key `json:"mounts,omitempty"`

	// Mounted is true when this run mounted the drive into the root drive.
	Mounted bool `json:"mounted"`

	// Error is the reason the drive could not be processed, if any.
	Error string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// Failure is a recoverable per-item failure observed during a crawl.
type Failure struct {
	// Kind names the failed operation (open, list, read, stat, mount, fetch).
	Kind string `json:"kind"`

	// Key is the drive being processed, if any.
	Key Key `json:"key,omitzero"`

	// Path is the entry or URL involved, if any.
	Path string `json:"path,omitempty"`

	// Message is the error text.
	Message string `json:"message"`
}

// CrawlReport is the result of one crawl run.
//
// Design decision: The report is assembled only after the run finishes, so the
// traversal state it summarizes is never shared with callers while it mutates.
type CrawlReport struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Seeds are the keys the frontier was seeded with.
	Seeds []Key `json:"seeds"`

	// Order is the frontier order used (lifo or fifo).
	Order string `json:"order"`

	// Drives holds one record per visited drive, in visit order.
	Drives []DriveRecord `json:"drives"`

	// Failures lists every recoverable failure in the order it occurred.
	Failures []Failure `json:"failures,omitempty"`

	// Metrics is the final metrics snapshot.
	Metrics Metrics `json:"metrics"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended.
	FinishedAt time.Time `json:"finished_at"`

	// Canceled is true if the run stopped before the frontier was exhausted.
	Canceled bool `json:"canceled"`

	// MountMode is true if visited drives were mounted into a root drive.
	MountMode bool `json:"mount_mode"`
}

// NewCrawlReport creates an empty report for a run.
func NewCrawlReport(runID string, seeds []Key, order string) *CrawlReport {
	return &CrawlReport{
		RunID:     runID,
		Seeds:     seeds,
		Order:     order,
		Drives:    make([]DriveRecord, 0),
		Failures:  make([]Failure, 0),
		StartedAt: time.Now(),
	}
}

// VisitedKeys returns the keys of all visited drives in visit order.
func (r *CrawlReport) VisitedKeys() []Key {
	keys := make([]Key, 0, len(r.Drives))
	for _, d := range r.Drives {
		keys = append(keys, d.Key)
	}
	return keys
}

// Drive returns the record for a key, or nil if the key was not visited.
func (r *CrawlReport) Drive(key Key) *DriveRecord {
	for i := range r.Drives {
		if r.Drives[i].Key == key {
			return &r.Drives[i]
		}
	}
	return nil
}

// StatusCounts returns how many drives ended in each status.
func (r *CrawlReport) StatusCounts() map[DriveStatus]int {
	counts := make(map[DriveStatus]int)
	for _, d := range r.Drives {
		counts[d.Status]++
	}
	return counts
}

// FailureCounts returns how many failures of each kind occurred.
func (r *CrawlReport) FailureCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// EdgeCount returns the number of content links and mounts across all drives.
func (r *CrawlReport) EdgeCount() int {
	n := 0
	for _, d := range r.Drives {
		n += len(d.Links) + len(d.Mounts)
	}
	return n
}
