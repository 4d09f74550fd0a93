package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/hyperscrape/internal/model"
)

// Crawl errors.
// Only these two abort a run; everything else is recorded as an OpError
// and the crawl continues.
var (
	// ErrConnection is returned when the drive transport is unreachable at
	// seed time, so no drive could ever be opened. Backends wrap it for
	// transport-level failures.
	ErrConnection = errors.New("drive transport unreachable")

	// ErrNoSeeds is returned when Run is called without any valid seed key.
	ErrNoSeeds = errors.New("no valid seed keys")
)

// ErrorKind names the operation that failed for a single key or entry.
type ErrorKind int

const (
	// KindOpen means a drive handle could not be acquired.
	KindOpen ErrorKind = iota
	// KindList means the recursive listing of a drive failed.
	KindList
	// KindRead means reading a single file failed.
	KindRead
	// KindStat means stat of a single entry failed.
	KindStat
	// KindMount means mounting a drive into the root drive failed.
	KindMount
	// KindFetch means a one-shot HTTP seed fetch failed.
	KindFetch
)

// String returns the lowercase operation name.
func (k ErrorKind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindList:
		return "list"
	case KindRead:
		return "read"
	case KindStat:
		return "stat"
	case KindMount:
		return "mount"
	case KindFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// OpError is a recoverable failure scoped to one key or entry.
// It never aborts a crawl; the affected contribution is omitted and the
// error is reported to the observer and recorded in the crawl report.
type OpError struct {
	// Kind is the failed operation.
	Kind ErrorKind
	// Key is the drive being processed. Zero for fetch errors.
	Key model.Key
	// Path is the entry path, or the URL for fetch errors.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	target := e.Path
	switch {
	case !e.Key.IsZero() && e.Path != "":
		target = e.Key.Short() + ":" + e.Path
	case !e.Key.IsZero():
		target = e.Key.Short()
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, target, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Failure converts the error into its report representation.
func (e *OpError) Failure() model.Failure {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return model.Failure{
		Kind:    e.Kind.String(),
		Key:     e.Key,
		Path:    e.Path,
		Message: msg,
	}
}

// newOpError builds an OpError.
func newOpError(kind ErrorKind, key model.Key, path string, err error) *OpError {
	return &OpError{Kind: kind, Key: key, Path: path, Err: err}
}

// NewFetchError builds the OpError reported for a failed HTTP seed fetch.
func NewFetchError(url string, err error) *OpError {
	return newOpError(KindFetch, model.Key{}, url, err)
}
