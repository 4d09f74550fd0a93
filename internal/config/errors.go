package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrNoSeeds is returned when neither arguments, the config file nor
	// a root key provide a seed.
	ErrNoSeeds = errors.New("no seeds specified: provide a drive key, hyper:// address, URL or --root-key")

	// ErrInvalidBackend is returned for a backend other than local or remote.
	ErrInvalidBackend = errors.New("invalid backend: must be \"local\" or \"remote\"")

	// ErrMissingStoreDir is returned when the local backend has no store directory.
	ErrMissingStoreDir = errors.New("missing store directory for the local backend")

	// ErrMissingEndpoint is returned when the remote backend has no endpoint.
	ErrMissingEndpoint = errors.New("missing endpoint for the remote backend")

	// ErrMissingRootKey is returned when mount mode is enabled without a root drive.
	ErrMissingRootKey = errors.New("mount mode requires --root-key")

	// ErrInvalidOrder is returned for an order other than lifo or fifo.
	ErrInvalidOrder = errors.New("invalid order: must be \"lifo\" or \"fifo\"")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the read concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidDelay is returned when the delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
