package transport

import "errors"

// Transport errors.
var (
	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be established. The proxy is probably not running.
	ErrProxyCannotConnect = errors.New("cannot connect to SOCKS5 proxy")

	// ErrProxyTimeout is returned when connecting to the proxy times out.
	ErrProxyTimeout = errors.New("timeout connecting to SOCKS5 proxy")

	// ErrEmbeddedTorNotRunning is returned when a client is requested from an
	// embedded Tor daemon that has not been started.
	ErrEmbeddedTorNotRunning = errors.New("embedded Tor daemon is not running")
)
