package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the proxy reachability check.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the redirect limit of clients built by this package.
const maxRedirects = 10

// Client builds HTTP clients for the seed fetcher and the remote drive
// backend. With a proxy address, every connection goes through that SOCKS5
// proxy (for example a local Tor daemon); without one, connections are direct.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" format, or "".
	proxyAddress string

	// dialer is the SOCKS5 dialer, nil for direct connections.
	dialer proxy.Dialer

	// timeout is the per-request timeout of built HTTP clients.
	timeout time.Duration
}

// NewClient creates a Client. An empty proxyAddress means direct connections.
// The proxy is not contacted here; call CheckConnection to verify it.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	c := &Client{
		proxyAddress: proxyAddress,
		timeout:      timeout,
	}
	if proxyAddress == "" {
		return c, nil
	}

	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not require authentication.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	c.dialer = dialer
	return c, nil
}

// isValidProxyAddress checks if the address is in "host:port" format with a
// port between 1 and 65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// CheckConnection verifies that the configured proxy accepts TCP connections.
// It is a no-op for direct clients.
func (c *Client) CheckConnection(ctx context.Context) error {
	if c.dialer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s", ErrProxyTimeout, c.proxyAddress)
		}
		return fmt.Errorf("%w: %s: %w", ErrProxyCannotConnect, c.proxyAddress, err)
	}
	return conn.Close()
}

// NewHTTPClient creates an HTTP client using this Client's connection settings.
// It keeps cookies for the lifetime of the client and follows at most ten
// redirects.
func (c *Client) NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 30 * time.Second

	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := c.dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return c.dialer.Dial(network, addr)
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// HTTPClientWithHeaders creates an HTTP client that sets headers on every
// request, including redirects. Use it to attach a daemon credential or a
// User-Agent.
func (c *Client) HTTPClientWithHeaders(headers map[string]string) *http.Client {
	client := c.NewHTTPClient()
	if len(headers) == 0 {
		return client
	}
	client.Transport = &headerInjectingTransport{
		base:    client.Transport,
		headers: headers,
	}
	return client
}

// ProxyAddress returns the configured proxy address, or "" for direct clients.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the request timeout of built HTTP clients.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// headerInjectingTransport sets fixed headers on every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
