package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nao1215/hyperscrape/internal/crawler"
	"github.com/nao1215/hyperscrape/internal/model"
)

const (
	// rpcPath is the daemon's JSON-RPC endpoint.
	rpcPath = "/rpc"
	// rpcVersion is the JSON-RPC protocol version.
	rpcVersion = "2.0"
	// defaultRemoteTimeout is the request timeout when no client is supplied.
	defaultRemoteTimeout = 30 * time.Second
	// maxResponseSize caps the size of one daemon response.
	maxResponseSize = 64 * 1024 * 1024
)

// Daemon RPC methods.
const (
	methodStatus   = "daemon.status"
	methodOpen     = "drive.open"
	methodReaddir  = "drive.readdir"
	methodReadFile = "drive.readFile"
	methodStat     = "drive.stat"
	methodMount    = "drive.mount"
)

// RemoteClient reaches drives through a running drive daemon using JSON-RPC
// over HTTP. Transport failures wrap crawler.ErrConnection; errors reported
// by the daemon are *RPCError values.
type RemoteClient struct {
	endpoint string
	client   *http.Client
	token    string
	logger   *slog.Logger
	nextID   atomic.Int64
}

// RemoteOption configures a RemoteClient.
type RemoteOption func(*RemoteClient)

// WithHTTPClient sets the HTTP client used for daemon requests.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(c *RemoteClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithToken sets the daemon credential sent as a bearer token.
func WithToken(token string) RemoteOption {
	return func(c *RemoteClient) {
		c.token = token
	}
}

// WithRemoteLogger sets a custom logger.
func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(c *RemoteClient) {
		c.logger = logger
	}
}

// NewRemoteClient creates a client for the daemon at endpoint
// (for example "http://127.0.0.1:3101").
func NewRemoteClient(endpoint string, opts ...RemoteOption) (*RemoteClient, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	c := &RemoteClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultRemoteTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Endpoint returns the daemon endpoint.
func (c *RemoteClient) Endpoint() string {
	return c.endpoint
}

// RPCError is an error reported by the daemon.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	Version string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Version string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// call performs one RPC and decodes the result into out (if non-nil).
func (c *RemoteClient) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{
		Version: rpcVersion,
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+rpcPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", crawler.ErrConnection, method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", crawler.ErrConnection, method, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: daemon rejected credentials (HTTP %d)", crawler.ErrConnection, method, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError && len(data) == 0:
		return fmt.Errorf("%w: %s: HTTP %d", crawler.ErrConnection, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// DaemonStatus is the daemon's self-reported state.
type DaemonStatus struct {
	Version string `json:"version"`
	Peers   int    `json:"peers"`
}

// Status returns the daemon status.
func (c *RemoteClient) Status(ctx context.Context) (DaemonStatus, error) {
	var st DaemonStatus
	err := c.call(ctx, methodStatus, nil, &st)
	return st, err
}

// Ping implements crawler.Pinger.
func (c *RemoteClient) Ping(ctx context.Context) error {
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	c.logger.Debug("connected to drive daemon", "endpoint", c.endpoint, "version", st.Version, "peers", st.Peers)
	return nil
}

type keyParams struct {
	Key string `json:"key"`
}

// Open implements crawler.Accessor. The daemon starts replicating the
// drive if it is not yet known.
func (c *RemoteClient) Open(ctx context.Context, key model.Key) (crawler.Drive, error) {
	return c.OpenRemote(ctx, key)
}

// OpenRemote returns the drive for key as a *RemoteDrive.
func (c *RemoteClient) OpenRemote(ctx context.Context, key model.Key) (*RemoteDrive, error) {
	if key.IsZero() {
		return nil, model.ErrEmptyKey
	}
	if err := c.call(ctx, methodOpen, keyParams{Key: key.String()}, nil); err != nil {
		return nil, err
	}
	return &RemoteDrive{client: c, key: key}, nil
}

// RemoteDrive is a drive served by the daemon.
type RemoteDrive struct {
	client *RemoteClient
	key    model.Key
}

// Key returns the drive key.
func (d *RemoteDrive) Key() model.Key {
	return d.key
}

type readdirParams struct {
	Key       string `json:"key"`
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

// List implements crawler.Drive.
func (d *RemoteDrive) List(ctx context.Context, dir string, recursive bool) ([]string, error) {
	var entries []string
	err := d.client.call(ctx, methodReaddir, readdirParams{
		Key:       d.key.String(),
		Path:      "/" + strings.TrimPrefix(dir, "/"),
		Recursive: recursive,
	}, &entries)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		entries[i] = strings.TrimPrefix(e, "/")
	}
	return entries, nil
}

type pathParams struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

// Read implements crawler.Drive. The daemon returns file content base64
// encoded, which encoding/json decodes into the byte slice.
func (d *RemoteDrive) Read(ctx context.Context, p string) ([]byte, error) {
	var result struct {
		Data []byte `json:"data"`
	}
	err := d.client.call(ctx, methodReadFile, pathParams{Key: d.key.String(), Path: "/" + strings.TrimPrefix(p, "/")}, &result)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

// statResult is the daemon's stat representation.
type statResult struct {
	IsDirectory bool  `json:"isDirectory"`
	Size        int64 `json:"size"`
	Mount       *struct {
		Key string `json:"key"`
	} `json:"mount,omitempty"`
}

// Stat implements crawler.Drive.
func (d *RemoteDrive) Stat(ctx context.Context, p string) (model.Stat, error) {
	var result statResult
	err := d.client.call(ctx, methodStat, pathParams{Key: d.key.String(), Path: "/" + strings.TrimPrefix(p, "/")}, &result)
	if err != nil {
		return model.Stat{}, err
	}

	st := model.Stat{IsDir: result.IsDirectory, Size: result.Size}
	if result.Mount != nil {
		if k, ok := model.NormalizeKey(result.Mount.Key); ok {
			st.Mount = &model.Mount{Key: k}
		}
	}
	return st, nil
}

type mountParams struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Path   string `json:"path"`
}

// Mount implements crawler.MountableDrive.
func (d *RemoteDrive) Mount(ctx context.Context, source model.Key, target string) error {
	if source.IsZero() {
		return model.ErrEmptyKey
	}
	return d.client.call(ctx, methodMount, mountParams{
		Key:    d.key.String(),
		Source: source.String(),
		Path:   "/" + strings.TrimPrefix(target, "/"),
	}, nil)
}
