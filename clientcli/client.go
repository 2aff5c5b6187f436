package clientcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/blobkeep"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Client performs operations against a blobkeep server.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the server URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) blobURL(key string) string {
	return c.endpoint + "/blobs/" + url.PathEscape(key)
}

// do sends the request and returns the response when its status is one of
// ok. Any other status is turned into an *APIError and the body is closed.
func (c *Client) do(req *http.Request, ok ...int) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	for _, code := range ok {
		if resp.StatusCode == code {
			return resp, nil
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	return nil, parseServerError(resp.StatusCode, body)
}

// Put stores file(s) on the server.
// For recursive puts the directory is walked and nested paths are joined
// with '_' to form flat keys.
func (c *Client) Put(ctx context.Context, opts PutOptions) ([]PutResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("put: %w", ErrEmptyPath)
	}

	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if info.IsDir() {
		if !opts.Recursive {
			return nil, fmt.Errorf("put: %s is a directory (use -r to put recursively)", opts.LocalPath)
		}
		return c.putRecursive(ctx, opts)
	}

	key := opts.Key
	if key == "" {
		key = filepath.Base(opts.LocalPath)
	}

	result, err := c.putSingle(ctx, opts.LocalPath, key)
	if err != nil {
		return nil, err
	}
	return []PutResult{result}, nil
}

// putRecursive walks a directory and stores all files.
func (c *Client) putRecursive(ctx context.Context, opts PutOptions) ([]PutResult, error) {
	var results []PutResult
	baseDir := opts.LocalPath

	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			results = append(results, PutResult{
				LocalPath: path,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}

		key := opts.Key + FlattenKey(relPath)

		result, putErr := c.putSingle(ctx, path, key)
		if putErr != nil {
			result = PutResult{
				LocalPath: path,
				Key:       key,
				Err:       putErr,
			}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

// putSingle stores a single file under key.
func (c *Client) putSingle(ctx context.Context, localPath, key string) (PutResult, error) {
	if err := blobkeep.ValidateKey(key); err != nil {
		return PutResult{}, fmt.Errorf("put %s: %w", localPath, err)
	}

	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return PutResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return PutResult{}, fmt.Errorf("stat file: %w", err)
	}

	// Stream the file as the body, no memory copy
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.blobURL(key), file)
	if err != nil {
		return PutResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = info.Size()

	resp, err := c.do(req, http.StatusOK, http.StatusCreated)
	if err != nil {
		return PutResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var meta serverBlobInfo
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return PutResult{}, fmt.Errorf("parse response: %w", err)
	}

	return PutResult{
		LocalPath:  localPath,
		Key:        meta.Key,
		Created:    resp.StatusCode == http.StatusCreated,
		ETag:       meta.ETag,
		Size:       meta.Size,
		Version:    meta.Version,
		CreatedAt:  meta.CreatedAt,
		ModifiedAt: meta.ModifiedAt,
	}, nil
}

// Get fetches a blob from the server.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Get(ctx context.Context, opts GetOptions) (*GetResult, io.ReadCloser, error) {
	if err := blobkeep.ValidateKey(opts.Key); err != nil {
		return nil, nil, fmt.Errorf("get: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.blobURL(opts.Key), http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, nil, err
	}

	result := &GetResult{
		Key:  opts.Key,
		ETag: strings.Trim(resp.Header.Get("ETag"), `"`),
		Size: resp.ContentLength,
	}

	// If stdout requested, return the body for the caller to handle
	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = opts.Key
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Stat returns the blob's size, ETag and modification time without its content.
func (c *Client) Stat(ctx context.Context, key string) (*BlobInfo, error) {
	if err := blobkeep.ValidateKey(key); err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.blobURL(key), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	info := &BlobInfo{
		Key:  key,
		Size: resp.ContentLength,
		ETag: strings.Trim(resp.Header.Get("ETag"), `"`),
	}
	// absent for blobs the server has not indexed
	if v := resp.Header.Get("X-Blob-Version"); v != "" {
		if n, parseErr := strconv.ParseInt(v, 10, 64); parseErr == nil {
			info.Version = n
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, parseErr := http.ParseTime(lm); parseErr == nil {
			info.ModifiedAt = t
		}
	}

	return info, nil
}

// Delete deletes one or more blobs from the server.
// Continues on error, collecting results for all keys.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.Keys) == 0 {
		return nil, ErrNoKeys
	}

	results := make([]DeleteResult, 0, len(opts.Keys))

	for _, key := range opts.Keys {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		results = append(results, c.deleteSingle(ctx, key))
	}

	return results, nil
}

// deleteSingle deletes a single blob from the server.
func (c *Client) deleteSingle(ctx context.Context, key string) DeleteResult {
	if err := blobkeep.ValidateKey(key); err != nil {
		return DeleteResult{Key: key, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.blobURL(key), http.NoBody)
	if err != nil {
		return DeleteResult{
			Key: key,
			Err: fmt.Errorf("create request: %w", err),
		}
	}

	resp, err := c.do(req, http.StatusNoContent, http.StatusOK)
	if err != nil {
		return DeleteResult{Key: key, Err: err}
	}
	_ = resp.Body.Close()

	return DeleteResult{Key: key, Deleted: true}
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// HasPutErrors returns true if any put operation failed.
func HasPutErrors(results []PutResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// List returns every key stored on the server.
// With opts.Long each key is also stat'ed.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/blobs", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var keys []string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := &ListResult{Keys: keys}
	if !opts.Long {
		return result, nil
	}

	result.Items = make([]BlobInfo, 0, len(keys))
	for _, key := range keys {
		info, statErr := c.Stat(ctx, key)
		if statErr != nil {
			// deleted between the list and the stat
			if IsNotFound(statErr) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", key, statErr)
		}
		result.Items = append(result.Items, *info)
	}

	return result, nil
}

// TotalSize calculates the total size of all items in bytes.
func (r *ListResult) TotalSize() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.Size
	}
	return total
}

// Health queries the server's liveness and readiness endpoints and reads its
// version. The error is non-nil only when the server cannot be reached or
// is not alive.
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	result := &HealthResult{Endpoint: c.endpoint}

	var status serverStatus
	if err := c.getJSON(ctx, "/health", &status); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	result.Status = status.Status

	result.Ready = c.getJSON(ctx, "/ready", &status) == nil

	var info serverInfo
	if err := c.getJSON(ctx, "/", &info); err == nil {
		result.Version = info.Version
	}

	return result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// FlattenKey turns a relative file path into a flat key by joining its
// segments with '_'.
func FlattenKey(relPath string) string {
	path := filepath.ToSlash(filepath.Clean(relPath))
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimLeft(path, "/")
	return strings.ReplaceAll(path, "/", "_")
}
