package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/logger"
)

var (
	// ErrNotCached is returned in offline mode when no cached response exists
	ErrNotCached = errors.New("response not cached")
	// ErrNotFound is returned when the server answers 404
	ErrNotFound = errors.New("resource not found")
)

// Request describes one download
type Request struct {
	Method string // GET when empty
	URL    string
	Form   url.Values // sent as an urlencoded body for POST
	// Name is a readable prefix for the cache file, e.g. "culvers-vendor"
	Name string
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// CacheKey identifies the response on disk
func (r Request) CacheKey() string {
	h := sha256.New()
	io.WriteString(h, r.method())
	io.WriteString(h, "\n")
	io.WriteString(h, r.URL)
	io.WriteString(h, "\n")
	io.WriteString(h, r.Form.Encode())
	sum := hex.EncodeToString(h.Sum(nil))[:16]
	if r.Name == "" {
		return sum
	}
	return r.Name + "-" + sum
}

// Options configures a Client
type Options struct {
	CacheDir   string // empty disables caching
	Offline    bool
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Client downloads feeds with retries and keeps responses in a cache directory
type Client struct {
	client     *http.Client
	cacheDir   string
	offline    bool
	maxRetries int
	retryDelay time.Duration
	userAgent  string
}

// NewClient creates a new fetch client
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "chainmerge/1.0"
	}
	return &Client{
		client:     client,
		cacheDir:   opts.CacheDir,
		offline:    opts.Offline,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		userAgent:  ua,
	}
}

// CachePath returns the path where a request's response would be cached
func (c *Client) CachePath(req Request) string {
	if c.cacheDir == "" {
		return ""
	}
	return filepath.Join(c.cacheDir, req.CacheKey()+".dat")
}

// Open returns the response body for req, served from the cache when present
func (c *Client) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	if c.cacheDir == "" {
		if c.offline {
			return nil, fmt.Errorf("%s: %w", req.URL, ErrNotCached)
		}
		resp, err := c.doWithRetry(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}

	path, err := c.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Fetch downloads req into the cache directory and returns the cached file path.
// An existing cache file is reused without contacting the server.
func (c *Client) Fetch(ctx context.Context, req Request) (string, error) {
	log := logger.Get()
	if c.cacheDir == "" {
		return "", fmt.Errorf("no cache directory configured")
	}

	cacheFile := c.CachePath(req)
	if _, err := os.Stat(cacheFile); err == nil {
		log.Debug("Using cached response", zap.String("url", req.URL), zap.String("path", cacheFile))
		return cacheFile, nil
	}
	if c.offline {
		return "", fmt.Errorf("%s: %w", req.URL, ErrNotCached)
	}

	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	log.Debug("Fetching", zap.String("method", req.method()), zap.String("url", req.URL))

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmpFile := cacheFile + ".tmp"
	out, err := os.Create(tmpFile)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(tmpFile, cacheFile); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info("Downloaded",
		zap.String("url", req.URL),
		zap.String("path", cacheFile),
		zap.Int64("bytes", n))
	return cacheFile, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Form != nil && req.method() != http.MethodGet {
		body = strings.NewReader(req.Form.Encode())
	}
	target := req.URL
	if req.Form != nil && req.method() == http.MethodGet {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Form.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return httpReq, nil
}

// doWithRetry performs the request, retrying network errors and 5xx responses.
// The returned response always has status 200.
func (c *Client) doWithRetry(ctx context.Context, req Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Get().Warn("Retrying request",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		httpReq, err := c.newRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, fmt.Errorf("%s: %w", req.URL, ErrNotFound)
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
