package booru

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
)

const (
	// DefaultUserAgent identifies the downloader to upstream sites.
	DefaultUserAgent = "boorudl/1.0 (+https://github.com/boorudl/boorudl)"

	// DefaultTimeout bounds connecting, waiting for response headers and
	// each gap between body reads. A long download that keeps receiving
	// data is never cut off.
	DefaultTimeout = 30 * time.Second

	// ChunkSize is the buffer size used when streaming image bodies.
	ChunkSize = 8 * 1024

	maxErrorPreview = 200
)

// ErrStalled is reported when a response body delivers no data for longer
// than the client timeout.
var ErrStalled = errors.New("response stalled")

// Options configures a Client.
type Options struct {
	BaseURL   string
	Dialect   Dialect
	Username  string
	APIKey    string
	UserAgent string
	// Proxy is an http://, https:// or socks5:// URL applied to all requests.
	Proxy   string
	Timeout time.Duration
}

// Client talks to one booru site.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	endpoint   Endpoint
	logger     logger.Logger
}

// NewClient creates a client sharing one HTTP session for page requests
// and image downloads.
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(opts.BaseURL)); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = opts.Timeout
	transport.ResponseHeaderTimeout = opts.Timeout
	if opts.Proxy != "" {
		proxyURL, err := ParseProxy(opts.Proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		log.InfoWithFields("using proxy", map[string]interface{}{
			"proxy": proxyURL.Redacted(),
		})
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		timeout:    opts.Timeout,
		headers: map[string]string{
			"User-Agent": opts.UserAgent,
			"Accept":     "application/json, image/*;q=0.9, */*;q=0.8",
		},
		endpoint: NewEndpoint(opts.BaseURL, opts.Dialect, opts.Username, opts.APIKey),
		logger:   log,
	}, nil
}

// ParseProxy validates a proxy URL.
func ParseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q (expected http, https or socks5)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", raw)
	}
	return u, nil
}

// Endpoint returns the resolved endpoint of the site.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Dialect returns the resolved dialect.
func (c *Client) Dialect() Dialect {
	return c.endpoint.Dialect
}

// Normalize converts a record into a Post, resolving URLs against the site.
func (c *Client) Normalize(rec Record) Post {
	return c.endpoint.Normalize(rec)
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, err
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// FetchPage requests one logical 1-based page and decodes its records.
// Any transport, status or decode problem is a FetchFailed error.
func (c *Client) FetchPage(ctx context.Context, tags string, page, limit int) ([]Record, error) {
	pageURL := c.endpoint.PageURL(tags, page, limit)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errs.FetchFailed(pageURL, 0, err)
	}
	if c.endpoint.Dialect == DialectPaginated && c.endpoint.HasCredentials() {
		req.SetBasicAuth(c.endpoint.Username, c.endpoint.APIKey)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, errs.FetchFailed(pageURL, 0, err)
	}
	defer resp.Body.Close()

	watched := c.watch(resp.Body, cancel)
	body, err := io.ReadAll(watched)
	watched.stop()
	if err != nil {
		return nil, errs.FetchFailed(pageURL, resp.StatusCode, c.readError(ctx, err))
	}

	if !errs.IsSuccessStatus(resp.StatusCode) {
		return nil, errs.FetchFailed(pageURL, resp.StatusCode, fmt.Errorf("unexpected status: %s", preview(body)))
	}

	records, err := ParseRecords(body)
	if err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          pageURL,
			"status":       resp.StatusCode,
			"body_preview": preview(body),
		})
		return nil, errs.FetchFailed(pageURL, resp.StatusCode, err)
	}
	return records, nil
}

// Download streams imageURL into w in ChunkSize pieces and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, imageURL string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, errs.DownloadFailed(imageURL, 0, err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return 0, errs.DownloadFailed(imageURL, 0, err)
	}
	defer resp.Body.Close()

	if !errs.IsSuccessStatus(resp.StatusCode) {
		return 0, errs.DownloadFailed(imageURL, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	watched := c.watch(resp.Body, cancel)
	n, err := io.CopyBuffer(onlyWriter{w}, watched, make([]byte, ChunkSize))
	watched.stop()
	if err != nil {
		return n, errs.DownloadFailed(imageURL, resp.StatusCode, c.readError(ctx, err))
	}
	return n, nil
}

// stallReader cancels its request when a read gap exceeds the timeout.
type stallReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (c *Client) watch(body io.Reader, cancel context.CancelCauseFunc) *stallReader {
	return &stallReader{
		r:       body,
		timeout: c.timeout,
		timer:   time.AfterFunc(c.timeout, func() { cancel(ErrStalled) }),
	}
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.timer.Reset(s.timeout)
	}
	return n, err
}

func (s *stallReader) stop() {
	s.timer.Stop()
}

// readError reports a stall instead of the bare cancellation it caused.
func (c *Client) readError(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrStalled) {
		return fmt.Errorf("%w: no data for %s", ErrStalled, c.timeout)
	}
	return err
}

// onlyWriter hides ReadFrom so CopyBuffer keeps to the chunk buffer.
type onlyWriter struct {
	io.Writer
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorPreview {
		s = s[:maxErrorPreview] + "..."
	}
	return s
}
