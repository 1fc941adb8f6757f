// Package http provides the HTTP client used for discovery requests.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/PentesterFlow/apisurface/internal/errors"
)

// Getter performs a single GET request.
// Implementations return a *errors.ProbeError on failure.
type Getter interface {
	Get(ctx context.Context, req *Request) (*Response, error)
}

// Waiter paces requests before they are sent.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Request describes one GET request.
type Request struct {
	URL     string
	Headers map[string]string
	// Timeout bounds the whole exchange including the body read. Zero
	// falls back to the client default.
	Timeout time.Duration
}

// Response is a fully buffered HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the raw Content-Type header.
func (r *Response) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	MaxBodySize         int64
	UserAgent           string
	Headers             map[string]string
	SkipTLSVerify       bool
	Limiter             Waiter
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             8 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		MaxConnsPerHost:     32,
		MaxBodySize:         5 * 1024 * 1024,
		UserAgent:           "apisurface/1.0",
		SkipTLSVerify:       true,
	}
}

// Client is the default Getter backed by net/http.
type Client struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	limiter     Waiter
	headers     map[string]string
}

// NewClient creates a new HTTP client.
func NewClient(config ClientConfig) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	maxBody := config.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultClientConfig().MaxBodySize
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		timeout:     config.Timeout,
		userAgent:   config.UserAgent,
		maxBodySize: maxBody,
		limiter:     config.Limiter,
		headers:     config.Headers,
	}
}

// Get performs a GET request and buffers the body. Time spent waiting on
// the limiter does not count against the request timeout.
func (c *Client) Get(ctx context.Context, r *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, limiterError(ctx, r.URL, err)
		}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, errors.NewRequestError(r.URL, err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Categorize(err, r.URL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Categorize(ctx.Err(), r.URL)
		}
		return nil, errors.NewBodyError(r.URL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		body = decodeHTML(body, contentType)
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

// limiterError maps a failed limiter wait. The limiter refuses up front when
// the caller's deadline would pass before a token is available, which is a
// timeout like any other.
func limiterError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Categorize(ctxErr, url)
	}
	return errors.NewTimeoutError(url, "rate_limit", err)
}

// decodeHTML converts an HTML body to UTF-8 using the declared or sniffed
// charset. The raw bytes are kept when decoding fails.
func decodeHTML(body []byte, contentType string) []byte {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body
	}
	return decoded
}

// Close closes idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
