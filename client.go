// Package ollama provides a Go client for the Ollama model-serving API.
//
// Every endpoint has a blocking form returning one typed response. Endpoints
// that stream (generate, chat, pull, push, create) also have a Stream form
// that returns a *Stream decoding the server's NDJSON body frame by frame.
// Tool calling lives in the tools subpackage.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds non-streaming requests. Streams are bounded only by
// their context.
const DefaultTimeout = 120 * time.Second

// Client talks to one Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
	log        zerolog.Logger
	maxLine    int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each non-streaming request, body included. 0 disables
// the bound. Streaming requests are not affected.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHeader sets a header sent with every request.
func WithHeader(k, v string) Option {
	return func(c *Client) { c.headers[k] = v }
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.headers["Authorization"] = "Bearer " + key
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMaxLineSize bounds a single NDJSON line of a streamed response.
func WithMaxLineSize(n int) Option {
	return func(c *Client) { c.maxLine = n }
}

// NewClient creates a client for the server at host. The host is normalized
// with ParseHost, so "localhost" and ":11434" are both accepted.
func NewClient(host string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(ParseHost(host), "/"),
		httpClient: &http.Client{},
		headers:    make(map[string]string),
		timeout:    DefaultTimeout,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig creates a client from a loaded Config.
func NewClientFromConfig(cfg *Config, opts ...Option) *Client {
	base := []Option{WithTimeout(cfg.Timeout), WithAPIKey(cfg.APIKey)}
	for k, v := range cfg.Headers {
		base = append(base, WithHeader(k, v))
	}
	return NewClient(cfg.Host, append(base, opts...)...)
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// withTimeout applies the client's request bound to ctx.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// SetAPIKey sets the bearer token for subsequent requests.
func (c *Client) SetAPIKey(k string) {
	WithAPIKey(k)(c)
}

// SetHeader sets a custom HTTP header for all requests made by this client.
func (c *Client) SetHeader(k, v string) {
	c.headers[k] = v
}
