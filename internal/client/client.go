// Package client is the Go SDK for the HubFreelance API. Reads go through
// a request-keyed cache; every write declares the reads it makes stale.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/Gee2424/HubFreelance-sub001/internal/cache"
)

// Client calls the REST API and, when configured, the realtime stream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	realtime   grpc.ClientConnInterface

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithCache shares an existing cache.
func WithCache(cc *cache.Cache) Option {
	return func(c *Client) { c.cache = cc }
}

// WithRealtime sets the connection used for the message stream. Without
// it bridges poll.
func WithRealtime(cc grpc.ClientConnInterface) Option {
	return func(c *Client) { c.realtime = cc }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.New()
	}
	return c
}

// Cache returns the read cache.
func (c *Client) Cache() *cache.Cache { return c.cache }

// Close cancels in-flight reads.
func (c *Client) Close() { c.cache.Close() }

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// streamContext attaches the bearer token as gRPC metadata.
func (c *Client) streamContext(ctx context.Context) context.Context {
	if tok := c.Token(); tok != "" {
		return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
	}
	return ctx
}

// do sends one JSON request and decodes a 2xx body into out. Non-2xx
// answers become *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// read fetches path through the cache. On a failed refresh the previously
// cached value is returned together with the error.
func read[T any](ctx context.Context, c *Client, key cache.Key, opts ...cache.FetchOption) (T, error) {
	snap := c.cache.Fetch(ctx, key, fetcher[T](c, key), opts...)
	v, _ := cache.Value[T](snap)
	return v, snap.Err
}

// fetcher returns the network read behind key.
func fetcher[T any](c *Client, key cache.Key) cache.Fetcher {
	path, rawQuery, _ := strings.Cut(string(key), "?")
	query, _ := url.ParseQuery(rawQuery)
	return func(ctx context.Context) (any, error) {
		var out T
		if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
