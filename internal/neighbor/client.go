package neighbor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// apiKeyHeader is the header that carries the API key.
	apiKeyHeader = "API-Key"

	// defaultTimeout bounds one lookup when no timeout is configured.
	defaultTimeout = 60 * time.Second

	// defaultMaxBodySize limits how much of a response body is read.
	defaultMaxBodySize = 32 * 1024 * 1024 // 32MB
)

// Client issues neighbor lookups against one API base URL.
// It is safe for concurrent use.
type Client struct {
	// baseURL is the API root, e.g. https://api.nexandria.com.
	baseURL *url.URL

	// apiKey is sent in the API-Key header of every request.
	apiKey string

	// proxyAddress is an optional SOCKS5 proxy in host:port form.
	proxyAddress string

	// timeout bounds each individual request.
	timeout time.Duration

	// maxBodySize limits the bytes read from a response.
	maxBodySize int64

	// httpClient performs the requests.
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProxy routes all requests through a SOCKS5 proxy at host:port.
func WithProxy(address string) ClientOption {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithMaxBodySize limits the response body size.
func WithMaxBodySize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithHTTPClient replaces the HTTP client. The API key is still injected.
// Mostly useful in tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Client for the given API base URL.
// It validates the configuration but performs no network I/O.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:     u,
		timeout:     defaultTimeout,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		transport, err := newTransport(c.proxyAddress)
		if err != nil {
			return nil, err
		}
		c.httpClient = &http.Client{
			Transport: transport,
			Timeout:   c.timeout,
		}
	}

	// Wrap whatever transport we ended up with so the key rides on every request.
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.httpClient
	wrapped.Transport = &headerInjectingTransport{
		base: base,
		headers: map[string]string{
			apiKeyHeader: c.apiKey,
			"Accept":     "application/json",
		},
	}
	c.httpClient = &wrapped

	return c, nil
}

// newTransport builds the HTTP transport, dialing through SOCKS5 when a proxy
// address is given.
func newTransport(proxyAddress string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// The crawl gate caps concurrency, so a small idle pool is enough.
	transport.MaxIdleConns = 10
	transport.MaxIdleConnsPerHost = 5
	transport.IdleConnTimeout = 90 * time.Second

	if proxyAddress == "" {
		return transport, nil
	}
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return transport, nil
}

// isValidProxyAddress checks that address is host:port with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// Lookup issues one neighbor lookup and decodes the response.
//
// A non-2xx status returns a *StatusError. An embedded domain error is not an
// error at this layer; it is returned in Response.Error for the Fetcher to
// interpret.
func (c *Client) Lookup(ctx context.Context, chain string, address string, params url.Values) (*Response, error) {
	endpoint := c.endpoint(chain, address, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var out Response
	dec := json.NewDecoder(io.LimitReader(resp.Body, c.maxBodySize))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return &out, nil
}

// endpoint builds {base}/{chain}/v1/address/{address}/neighbors?params.
func (c *Client) endpoint(chain, address string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(chain) +
		"/v1/address/" + url.PathEscape(address) + "/neighbors"
	u.RawQuery = params.Encode()
	return u.String()
}

// headerInjectingTransport sets fixed headers on every outgoing request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrip must not modify the caller's request.
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		if value == "" {
			continue
		}
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
