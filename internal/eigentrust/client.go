package eigentrust

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/trustcrawl/internal/graph"
	"github.com/nao1215/trustcrawl/internal/model"
)

const (
	// computePath is the compute endpoint relative to the base URL.
	computePath = "/basic/v1/compute"

	// schemeInline marks vectors and matrices sent in the request body.
	schemeInline = "inline"

	// defaultTimeout bounds one compute call.
	defaultTimeout = 60 * time.Second

	// maxResponseSize limits how much of a response body is read.
	maxResponseSize = 64 * 1024 * 1024 // 64MB
)

// Params are the EigenTrust hyperparameters.
type Params struct {
	// Alpha is the weight of the pretrust vector in every iteration.
	Alpha float64 `json:"alpha"`

	// Epsilon is the convergence threshold.
	Epsilon float64 `json:"epsilon"`

	// MaxIterations bounds the number of iterations.
	MaxIterations int `json:"max_iterations"`

	// FlatTail is the number of stable iterations after which the engine stops early.
	FlatTail int `json:"flatTail"`
}

// DefaultParams returns the hyperparameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Alpha:         0.5,
		Epsilon:       1.0,
		MaxIterations: 50,
		FlatTail:      2,
	}
}

// inlineVector is an inline pretrust vector.
type inlineVector struct {
	Scheme  string                `json:"scheme"`
	Size    int                   `json:"size"`
	Entries []model.PretrustEntry `json:"entries"`
}

// inlineMatrix is an inline local trust matrix.
type inlineMatrix struct {
	Scheme  string                  `json:"scheme"`
	Size    int                     `json:"size"`
	Entries []model.LocalTrustEntry `json:"entries"`
}

// computeRequest is the body of POST /basic/v1/compute.
type computeRequest struct {
	Pretrust   inlineVector `json:"pretrust"`
	LocalTrust inlineMatrix `json:"localTrust"`
	Params
}

// computeResponse is the body of a successful compute call.
type computeResponse struct {
	Entries []model.IndexedScore `json:"entries"`
}

// Client calls the compute endpoint. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	params     Params
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithParams sets the hyperparameters.
func WithParams(p Params) Option {
	return func(c *Client) {
		c.params = p
	}
}

// WithTimeout sets the timeout of one compute call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the engine at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL: u,
		params:  DefaultParams(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Compute sends the matrix to the engine and returns the raw indexed scores.
// Both declared sizes are m.MaxIndex.
func (c *Client) Compute(ctx context.Context, m *graph.Matrix) ([]model.IndexedScore, error) {
	if m == nil || m.MaxIndex == 0 {
		return nil, ErrEmptyMatrix
	}

	body, err := json.Marshal(computeRequest{
		Pretrust: inlineVector{
			Scheme:  schemeInline,
			Size:    m.MaxIndex,
			Entries: m.Pretrust,
		},
		LocalTrust: inlineMatrix{
			Scheme:  schemeInline,
			Size:    m.MaxIndex,
			Entries: m.LocalTrust,
		},
		Params: c.params,
	})
	if err != nil {
		return nil, &Error{Err: err}
	}

	endpoint := c.baseURL.JoinPath(computePath).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("eigentrust request failed", "error", err)
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		c.logger.Error("eigentrust server error",
			"status", resp.StatusCode,
			"reason", resp.Status,
		)
		return nil, &Error{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var out computeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}

	c.logger.Info("eigentrust compute done",
		"scores", len(out.Entries),
		"size", m.MaxIndex,
		"edges", len(m.LocalTrust),
		"elapsed", time.Since(start),
	)
	return out.Entries, nil
}

// Score computes the scores of m and maps them back to addresses, in the
// order the engine returned them.
func (c *Client) Score(ctx context.Context, m *graph.Matrix) ([]model.ScoredAddress, error) {
	entries, err := c.Compute(ctx, m)
	if err != nil {
		return nil, err
	}
	return MapScores(m, entries)
}

// MapScores translates indexed scores into scored addresses through the
// matrix index table.
func MapScores(m *graph.Matrix, entries []model.IndexedScore) ([]model.ScoredAddress, error) {
	out := make([]model.ScoredAddress, 0, len(entries))
	for _, e := range entries {
		addr, ok := m.AddressAt(e.I)
		if !ok {
			return nil, fmt.Errorf("%w: %d (size %d)", ErrUnknownIndex, e.I, m.MaxIndex)
		}
		out = append(out, model.ScoredAddress{Address: addr, Score: e.V})
	}
	return out, nil
}
