package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/trustcrawl/internal/config"
	"github.com/nao1215/trustcrawl/internal/metrics"
	"github.com/nao1215/trustcrawl/internal/model"
	"github.com/nao1215/trustcrawl/internal/trust"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService records requests and answers with canned results.
type fakeService struct {
	mu     sync.Mutex
	reqs   []trust.Request
	scores []model.ScoredAddress
	err    error
	panics bool
}

func (f *fakeService) Neighbors(_ context.Context, req trust.Request) ([]model.ScoredAddress, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return f.scores, f.err
}

func (f *fakeService) requests() []trust.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]trust.Request(nil), f.reqs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", w.Body.String(), err)
	}
	return body.Detail
}

// TestHealth tests the liveness route.
func TestHealth(t *testing.T) {
	t.Parallel()

	w := do(t, New(&fakeService{}, WithLogger(quietLogger())).Handler(), http.MethodGet, "/_health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

// TestNeighbors tests the lookup route.
func TestNeighbors(t *testing.T) {
	t.Parallel()

	t.Run("returns result for GET and POST", func(t *testing.T) {
		t.Parallel()

		for _, method := range []string{http.MethodGet, http.MethodPost} {
			svc := &fakeService{scores: []model.ScoredAddress{{Address: "0xc", Score: 0.75}}}
			h := New(svc, WithLogger(quietLogger())).Handler()

			w := do(t, h, method, "/graph/neighbors/eth?k=3&limit=50", `["0xa","0xb"]`)
			if w.Code != http.StatusOK {
				t.Fatalf("%s status = %d body = %s", method, w.Code, w.Body.String())
			}

			var body struct {
				Result []model.ScoredAddress `json:"result"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if len(body.Result) != 1 || body.Result[0].Address != "0xc" || body.Result[0].Score != 0.75 {
				t.Errorf("%s result = %+v", method, body.Result)
			}

			reqs := svc.requests()
			if len(reqs) != 1 {
				t.Fatalf("service called %d times", len(reqs))
			}
			got := reqs[0]
			if got.Chain != "eth" || got.Depth != 3 || got.Limit != 50 || len(got.Seeds) != 2 {
				t.Errorf("%s request = %+v", method, got)
			}
		}
	})

	t.Run("defaults k and limit", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{}
		w := do(t, New(svc, WithLogger(quietLogger())).Handler(), http.MethodPost, "/graph/neighbors/base", `["0xa"]`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if w.Body.String() != `{"result":[]}` {
			t.Errorf("body = %s, want empty result array", w.Body.String())
		}
		got := svc.requests()[0]
		if got.Depth != config.DefaultDepth || got.Limit != config.DefaultLimit {
			t.Errorf("request = %+v", got)
		}
	})

	t.Run("service failure is an unknown error", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{err: fmt.Errorf("%w: scoring engine returned 503", trust.ErrService)}
		w := do(t, New(svc, WithLogger(quietLogger())).Handler(), http.MethodPost, "/graph/neighbors/eth", `["0xa"]`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		if d := decodeDetail(t, w); d != "Unknown error" {
			t.Errorf("detail = %q", d)
		}
		if strings.Contains(w.Body.String(), "503") {
			t.Error("cause leaked to the client")
		}
	})

	t.Run("service panic is an unknown error", func(t *testing.T) {
		t.Parallel()

		w := do(t, New(&fakeService{panics: true}, WithLogger(quietLogger())).Handler(), http.MethodPost, "/graph/neighbors/eth", `["0xa"]`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		if d := decodeDetail(t, w); d != "Unknown error" {
			t.Errorf("detail = %q", d)
		}
	})

	t.Run("eth_transfers path keeps its chain and bounds", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name      string
			target    string
			wantCode  int
			wantDepth int
		}{
			{"default k", "/graph/neighbors/eth_transfers", http.StatusOK, 2},
			{"k at the bound", "/graph/neighbors/eth_transfers?k=5", http.StatusOK, 5},
			{"k past the bound", "/graph/neighbors/eth_transfers?k=6", http.StatusUnprocessableEntity, 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				svc := &fakeService{}
				h := New(svc, WithLogger(quietLogger())).Handler()
				w := do(t, h, http.MethodPost, tt.target, `["0xa"]`)
				if w.Code != tt.wantCode {
					t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
				}
				if tt.wantCode != http.StatusOK {
					if d := decodeDetail(t, w); d != "k must be at most 5" {
						t.Errorf("detail = %q", d)
					}
					if len(svc.requests()) != 0 {
						t.Error("service called for a rejected request")
					}
					return
				}
				got := svc.requests()[0]
				if got.Chain != "eth" || got.Depth != tt.wantDepth || got.Limit != config.DefaultLimit {
					t.Errorf("request = %+v", got)
				}
			})
		}
	})

	t.Run("rejected request from the service is 422", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{err: fmt.Errorf("%w: %w", trust.ErrInvalidRequest, config.ErrUnsupportedChain)}
		w := do(t, New(svc, WithLogger(quietLogger())).Handler(), http.MethodPost, "/graph/neighbors/solana", `["0xa"]`)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", w.Code)
		}
		if d := decodeDetail(t, w); !strings.Contains(d, "unsupported chain") {
			t.Errorf("detail = %q", d)
		}
	})
}

// TestNeighborsValidation tests input rejection before the service is called.
func TestNeighborsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		body       string
		wantDetail string
	}{
		{"k above ten", "/graph/neighbors/eth?k=11", `["0xa"]`, "k must be at most 10"},
		{"k zero", "/graph/neighbors/eth?k=0", `["0xa"]`, "k must be at least 1"},
		{"k not a number", "/graph/neighbors/eth?k=deep", `["0xa"]`, "must be an integer"},
		{"limit above max", "/graph/neighbors/eth?limit=1001", `["0xa"]`, "limit must be at most 1000"},
		{"empty array", "/graph/neighbors/eth", `[]`, "body must be at least 1"},
		{"missing body", "/graph/neighbors/eth", ``, "JSON array"},
		{"object body", "/graph/neighbors/eth", `{"addresses":["0xa"]}`, "JSON array"},
		{"blank address", "/graph/neighbors/eth", `["0xa",""]`, "body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{}
			w := do(t, New(svc, WithLogger(quietLogger())).Handler(), http.MethodPost, tt.target, tt.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
			}
			if d := decodeDetail(t, w); !strings.Contains(d, tt.wantDetail) {
				t.Errorf("detail = %q, want %q", d, tt.wantDetail)
			}
			if len(svc.requests()) != 0 {
				t.Error("service must not be called for invalid input")
			}
		})
	}
}

// TestRequestID tests id propagation.
func TestRequestID(t *testing.T) {
	t.Parallel()

	h := New(&fakeService{}, WithLogger(quietLogger())).Handler()

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	req.Header.Set(requestIDHeader, "caller-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "caller-id" {
		t.Errorf("request id = %q, want caller-id", got)
	}

	a := do(t, h, http.MethodGet, "/_health", "").Header().Get(requestIDHeader)
	b := do(t, h, http.MethodGet, "/_health", "").Header().Get(requestIDHeader)
	if a == "" || a == b {
		t.Errorf("generated ids %q and %q must be unique", a, b)
	}
}

// TestMetricsRoute tests request metrics and exposition.
func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	h := New(&fakeService{}, WithLogger(quietLogger()), WithMetrics(m)).Handler()

	do(t, h, http.MethodPost, "/graph/neighbors/eth", `["0xa"]`)
	do(t, h, http.MethodGet, "/nowhere", "")

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/graph/neighbors/:blockchain", "POST", "200")); got != 1 {
		t.Errorf("neighbors counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(unmatchedRoute, "GET", "404")); got != 1 {
		t.Errorf("unmatched counter = %v, want 1", got)
	}

	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "trustcrawl_http_requests_total") {
		t.Errorf("metrics status = %d body = %.200s", w.Code, w.Body.String())
	}
}

// TestServeShutsDownGracefully tests Serve against a real listener.
func TestServeShutsDownGracefully(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(&fakeService{}, WithLogger(quietLogger()), WithShutdownTimeout(time.Second))

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/graph/neighbors/eth"
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(`["0xa"]`)) //nolint:noctx // test
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// TestRunRejectsBadAddress tests listen errors.
func TestRunRejectsBadAddress(t *testing.T) {
	t.Parallel()

	err := New(&fakeService{}, WithLogger(quietLogger())).Run(context.Background(), "256.0.0.1:http")
	if err == nil {
		t.Fatal("expected listen error")
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error kind: %v", err)
	}
}
