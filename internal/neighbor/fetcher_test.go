package neighbor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/nao1215/trustcrawl/internal/model"
)

// fakeLookuper replays canned responses in call order.
type fakeLookuper struct {
	mu        sync.Mutex
	responses []*Response
	errs      []error
	calls     []url.Values
}

func (f *fakeLookuper) Lookup(_ context.Context, _ string, _ string, params url.Values) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	f.calls = append(f.calls, params)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return &Response{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func neighbor(addr string, transfers int64, fiat *string) Neighbor {
	n := Neighbor{
		NeighborInfo:        NeighborInfo{Address: addr},
		TransfersToNeighbor: transfers,
	}
	if fiat != nil {
		n.FiatToNeighbor = NewAmount(*fiat)
	}
	return n
}

func strPtr(s string) *string { return &s }

func traversal() model.TraversalContext {
	return model.TraversalContext{
		MaxDepth:   2,
		MaxResults: 10,
		Chain:      "eth",
		Query:      model.Query{FromTS: 100, ToTS: 200},
	}
}

// TestFetcherFetch tests the lookup policy of a single address.
func TestFetcherFetch(t *testing.T) {
	t.Parallel()

	t.Run("summary lookup yields weighted candidates", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{{
			Neighbors: []Neighbor{
				neighbor("0xC", 3, strPtr("1,234.5")),
				neighbor("0xD", 1, nil),
			},
		}}}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if res.Failed() {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if len(res.Candidates) != 2 {
			t.Fatalf("candidates = %d, want 2", len(res.Candidates))
		}
		first := res.Candidates[0]
		if first.Edge.From != "0xa" || first.Edge.To != "0xc" || first.Edge.Weight != 1234.5 {
			t.Errorf("first edge = %+v", first.Edge)
		}
		if first.Neighbor != "0xc" {
			t.Errorf("neighbor = %q, want 0xc", first.Neighbor)
		}
		if res.Candidates[1].Edge.Weight != DefaultTransferValue {
			t.Errorf("default weight = %v, want %v", res.Candidates[1].Edge.Weight, DefaultTransferValue)
		}

		if len(lk.calls) != 1 {
			t.Fatalf("calls = %d, want 1", len(lk.calls))
		}
		q := lk.calls[0]
		if q.Get("details") != "summary" || q.Get("from_ts") != "100" || q.Get("to_ts") != "200" || q.Get("block_cp") != "native" {
			t.Errorf("summary query = %v", q)
		}
	})

	t.Run("zero transfers are skipped", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{{
			Neighbors: []Neighbor{
				neighbor("0xC", 1, strPtr("5")),
				neighbor("0xD", 0, strPtr("5")),
			},
		}}}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xb", traversal())
		if len(res.Candidates) != 1 || res.Candidates[0].Neighbor != "0xc" {
			t.Errorf("candidates = %+v, want only 0xc", res.Candidates)
		}
		if res.ZeroTransfers != 1 {
			t.Errorf("ZeroTransfers = %d, want 1", res.ZeroTransfers)
		}
	})

	t.Run("blocklisted neighbors are skipped", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{{
			Neighbors: []Neighbor{
				neighbor("0xC", 1, nil),
				neighbor("0xBAD", 1, nil),
			},
		}}}
		f := NewFetcher(lk, WithLogger(discardLogger()))
		tc := traversal()
		tc.Blocklist = model.NewStaticSet("0xbad")

		res := f.Fetch(context.Background(), "0xa", tc)
		if len(res.Candidates) != 1 || res.Candidates[0].Neighbor != "0xc" {
			t.Errorf("candidates = %+v, want only 0xc", res.Candidates)
		}
		if res.Blocked != 1 {
			t.Errorf("Blocked = %d, want 1", res.Blocked)
		}
	})

	t.Run("neighbors without address are skipped", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{{
			Neighbors: []Neighbor{neighbor("  ", 1, nil)},
		}}}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if res.Failed() || len(res.Candidates) != 0 {
			t.Errorf("res = %+v, want no candidates and no error", res)
		}
	})

	t.Run("unparseable value falls back to configured default", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{{
			Neighbors: []Neighbor{neighbor("0xC", 1, strPtr("n/a"))},
		}}}
		f := NewFetcher(lk, WithLogger(discardLogger()), WithDefaultWeight(2.5))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if len(res.Candidates) != 1 || res.Candidates[0].Edge.Weight != 2.5 {
			t.Errorf("candidates = %+v, want weight 2.5", res.Candidates)
		}
	})

	t.Run("non-finite value falls back to configured default", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{{
			Neighbors: []Neighbor{
				neighbor("0xC", 1, strPtr("NaN")),
				neighbor("0xD", 1, strPtr("Infinity")),
				neighbor("0xE", 1, strPtr("-inf")),
			},
		}}}
		f := NewFetcher(lk, WithLogger(discardLogger()), WithDefaultWeight(2.5))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if len(res.Candidates) != 3 {
			t.Fatalf("candidates = %+v, want 3", res.Candidates)
		}
		for _, c := range res.Candidates {
			if c.Edge.Weight != 2.5 {
				t.Errorf("%s weight = %v, want 2.5", c.Neighbor, c.Edge.Weight)
			}
		}
	})

	t.Run("large account retry succeeds", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{
			{Error: &APIError{Details: "large accounts are not supported with summary"}},
			{Neighbors: []Neighbor{neighbor("0xC", 2, strPtr("10"))}},
		}}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if res.Failed() {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if !res.Retried {
			t.Error("Retried should be true")
		}
		if len(res.Candidates) != 1 {
			t.Errorf("candidates = %d, want 1", len(res.Candidates))
		}
		if len(lk.calls) != 2 {
			t.Fatalf("calls = %d, want 2", len(lk.calls))
		}
		retry := lk.calls[1]
		if retry.Get("details") != "partial" || retry.Get("from_ts") != "" || retry.Get("block_cp") != "native" {
			t.Errorf("retry query = %v", retry)
		}
	})

	t.Run("large account retry still large fails", func(t *testing.T) {
		t.Parallel()

		large := &Response{Error: &APIError{Details: "large accounts are not supported"}}
		lk := &fakeLookuper{responses: []*Response{large, large}}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if !errors.Is(res.Err, ErrLargeAccount) {
			t.Errorf("Err = %v, want ErrLargeAccount", res.Err)
		}
		if len(res.Candidates) != 0 {
			t.Errorf("candidates = %d, want 0", len(res.Candidates))
		}
		if len(lk.calls) != 2 {
			t.Errorf("calls = %d, want exactly 2", len(lk.calls))
		}
	})

	t.Run("custom large account prefix", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{
			{Error: &APIError{Details: "too many transfers"}},
			{Neighbors: []Neighbor{neighbor("0xC", 1, nil)}},
		}}
		f := NewFetcher(lk, WithLogger(discardLogger()), WithLargeAccountPrefix("too many"))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if res.Failed() || !res.Retried {
			t.Errorf("res = %+v, want successful retry", res)
		}
	})

	t.Run("other embedded error fails without retry", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{responses: []*Response{
			{Error: &APIError{Details: "address not found"}},
		}}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if !errors.Is(res.Err, ErrUpstream) {
			t.Errorf("Err = %v, want ErrUpstream", res.Err)
		}
		if len(lk.calls) != 1 {
			t.Errorf("calls = %d, want 1", len(lk.calls))
		}
	})

	t.Run("transport error yields no candidates", func(t *testing.T) {
		t.Parallel()

		lk := &fakeLookuper{errs: []error{context.DeadlineExceeded}}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if !errors.Is(res.Err, context.DeadlineExceeded) {
			t.Errorf("Err = %v, want deadline exceeded", res.Err)
		}
		if len(res.Candidates) != 0 {
			t.Errorf("candidates = %d, want 0", len(res.Candidates))
		}
	})

	t.Run("retry transport error yields no candidates", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("connection reset")
		lk := &fakeLookuper{
			responses: []*Response{{Error: &APIError{Details: "large accounts"}}},
			errs:      []error{nil, sentinel},
		}
		f := NewFetcher(lk, WithLogger(discardLogger()))

		res := f.Fetch(context.Background(), "0xa", traversal())
		if !errors.Is(res.Err, sentinel) {
			t.Errorf("Err = %v, want connection reset", res.Err)
		}
	})
}
