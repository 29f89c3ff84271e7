package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nao1215/trustcrawl/internal/config"
	"github.com/nao1215/trustcrawl/internal/model"
)

// startAPIs serves a fake neighbor API over adjacency and a fake scoring
// engine that scores index i with i+1, or answers status when non-zero.
func startAPIs(t *testing.T, adjacency map[string][]string, status int) (neighborURL, scoringURL string) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{chain}/v1/address/{addr}/neighbors", func(w http.ResponseWriter, r *http.Request) {
		type entry struct {
			NeighborInfo struct {
				Address string `json:"address"`
			} `json:"neighbor_info"`
			TransfersToNeighbor int64  `json:"transfers_to_neighbor"`
			FiatToNeighbor      string `json:"fiat_to_neighbor"`
		}
		out := struct {
			Neighbors []entry `json:"neighbors"`
		}{Neighbors: []entry{}}
		for _, to := range adjacency[r.PathValue("addr")] {
			var e entry
			e.NeighborInfo.Address = to
			e.TransfersToNeighbor = 1
			e.FiatToNeighbor = "250"
			out.Neighbors = append(out.Neighbors, e)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	nsrv := httptest.NewServer(mux)
	t.Cleanup(nsrv.Close)

	ssrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		var req struct {
			LocalTrust struct {
				Size int `json:"size"`
			} `json:"localTrust"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		entries := make([]model.IndexedScore, req.LocalTrust.Size)
		for i := range entries {
			entries[i] = model.IndexedScore{I: i, V: float64(i + 1)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
	}))
	t.Cleanup(ssrv.Close)

	return nsrv.URL, ssrv.URL
}

// testConfig returns a crawl configuration pointing at the fake APIs.
func testConfig(neighborURL, scoringURL string, seeds ...string) *config.Config {
	cfg := config.NewConfig()
	cfg.NeighborURL = neighborURL
	cfg.ScoringURL = scoringURL
	cfg.RateLimit = 0
	cfg.Seeds = seeds
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noEnv is a lookup that sees no environment.
func noEnv(string) (string, bool) { return "", false }
