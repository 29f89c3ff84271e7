package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/trustcrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *RunDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReport(requestID, chain string) *model.TrustReport {
	r := model.NewTrustReport(chain, []model.Address{"0xa", "0xb"}, 2, 10)
	r.RequestID = requestID
	r.Query = model.Query{FromTS: 1672531200, ToTS: 1700000000}
	r.Edges = []model.Edge{
		{From: "0xa", To: "0xc", Weight: 5},
		{From: "0xb", To: "0xc", Weight: 3},
		{From: "0xc", To: "0xd", Weight: 1.5},
	}
	r.Stats = model.CrawlStats{Fetches: 3, Edges: 3, Addresses: 4, Discovered: 2, Duration: 2 * time.Second}
	r.Scores = []model.ScoredAddress{{Address: "0xc", Score: 0.7}, {Address: "0xd", Score: 0.3}}
	r.PerformedSteps = []string{"crawl", "matrix", "score"}
	return r
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := db.SaveRun(context.Background(), sampleReport("r1", "eth")); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), "", 0)
		if err != nil || len(runs) != 1 {
			t.Fatalf("runs = %v, err = %v", runs, err)
		}
	})
}

// TestSaveAndGetRun tests archiving and loading a run.
func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := sampleReport("req-42", "eth")
	id, err := db.SaveRun(ctx, report)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.RequestID != "req-42" || got.Chain != "eth" || got.MaxDepth != 2 {
		t.Errorf("unexpected report: %+v", got)
	}
	if len(got.Scores) != 2 || got.Scores[0].Address != "0xc" {
		t.Errorf("scores = %+v", got.Scores)
	}
	if len(got.Edges) != 3 || got.Edges[2] != report.Edges[2] {
		t.Errorf("edges = %+v", got.Edges)
	}
	if got.Query.ToTS != 1700000000 {
		t.Errorf("query = %+v", got.Query)
	}

	byReq, err := db.GetRunByRequestID(ctx, "req-42")
	if err != nil || byReq.RequestID != "req-42" || len(byReq.Edges) != 3 {
		t.Errorf("GetRunByRequestID = %+v, %v", byReq, err)
	}

	t.Run("missing run", func(t *testing.T) {
		t.Parallel()

		if _, err := db.GetRun(ctx, 9999); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if _, err := db.GetRunByRequestID(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("duplicate request id is rejected", func(t *testing.T) {
		t.Parallel()

		if _, err := db.SaveRun(ctx, sampleReport("req-42", "eth")); err == nil {
			t.Error("expected unique constraint error")
		}
	})
}

// TestListRuns tests run metadata listing.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	failed := sampleReport("r2", "base")
	failed.Scores = nil
	failed.Error = errors.New("scoring engine unavailable")

	for _, r := range []*model.TrustReport{sampleReport("r1", "eth"), failed, sampleReport("r3", "eth")} {
		if _, err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun(%s): %v", r.RequestID, err)
		}
	}

	tests := []struct {
		name    string
		chain   string
		limit   int
		wantIDs []string
	}{
		{"all chains", "", 0, []string{"r3", "r2", "r1"}},
		{"eth only", "eth", 0, []string{"r3", "r1"}},
		{"limited", "", 1, []string{"r3"}},
		{"unknown chain", "polygon", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runs, err := db.ListRuns(ctx, tt.chain, tt.limit)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(runs) != len(tt.wantIDs) {
				t.Fatalf("runs = %+v, want %v", runs, tt.wantIDs)
			}
			for i, want := range tt.wantIDs {
				if runs[i].RequestID != want {
					t.Errorf("runs[%d] = %s, want %s", i, runs[i].RequestID, want)
				}
			}
		})
	}

	t.Run("metadata of a failed run", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "base", 0)
		if err != nil || len(runs) != 1 {
			t.Fatalf("runs = %v, err = %v", runs, err)
		}
		m := runs[0]
		if m.Status != StatusFailed || m.Error != "scoring engine unavailable" {
			t.Errorf("status = %q, error = %q", m.Status, m.Error)
		}
		if len(m.Seeds) != 2 || m.Edges != 3 || m.Scores != 0 || m.Duration != 2*time.Second {
			t.Errorf("unexpected metadata: %+v", m)
		}
		if m.Timestamp.IsZero() {
			t.Error("timestamp was not parsed")
		}
	})
}

// TestEdgesAndDelete tests edge filtering and run removal.
func TestEdgesAndDelete(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveRun(ctx, sampleReport("r1", "eth"))
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	out, err := db.Edges(ctx, id, "0xc")
	if err != nil {
		t.Fatalf("Edges: %v", err)
	}
	if len(out) != 1 || out[0].To != "0xd" {
		t.Errorf("edges from 0xc = %+v", out)
	}

	if err := db.DeleteRun(ctx, id); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := db.GetRun(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after delete, got %v", err)
	}
	all, err := db.Edges(ctx, id, "")
	if err != nil || len(all) != 0 {
		t.Errorf("edges after delete = %v, %v", all, err)
	}
	if err := db.DeleteRun(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second delete: expected ErrRunNotFound, got %v", err)
	}
}

// TestParseTimestamp tests the timestamp parsing helper.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{"2024-01-15 10:30:00", false},
		{"2024-01-15T10:30:00Z", false},
		{"2024-01-15T10:30:00+09:00", false},
		{"not a time", true},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.input); got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
		}
	}
}
