package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/trustcrawl/internal/model"
)

// FileName is the archive file inside the database directory.
const FileName = "trustcrawl.db"

// ErrRunNotFound is returned when no run matches the lookup.
var ErrRunNotFound = errors.New("run not found")

// RunDB is the SQLite archive of finished trust crawls.
// It is safe for concurrent use.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (r *RunDB) Path() string {
	return r.dbPath
}

// Close closes the database connection.
func (r *RunDB) Close() error {
	return r.db.Close()
}

func (r *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL UNIQUE,
		chain TEXT NOT NULL,
		seeds TEXT NOT NULL,
		depth INTEGER NOT NULL,
		result_limit INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		scores INTEGER NOT NULL,
		addresses INTEGER NOT NULL,
		edges INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		report_json TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_chain ON crawl_runs(chain);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON crawl_runs(timestamp);

	CREATE TABLE IF NOT EXISTS run_edges (
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		weight REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edges_run ON run_edges(run_id);
	CREATE INDEX IF NOT EXISTS idx_edges_from ON run_edges(run_id, from_address);
	`

	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// Run statuses stored in crawl_runs.status.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// SaveRun archives a finished report and its edge list in one transaction.
// It returns the row id of the run.
func (r *RunDB) SaveRun(ctx context.Context, report *model.TrustReport) (int64, error) {
	if report.Error != nil && report.ErrorMessage == "" {
		report.ErrorMessage = report.Error.Error()
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	seedsJSON, err := json.Marshal(report.Seeds)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize seeds: %w", err)
	}

	status := StatusComplete
	if report.Failed() {
		status = StatusFailed
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (request_id, chain, seeds, depth, result_limit, status, error,
		scores, addresses, edges, duration_ms, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RequestID,
		report.Chain,
		string(seedsJSON),
		report.MaxDepth,
		report.MaxResults,
		status,
		sql.NullString{String: report.ErrorMessage, Valid: report.ErrorMessage != ""},
		len(report.Scores),
		report.Stats.Addresses,
		len(report.Edges),
		report.Stats.Duration.Milliseconds(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_edges (run_id, from_address, to_address, weight) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range report.Edges {
		if _, err := stmt.ExecContext(ctx, id, string(e.From), string(e.To), e.Weight); err != nil {
			return 0, fmt.Errorf("failed to save edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// RunMetadata summarizes one archived run without loading the report.
type RunMetadata struct {
	ID        int64
	RequestID string
	Chain     string
	Seeds     []model.Address
	Depth     int
	Limit     int
	Status    string
	Error     string
	Scores    int
	Addresses int
	Edges     int
	Duration  time.Duration
	Timestamp time.Time
}

// ListRuns returns run metadata, newest first. An empty chain lists every
// chain. A non-positive limit returns all runs.
func (r *RunDB) ListRuns(ctx context.Context, chain string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, request_id, chain, seeds, depth, result_limit, status, error,
		scores, addresses, edges, duration_ms, timestamp
	FROM crawl_runs
	WHERE (? = '' OR chain = ?)
	ORDER BY timestamp DESC, id DESC
	`
	args := []any{chain, chain}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta       RunMetadata
			seedsJSON  string
			errMsg     sql.NullString
			durationMS int64
			timestamp  string
		)
		if err := rows.Scan(&meta.ID, &meta.RequestID, &meta.Chain, &seedsJSON, &meta.Depth, &meta.Limit,
			&meta.Status, &errMsg, &meta.Scores, &meta.Addresses, &meta.Edges, &durationMS, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(seedsJSON), &meta.Seeds); err != nil {
			meta.Seeds = nil
		}
		meta.Error = errMsg.String
		meta.Duration = time.Duration(durationMS) * time.Millisecond
		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun loads an archived report by row id, including its edge list.
func (r *RunDB) GetRun(ctx context.Context, id int64) (*model.TrustReport, error) {
	var reportJSON string
	err := r.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id).Scan(&reportJSON)
	return r.loadRun(ctx, id, reportJSON, err)
}

// GetRunByRequestID loads an archived report by request id.
func (r *RunDB) GetRunByRequestID(ctx context.Context, requestID string) (*model.TrustReport, error) {
	var (
		id         int64
		reportJSON string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, report_json FROM crawl_runs WHERE request_id = ?`, requestID).
		Scan(&id, &reportJSON)
	return r.loadRun(ctx, id, reportJSON, err)
}

func (r *RunDB) loadRun(ctx context.Context, id int64, reportJSON string, err error) (*model.TrustReport, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.TrustReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	edges, err := r.Edges(ctx, id, "")
	if err != nil {
		return nil, err
	}
	report.Edges = edges
	return &report, nil
}

// Edges returns the archived edges of a run in insertion order. A non-empty
// from restricts the result to edges leaving that address.
func (r *RunDB) Edges(ctx context.Context, runID int64, from model.Address) ([]model.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT from_address, to_address, weight FROM run_edges
	WHERE run_id = ? AND (? = '' OR from_address = ?)
	ORDER BY rowid
	`, runID, string(from), string(from))
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		var fromAddr, toAddr string
		if err := rows.Scan(&fromAddr, &toAddr, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.From = model.Address(fromAddr)
		e.To = model.Address(toAddr)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// DeleteRun removes a run and its edges.
func (r *RunDB) DeleteRun(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_edges WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
