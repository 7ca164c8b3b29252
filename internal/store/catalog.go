package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// RunRecord is one stage outcome for one entity, recorded for observability.
type RunRecord struct {
	ID         int64
	Stage      string
	CIK        string
	Ticker     string
	Records    int
	Sources    string // semicolon-joined source tags
	Note       string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Catalog is the SQLite-backed run ledger. Every stage records what it did
// per entity; the status command reads it back.
type Catalog struct {
	db *sql.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	stage       TEXT NOT NULL,
	cik         TEXT NOT NULL,
	ticker      TEXT NOT NULL,
	records     INTEGER NOT NULL,
	sources     TEXT NOT NULL DEFAULT '',
	note        TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage, finished_at);
`

// OpenCatalog opens (or creates) the run catalog at dbPath.
func OpenCatalog(dbPath string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RecordRun inserts one stage outcome.
func (c *Catalog) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (stage, cik, ticker, records, sources, note, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Stage, r.CIK, r.Ticker, r.Records, r.Sources, r.Note,
		r.StartedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// LatestRuns returns the most recent run records, newest first.
func (c *Catalog) LatestRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, stage, cik, ticker, records, sources, note, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Stage, &r.CIK, &r.Ticker, &r.Records, &r.Sources, &r.Note, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
