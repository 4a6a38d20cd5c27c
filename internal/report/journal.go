package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/scan-router/internal/domain"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source_root TEXT NOT NULL,
	output_root TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	pages       INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS pages (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	source    TEXT NOT NULL,
	document  TEXT NOT NULL,
	page      INTEGER NOT NULL,
	decoded   TEXT NOT NULL,
	strategy  TEXT NOT NULL,
	folders   TEXT NOT NULL,
	attempts  INTEGER NOT NULL,
	PRIMARY KEY (run_id, source, page)
);
`

// Entry is one journaled page.
type Entry struct {
	Source   string // Source path relative to the source root
	Row      domain.LogRow
	Strategy string // Winning cascade strategy, empty when nothing decoded
	Folders  string // Bins the page was written to, comma separated
	Attempts int
}

// RunInfo summarises one journaled run.
type RunInfo struct {
	ID         string
	SourceRoot string
	OutputRoot string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Pages      int64
}

// Journal records every processed page of every run in SQLite.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (creating if needed) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.IOError("open journal", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, domain.IOError("create journal schema", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun registers a new run.
func (j *Journal) StartRun(ctx context.Context, runID, sourceRoot, outputRoot string, started time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_root, output_root, started_at) VALUES (?, ?, ?, ?)`,
		runID, sourceRoot, outputRoot, started.UTC())
	if err != nil {
		return domain.WriteError(fmt.Sprintf("journal run %s", runID), err)
	}
	return nil
}

// RecordPages stores the entries of one document in a single transaction.
func (j *Journal) RecordPages(ctx context.Context, runID string, entries []Entry) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WriteError("begin journal transaction", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO pages (run_id, source, document, page, decoded, strategy, folders, attempts) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return domain.WriteError("prepare journal insert", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, e.Source, e.Row.Document, e.Row.Page, e.Row.Decoded, e.Strategy, e.Folders, e.Attempts); err != nil {
			_ = tx.Rollback()
			return domain.WriteError(fmt.Sprintf("journal page %s/%d", e.Source, e.Row.Page), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.WriteError("commit journal transaction", err)
	}
	return nil
}

// FinishRun stamps the run with its end time and page count.
func (j *Journal) FinishRun(ctx context.Context, runID string, pages int64, finished time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, pages = ? WHERE id = ?`,
		finished.UTC(), pages, runID)
	if err != nil {
		return domain.WriteError(fmt.Sprintf("finish journal run %s", runID), err)
	}
	return nil
}

// Runs lists journaled runs, most recent first.
func (j *Journal) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, source_root, output_root, started_at, finished_at, pages FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, domain.IOError("query runs", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.SourceRoot, &r.OutputRoot, &r.StartedAt, &r.FinishedAt, &r.Pages); err != nil {
			return nil, domain.IOError("scan run", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Rows returns the log rows of a run ordered by document, source and page.
func (j *Journal) Rows(ctx context.Context, runID string) ([]domain.LogRow, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT document, page, decoded FROM pages WHERE run_id = ? ORDER BY document, source, page`, runID)
	if err != nil {
		return nil, domain.IOError("query pages", err)
	}
	defer rows.Close()

	var out []domain.LogRow
	for rows.Next() {
		var r domain.LogRow
		if err := rows.Scan(&r.Document, &r.Page, &r.Decoded); err != nil {
			return nil, domain.IOError("scan page", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
