package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maltedev/outlet-scraper/internal/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	run_id       TEXT PRIMARY KEY,
	target       TEXT NOT NULL,
	extractor    TEXT NOT NULL DEFAULT '',
	charset      TEXT NOT NULL DEFAULT '',
	record_count INTEGER NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	screenshot   BLOB
);
CREATE TABLE IF NOT EXISTS outlet_records (
	run_id           TEXT NOT NULL REFERENCES extraction_runs(run_id),
	position         INTEGER NOT NULL,
	price            TEXT NOT NULL,
	specifications   TEXT NOT NULL,
	os_office        TEXT NOT NULL,
	memory           TEXT NOT NULL,
	hdd              TEXT NOT NULL,
	video_controller TEXT NOT NULL,
	others           TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);`

// SQLiteSink stores runs and their records in a local SQLite database.
// Timestamps are kept as RFC3339Nano text.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(ctx context.Context, dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Save(ctx context.Context, c *Capture) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO extraction_runs (run_id, target, extractor, charset, record_count, started_at, finished_at, screenshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Run.ID, c.Run.Target, c.Run.Extractor, c.Run.Charset, len(c.Records),
		c.Run.StartedAt.UTC().Format(time.RFC3339Nano),
		c.Run.FinishedAt.UTC().Format(time.RFC3339Nano),
		c.Screenshot,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", c.Run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outlet_records (run_id, position, price, specifications, os_office, memory, hdd, video_controller, others)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range c.Records {
		args := append([]any{c.Run.ID, i}, r.Values()...)
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Records returns the stored records of a run in extraction order.
func (s *SQLiteSink) Records(ctx context.Context, runID string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT price, specifications, os_office, memory, hdd, video_controller, others
		FROM outlet_records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.Price, &r.Specifications, &r.OSOffice, &r.Memory, &r.HDD, &r.VideoController, &r.Others); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Run returns the stored metadata of a run.
func (s *SQLiteSink) Run(ctx context.Context, runID string) (*models.Run, error) {
	var (
		run               models.Run
		started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, target, extractor, charset, record_count, started_at, finished_at
		FROM extraction_runs WHERE run_id = ?`, runID).
		Scan(&run.ID, &run.Target, &run.Extractor, &run.Charset, &run.RecordCount, &started, &finished)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("invalid started_at for run %s: %w", runID, err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("invalid finished_at for run %s: %w", runID, err)
	}
	return &run, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
