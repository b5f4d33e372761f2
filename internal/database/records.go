package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maltedev/outlet-scraper/internal/models"
	"github.com/maltedev/outlet-scraper/internal/storage"
)

const recordsTable = "outlet_records"

const schema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	run_id       UUID PRIMARY KEY,
	target       TEXT NOT NULL,
	extractor    TEXT NOT NULL DEFAULT '',
	charset      TEXT NOT NULL DEFAULT '',
	record_count INTEGER NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS outlet_records (
	run_id           UUID NOT NULL REFERENCES extraction_runs(run_id) ON DELETE CASCADE,
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

// txConn is the part of pgx.Tx used to write a capture.
type txConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// RecordRepository stores runs and their records in postgres.
type RecordRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRecordRepository(db *DB, logger *slog.Logger) *RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordRepository{
		db:     db,
		logger: logger.With("component", "record_repository"),
	}
}

// EnsureSchema creates the run and record tables if they are missing.
func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *RecordRepository) Save(ctx context.Context, c *storage.Capture) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		n, err := writeCapture(ctx, tx, c)
		if err != nil {
			return err
		}
		r.logger.Info("records stored", "run_id", c.Run.ID, "count", n)
		return nil
	})
}

// Records returns the stored records of a run in extraction order.
func (r *RecordRepository) Records(ctx context.Context, runID string) ([]models.Record, error) {
	rows, err := r.db.Query(ctx, `
		SELECT price, specifications, os_office, memory, hdd, video_controller, others
		FROM outlet_records
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.Price, &rec.Specifications, &rec.OSOffice, &rec.Memory,
			&rec.HDD, &rec.VideoController, &rec.Others); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *RecordRepository) Close() error {
	r.db.Close()
	return nil
}

func writeCapture(ctx context.Context, tx txConn, c *storage.Capture) (int64, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO extraction_runs (run_id, target, extractor, charset, record_count, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.Run.ID, c.Run.Target, c.Run.Extractor, c.Run.Charset, len(c.Records),
		c.Run.StartedAt, c.Run.FinishedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run %s: %w", c.Run.ID, err)
	}

	if len(c.Records) == 0 {
		return 0, nil
	}

	columns := append([]string{"run_id", "position"}, models.RecordColumns...)
	src := pgx.CopyFromSlice(len(c.Records), func(i int) ([]any, error) {
		return append([]any{c.Run.ID, i}, c.Records[i].Values()...), nil
	})

	n, err := tx.CopyFrom(ctx, pgx.Identifier{recordsTable}, columns, src)
	if err != nil {
		return 0, fmt.Errorf("failed to copy records: %w", err)
	}
	return n, nil
}
