// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history journals conversions in a SQLite database so the CLI can
// list past runs and export them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/label-converter/pkg/types"
)

// defaultLimit applies when Recent is called with a non-positive limit.
const defaultLimit = 20

// Store manages the conversion journal. Timestamps are stored as Unix
// nanoseconds so ordering and pruning compare numbers.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the journal at cfg.Path, creating the parent
// directory and the schema when missing.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			source TEXT,
			input_sha256 TEXT,
			pages_in INTEGER,
			pages_out INTEGER,
			fit TEXT,
			scale REAL,
			layout TEXT,
			status TEXT NOT NULL,
			error TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends rec to the journal. An empty ID or zero CreatedAt is
// filled in; the stored record is returned.
func (s *Store) Record(ctx context.Context, rec types.ConversionRecord) (types.ConversionRecord, error) {
	if rec.ID == "" {
		rec.ID = xid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, created_at, source, input_sha256, pages_in, pages_out, fit, scale, layout, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixNano(), rec.Source, rec.InputSHA256,
		rec.PagesIn, rec.PagesOut, string(rec.Fit), rec.Scale, string(rec.Layout),
		string(rec.Status), rec.Error, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return rec, fmt.Errorf("inserting conversion %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.ConversionRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, source, input_sha256, pages_in, pages_out, fit, scale, layout, status, error, duration_ms
		FROM conversions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}
	defer rows.Close()

	var records []types.ConversionRecord
	for rows.Next() {
		var (
			rec                    types.ConversionRecord
			created                int64
			fit, layout, status    string
			source, digest, errMsg sql.NullString
			durationMS             int64
		)
		if err := rows.Scan(&rec.ID, &created, &source, &digest, &rec.PagesIn, &rec.PagesOut,
			&fit, &rec.Scale, &layout, &status, &errMsg, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning conversion: %w", err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		rec.Source = source.String
		rec.InputSHA256 = digest.String
		rec.Error = errMsg.String
		rec.Fit = types.FitMode(fit)
		rec.Layout = types.Layout(layout)
		rec.Status = types.ConversionStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary counts journal records by status.
type Summary struct {
	Converted int `json:"converted" yaml:"converted"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	PagesIn   int `json:"pages_in" yaml:"pages_in"`
	PagesOut  int `json:"pages_out" yaml:"pages_out"`
}

// Total returns the number of journal records.
func (s Summary) Total() int {
	return s.Converted + s.Failed + s.Skipped
}

// Summarize aggregates the whole journal.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, count(*), coalesce(sum(pages_in), 0), coalesce(sum(pages_out), 0)
		FROM conversions GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing conversions: %w", err)
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var (
			status       string
			n, pIn, pOut int
		)
		if err := rows.Scan(&status, &n, &pIn, &pOut); err != nil {
			return Summary{}, fmt.Errorf("scanning summary: %w", err)
		}
		switch types.ConversionStatus(status) {
		case types.ConversionDone:
			sum.Converted += n
		case types.ConversionFailed:
			sum.Failed += n
		case types.ConversionSkipped:
			sum.Skipped += n
		}
		sum.PagesIn += pIn
		sum.PagesOut += pOut
	}
	return sum, rows.Err()
}

// Prune deletes records created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversions WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning conversions: %w", err)
	}
	return res.RowsAffected()
}

// ExportYAML writes up to limit recent records to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, limit int) error {
	records, err := s.Recent(ctx, limit)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes up to limit recent records to w as a JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, limit int) error {
	records, err := s.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if records == nil {
		records = []types.ConversionRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
