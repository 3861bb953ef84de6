// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf-library/pkg/types"
)

// ExportFormat selects the output of ExportWriter and ExportFile.
type ExportFormat string

const (
	ExportJSON   ExportFormat = "json"
	ExportYAML   ExportFormat = "yaml"
	ExportSQLite ExportFormat = "sqlite"
)

// ExportWriter writes records as JSON or YAML to w.
func ExportWriter(records []*types.PdfRecord, format ExportFormat, w io.Writer) error {
	switch format {
	case ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case ExportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q cannot be streamed", format)
	}
}

// ExportFile writes records to path in the given format. SQLite exports
// replace any existing database at path.
func ExportFile(ctx context.Context, records []*types.PdfRecord, format ExportFormat, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	if format == ExportSQLite {
		return exportSQLite(ctx, records, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := ExportWriter(records, format, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var catalogSchema = []string{
	`CREATE TABLE pdf_records (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		doi TEXT,
		year TEXT,
		source_database TEXT,
		title TEXT,
		status TEXT NOT NULL,
		pdf_path TEXT,
		managed_file INTEGER NOT NULL,
		source TEXT,
		source_url TEXT,
		provider TEXT,
		content_type TEXT,
		size_bytes INTEGER,
		missing_reason TEXT,
		failure_count INTEGER NOT NULL,
		created_at TEXT,
		updated_at TEXT,
		last_checked_at TEXT
	)`,
	`CREATE TABLE record_refs (
		record_id TEXT NOT NULL REFERENCES pdf_records(id),
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (record_id, kind, value)
	)`,
	`CREATE INDEX idx_pdf_records_status ON pdf_records(status)`,
	`CREATE INDEX idx_pdf_records_doi ON pdf_records(doi)`,
	`CREATE INDEX idx_record_refs_value ON record_refs(kind, value)`,
}

// exportSQLite writes a queryable snapshot of the index: one row per record
// plus one row per project, step and entry reference.
func exportSQLite(ctx context.Context, records []*types.PdfRecord, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing previous export: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	for _, stmt := range catalogSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	insertRecord, err := tx.PrepareContext(ctx, `INSERT INTO pdf_records (
		id, key, doi, year, source_database, title, status, pdf_path, managed_file,
		source, source_url, provider, content_type, size_bytes, missing_reason,
		failure_count, created_at, updated_at, last_checked_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer insertRecord.Close()

	insertRef, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO record_refs (record_id, kind, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing reference insert: %w", err)
	}
	defer insertRef.Close()

	for _, r := range records {
		var size sql.NullInt64
		if r.SizeBytes != nil {
			size = sql.NullInt64{Int64: *r.SizeBytes, Valid: true}
		}
		if _, err := insertRecord.ExecContext(ctx,
			r.ID, r.Key, nullable(r.DOI), nullable(r.Year), nullable(r.Database),
			nullable(r.Title), string(r.Status), nullable(r.PDFPath), r.ManagedFile,
			nullable(string(r.Source)), nullable(r.SourceURL), nullable(r.Provider),
			nullable(r.ContentType), size, nullable(string(r.MissingReason)),
			r.FailureCount, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
			formatTime(r.LastCheckedAt),
		); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}

		refs := map[string][]string{
			"project": r.ProjectIDs,
			"step":    r.StepIDs,
			"entry":   r.EntryKeys,
		}
		for kind, values := range refs {
			for _, v := range values {
				if _, err := insertRef.ExecContext(ctx, r.ID, kind, v); err != nil {
					return fmt.Errorf("inserting %s reference for %s: %w", kind, r.ID, err)
				}
			}
		}
	}
	return tx.Commit()
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
