// Package store persists submission records and archives generated wire
// documents in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"tradewire/internal/credential"
	"tradewire/internal/submit"
	"tradewire/internal/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS submission_records (
	id                 TEXT PRIMARY KEY,
	declaration_id     TEXT NOT NULL,
	channel            TEXT NOT NULL,
	status             TEXT NOT NULL,
	is_successful      INTEGER NOT NULL DEFAULT 0,
	external_reference TEXT NOT NULL DEFAULT '',
	request_data       TEXT NOT NULL DEFAULT '',
	response_data      TEXT NOT NULL DEFAULT '',
	error_message      TEXT NOT NULL DEFAULT '',
	retry_count        INTEGER NOT NULL DEFAULT 0,
	retryable          INTEGER NOT NULL DEFAULT 0,
	actor              TEXT NOT NULL DEFAULT '',
	started_at         TEXT NOT NULL,
	completed_at       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_records_declaration ON submission_records(declaration_id);

CREATE TABLE IF NOT EXISTS archive_files (
	filename   TEXT PRIMARY KEY,
	trader_id  TEXT NOT NULL,
	path       TEXT NOT NULL,
	line_count INTEGER NOT NULL,
	item_count INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
`

// Store is the SQLite-backed persistence layer.
type Store struct {
	db         *sql.DB
	archiveDir string
	logger     *zap.Logger
}

// Open opens (creating if needed) the database at dbPath and uses
// archiveDir for wire-document copies.
func Open(dbPath, archiveDir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, archiveDir: archiveDir, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecord inserts a new submission record.
func (s *Store) SaveRecord(ctx context.Context, r *submit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submission_records
		(id, declaration_id, channel, status, is_successful, external_reference,
		 request_data, response_data, error_message, retry_count, retryable,
		 actor, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DeclarationID, string(r.Channel), string(r.Status), boolInt(r.IsSuccessful),
		r.ExternalReference, r.RequestData, r.ResponseData, r.ErrorMessage,
		r.RetryCount, boolInt(r.Retryable), r.Actor,
		r.StartedAt.Format(time.RFC3339Nano), timeStr(r.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert record %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRecord writes the current state of an existing record.
func (s *Store) UpdateRecord(ctx context.Context, r *submit.Record) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE submission_records SET
			status = ?, is_successful = ?, external_reference = ?,
			request_data = ?, response_data = ?, error_message = ?,
			retry_count = ?, retryable = ?, completed_at = ?
		WHERE id = ?`,
		string(r.Status), boolInt(r.IsSuccessful), r.ExternalReference,
		r.RequestData, r.ResponseData, r.ErrorMessage,
		r.RetryCount, boolInt(r.Retryable), timeStr(r.CompletedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update record %s: %w", r.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update record %s: not found", r.ID)
	}
	return nil
}

// GetRecord loads one record by id.
func (s *Store) GetRecord(ctx context.Context, id string) (*submit.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, declaration_id, channel, status, is_successful, external_reference,
		       request_data, response_data, error_message, retry_count, retryable,
		       actor, started_at, completed_at
		FROM submission_records WHERE id = ?`, id)
	return scanRecord(row)
}

// ListRecords returns the attempt history for a declaration, newest
// first. An empty declarationID lists everything.
func (s *Store) ListRecords(ctx context.Context, declarationID string) ([]*submit.Record, error) {
	query := `
		SELECT id, declaration_id, channel, status, is_successful, external_reference,
		       request_data, response_data, error_message, retry_count, retryable,
		       actor, started_at, completed_at
		FROM submission_records`
	var args []interface{}
	if declarationID != "" {
		query += ` WHERE declaration_id = ?`
		args = append(args, declarationID)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*submit.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ArchiveDocument writes the document under
// {archive}/{trader}/{filename} and indexes it. Called before network
// delivery so a failed upload still leaves a recoverable copy.
func (s *Store) ArchiveDocument(ctx context.Context, doc *wire.Document) (string, error) {
	dir := filepath.Join(s.archiveDir, doc.TraderID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	path := filepath.Join(dir, doc.Filename)
	if err := os.WriteFile(path, []byte(doc.Content), 0644); err != nil {
		return "", fmt.Errorf("write archive copy: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO archive_files
		(filename, trader_id, path, line_count, item_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Filename, doc.TraderID, path, doc.LineCount, doc.ItemCount,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("index archive copy: %w", err)
	}

	s.logger.Debug("archived wire document",
		zap.String("filename", doc.Filename),
		zap.String("path", path))
	return path, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*submit.Record, error) {
	var r submit.Record
	var channel, status, startedAt, completedAt string
	var successful, retryable int
	err := row.Scan(&r.ID, &r.DeclarationID, &channel, &status, &successful,
		&r.ExternalReference, &r.RequestData, &r.ResponseData, &r.ErrorMessage,
		&r.RetryCount, &retryable, &r.Actor, &startedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	r.Channel = credential.Channel(channel)
	r.Status = submit.Status(status)
	r.IsSuccessful = successful != 0
	r.Retryable = retryable != 0
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		r.StartedAt = t
	}
	if completedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
			r.CompletedAt = t
		}
	}
	return &r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeStr(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
