package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	document_id     TEXT    NOT NULL,
	version         INTEGER NOT NULL,
	source_id       TEXT    NOT NULL,
	endpoint        TEXT    NOT NULL,
	fingerprint     TEXT    NOT NULL,
	title           TEXT    NOT NULL DEFAULT '',
	text            TEXT    NOT NULL,
	jurisdiction    TEXT    NOT NULL DEFAULT '',
	regulation_type TEXT    NOT NULL DEFAULT '',
	region          TEXT    NOT NULL DEFAULT '',
	tags            TEXT    NOT NULL DEFAULT '',
	ocr_used        INTEGER NOT NULL DEFAULT 0,
	warnings        TEXT    NOT NULL DEFAULT '',
	fetched_at      TEXT    NOT NULL,
	PRIMARY KEY (document_id, version)
);
CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_id);

CREATE TABLE IF NOT EXISTS fetch_log (
	source_id  TEXT NOT NULL PRIMARY KEY,
	fetched_at TEXT NOT NULL
);
`

// SQLite persists documents as an append-only version log. Versions are
// never updated or deleted here; retention is an operator concern.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path. WAL mode
// and a busy timeout keep concurrent pipeline writers from tripping over
// each other.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) LastFingerprint(ctx context.Context, documentID string) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM documents WHERE document_id = ? ORDER BY version DESC LIMIT 1`,
		documentID).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query fingerprint: %w", err)
	}
	return fp, nil
}

func (s *SQLite) LastVersion(ctx context.Context, documentID string) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM documents WHERE document_id = ?`, documentID).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return int(v.Int64), nil
}

func (s *SQLite) WriteDocument(ctx context.Context, doc *normalize.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM documents WHERE document_id = ?`, doc.DocumentID).Scan(&last); err != nil {
		return fmt.Errorf("query version: %w", err)
	}
	if doc.Version != int(last.Int64)+1 {
		return fmt.Errorf("document %s: version %d does not follow %d", doc.DocumentID, doc.Version, last.Int64)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (document_id, version, source_id, endpoint, fingerprint,
			title, text, jurisdiction, regulation_type, region, tags, ocr_used, warnings, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.DocumentID, doc.Version, doc.SourceID, doc.Endpoint, doc.Fingerprint,
		doc.Title, doc.Text, doc.Jurisdiction, doc.RegulationType, doc.Region,
		strings.Join(doc.Tags, ","), boolInt(doc.OCRUsed), strings.Join(doc.Warnings, "\n"),
		doc.FetchedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) LastFetchTime(ctx context.Context, sourceID string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM fetch_log WHERE source_id = ?`, sourceID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query fetch log: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse fetch time %q: %w", raw, err)
	}
	return t, true, nil
}

func (s *SQLite) RecordFetch(ctx context.Context, sourceID string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_log (source_id, fetched_at) VALUES (?, ?)
		ON CONFLICT(source_id) DO UPDATE SET fetched_at = excluded.fetched_at
		WHERE excluded.fetched_at > fetch_log.fetched_at`,
		sourceID, t.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
