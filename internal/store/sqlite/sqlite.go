// Package sqlite stores collection documents as JSON text in a SQLite file.
// It is the single-binary alternative to the postgres store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// FindLimit caps the documents returned by FindEquals.
const FindLimit = 10

const schemaSQL = `
CREATE TABLE IF NOT EXISTS import_documents (
    id          TEXT PRIMARY KEY,
    collection  TEXT NOT NULL,
    data        TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS import_documents_collection_idx ON import_documents (collection, created_at);

CREATE TABLE IF NOT EXISTS import_audit (
    id           TEXT PRIMARY KEY,
    collection   TEXT NOT NULL,
    mode         TEXT NOT NULL,
    match_field  TEXT,
    records      INTEGER NOT NULL,
    created      INTEGER NOT NULL,
    updated      INTEGER NOT NULL,
    skipped      INTEGER NOT NULL,
    errors       INTEGER NOT NULL,
    ip_address   TEXT,
    user_agent   TEXT,
    duration_ms  INTEGER NOT NULL,
    created_at   TEXT NOT NULL
);
`

// Store implements core.Store over database/sql with the modernc driver.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a document with a new id.
func (s *Store) Create(ctx context.Context, collection string, data core.Document) (core.StoredDocument, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("create %s: encode document: %w", collection, err)
	}

	id := uuid.New().String()
	now := timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO import_documents (id, collection, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, collection, string(payload), now, now,
	); err != nil {
		return core.StoredDocument{}, fmt.Errorf("sqlite create: %w", err)
	}

	var stored core.Document
	if err := json.Unmarshal(payload, &stored); err != nil {
		return core.StoredDocument{}, fmt.Errorf("create %s: decode document: %w", collection, err)
	}
	return core.StoredDocument{ID: id, Data: stored}, nil
}

// FindEquals returns documents whose top-level field equals value.
// The special field "id" matches the document id.
func (s *Store) FindEquals(ctx context.Context, collection, field string, value any) (core.FindResult, error) {
	query, args, err := findQuery(collection, field, value)
	if err != nil {
		return core.FindResult{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.FindResult{}, fmt.Errorf("sqlite find: %w", err)
	}
	defer rows.Close()

	var result core.FindResult
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return core.FindResult{}, fmt.Errorf("sqlite find: %w", err)
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return core.FindResult{}, err
		}
		result.Docs = append(result.Docs, doc)
	}
	if err := rows.Err(); err != nil {
		return core.FindResult{}, fmt.Errorf("sqlite find: %w", err)
	}
	return result, nil
}

// findQuery builds the lookup for one field/value pair using the JSON1
// functions. Objects and arrays compare by their minified JSON text.
func findQuery(collection, field string, value any) (string, []any, error) {
	const base = `SELECT id, data FROM import_documents WHERE collection = ? AND `
	const tail = ` ORDER BY created_at, id LIMIT ?`

	if field == "id" {
		return base + `id = ?` + tail, []any{collection, fmt.Sprint(value), FindLimit}, nil
	}

	path := jsonPath(field)
	switch v := value.(type) {
	case nil:
		return base + `json_type(data, ?) = 'null'` + tail, []any{collection, path, FindLimit}, nil
	case bool:
		b := 0
		if v {
			b = 1
		}
		return base + `json_type(data, ?) IN ('true', 'false') AND json_extract(data, ?) = ?` + tail,
			[]any{collection, path, path, b, FindLimit}, nil
	case string, float64, int, int64:
		return base + `json_extract(data, ?) = ?` + tail, []any{collection, path, v, FindLimit}, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("find %s: encode value for %s: %w", collection, field, err)
		}
		return base + `json_extract(data, ?) = json(?)` + tail, []any{collection, path, string(encoded), FindLimit}, nil
	}
}

// UpdateOne merges data into the document's top-level fields.
func (s *Store) UpdateOne(ctx context.Context, collection, id string, data core.Document) (core.StoredDocument, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("sqlite update: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM import_documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StoredDocument{}, fmt.Errorf("update %s/%s: %w", collection, id, core.ErrNotFound)
	}
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("sqlite update: %w", err)
	}

	current, err := decodeDocument(id, raw)
	if err != nil {
		return core.StoredDocument{}, err
	}
	for k, v := range data {
		if k != "id" {
			current.Data[k] = v
		}
	}
	payload, err := json.Marshal(current.Data)
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("update %s/%s: encode document: %w", collection, id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE import_documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(payload), timestamp(), collection, id,
	); err != nil {
		return core.StoredDocument{}, fmt.Errorf("sqlite update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.StoredDocument{}, fmt.Errorf("sqlite update: %w", err)
	}
	return decodeDocument(id, string(payload))
}

// Touch bumps updated_at on the given documents.
func (s *Store) Touch(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)
	args = append(args, timestamp(), collection)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE import_documents SET updated_at = ? WHERE collection = ? AND id IN (`+placeholders+`)`,
		args...,
	); err != nil {
		return fmt.Errorf("sqlite touch: %w", err)
	}
	return nil
}

// RecordImport inserts an audit row for a finished import.
func (s *Store) RecordImport(ctx context.Context, e core.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_audit
		 (id, collection, mode, match_field, records, created, updated, skipped, errors,
		  ip_address, user_agent, duration_ms, created_at)
		 VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?)`,
		e.ID, e.Collection, string(e.Mode), e.MatchField, e.Records,
		e.Summary.Created, e.Summary.Updated, e.Summary.Skipped, e.Summary.Errors,
		e.IPAddress, e.UserAgent, e.Duration.Milliseconds(), formatTimestamp(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite record import: %w", err)
	}
	return nil
}

// AuditCount returns the number of recorded import runs for a collection.
func (s *Store) AuditCount(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM import_audit WHERE collection = ?`, collection,
	).Scan(&n)
	return n, err
}

func decodeDocument(id, raw string) (core.StoredDocument, error) {
	data := core.Document{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return core.StoredDocument{}, fmt.Errorf("decode document %s: %w", id, err)
		}
	}
	return core.StoredDocument{ID: id, Data: data}, nil
}

// jsonPath quotes a top-level key for the JSON1 path syntax.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func timestamp() string {
	return formatTimestamp(time.Now())
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
