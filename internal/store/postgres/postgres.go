// Package postgres stores collection documents as JSONB rows in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// FindLimit caps the documents returned by FindEquals. The reconciler only
// uses the first match.
const FindLimit = 10

const schemaSQL = `
CREATE TABLE IF NOT EXISTS import_documents (
    id          uuid PRIMARY KEY,
    collection  text        NOT NULL,
    data        jsonb       NOT NULL DEFAULT '{}'::jsonb,
    created_at  timestamptz NOT NULL DEFAULT now(),
    updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS import_documents_collection_idx ON import_documents (collection, created_at);
CREATE INDEX IF NOT EXISTS import_documents_data_idx ON import_documents USING gin (data jsonb_path_ops);

CREATE TABLE IF NOT EXISTS import_audit (
    id           uuid PRIMARY KEY,
    collection   text        NOT NULL,
    mode         text        NOT NULL,
    match_field  text,
    records      integer     NOT NULL,
    created      integer     NOT NULL,
    updated      integer     NOT NULL,
    skipped      integer     NOT NULL,
    errors       integer     NOT NULL,
    ip_address   text,
    user_agent   text,
    duration_ms  bigint      NOT NULL,
    created_at   timestamptz NOT NULL DEFAULT now()
);
`

// Store implements core.Store over a pgx connection pool.
type Store struct {
	db DBTX
}

// New creates a Store. db is usually a *pgxpool.Pool.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects a pool with the given settings and verifies the connection.
func Open(ctx context.Context, url string, maxConns, minConns int32, configure func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	if configure != nil {
		configure(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables used by the store if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Create inserts a document with a new id.
func (s *Store) Create(ctx context.Context, collection string, data core.Document) (core.StoredDocument, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("create %s: encode document: %w", collection, err)
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO import_documents (id, collection, data)
		 VALUES ($1::uuid, $2, $3::jsonb)
		 RETURNING id::text, data`,
		uuid.New().String(), collection, string(payload),
	)
	doc, err := scanDocument(row)
	if err != nil {
		return core.StoredDocument{}, wrapPgError("create", err)
	}
	return doc, nil
}

// FindEquals returns documents whose top-level field equals value.
// The special field "id" matches the document id.
func (s *Store) FindEquals(ctx context.Context, collection, field string, value any) (core.FindResult, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if field == "id" {
		id, ok := idString(value)
		if !ok {
			return core.FindResult{}, nil
		}
		rows, err = s.db.Query(ctx,
			`SELECT id::text, data FROM import_documents
			 WHERE collection = $1 AND id = $2::uuid
			 LIMIT 1`,
			collection, id,
		)
	} else {
		encoded, encErr := json.Marshal(value)
		if encErr != nil {
			return core.FindResult{}, fmt.Errorf("find %s: encode value for %s: %w", collection, field, encErr)
		}
		rows, err = s.db.Query(ctx,
			`SELECT id::text, data FROM import_documents
			 WHERE collection = $1 AND data -> $2 = $3::jsonb
			 ORDER BY created_at, id
			 LIMIT $4`,
			collection, field, string(encoded), FindLimit,
		)
	}
	if err != nil {
		return core.FindResult{}, wrapPgError("find", err)
	}
	defer rows.Close()

	var result core.FindResult
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return core.FindResult{}, wrapPgError("find", err)
		}
		result.Docs = append(result.Docs, doc)
	}
	if err := rows.Err(); err != nil {
		return core.FindResult{}, wrapPgError("find", err)
	}
	return result, nil
}

// UpdateOne merges data into the document's top-level fields.
func (s *Store) UpdateOne(ctx context.Context, collection, id string, data core.Document) (core.StoredDocument, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.StoredDocument{}, fmt.Errorf("update %s/%s: %w", collection, id, core.ErrNotFound)
	}

	patch := make(core.Document, len(data))
	for k, v := range data {
		if k != "id" {
			patch[k] = v
		}
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("update %s/%s: encode document: %w", collection, id, err)
	}

	row := s.db.QueryRow(ctx,
		`UPDATE import_documents
		 SET data = data || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2::uuid
		 RETURNING id::text, data`,
		collection, id, string(payload),
	)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.StoredDocument{}, fmt.Errorf("update %s/%s: %w", collection, id, core.ErrNotFound)
	}
	if err != nil {
		return core.StoredDocument{}, wrapPgError("update", err)
	}
	return doc, nil
}

// Touch bumps updated_at on the given documents.
func (s *Store) Touch(ctx context.Context, collection string, ids []string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE import_documents SET updated_at = now()
		 WHERE collection = $1 AND id::text = ANY($2)`,
		collection, ids,
	)
	if err != nil {
		return wrapPgError("touch", err)
	}
	return nil
}

// RecordImport inserts an audit row for a finished import.
func (s *Store) RecordImport(ctx context.Context, e core.AuditEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO import_audit
		 (id, collection, mode, match_field, records, created, updated, skipped, errors,
		  ip_address, user_agent, duration_ms, created_at)
		 VALUES ($1::uuid, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9,
		  NULLIF($10, ''), NULLIF($11, ''), $12, $13)`,
		e.ID, e.Collection, string(e.Mode), e.MatchField, e.Records,
		e.Summary.Created, e.Summary.Updated, e.Summary.Skipped, e.Summary.Errors,
		e.IPAddress, e.UserAgent, e.Duration.Milliseconds(), e.CreatedAt,
	)
	if err != nil {
		return wrapPgError("record import", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (core.StoredDocument, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return core.StoredDocument{}, err
	}
	data := core.Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return core.StoredDocument{}, fmt.Errorf("decode document %s: %w", id, err)
		}
	}
	return core.StoredDocument{ID: id, Data: data}, nil
}

// wrapPgError adds the failing column or constraint to the message so the
// reconciler can report which field caused the failure.
func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if field := pgErr.ColumnName; field != "" {
			return fmt.Errorf("%s failed: %s: %w", op, field, err)
		}
		if c := pgErr.ConstraintName; c != "" {
			return fmt.Errorf("%s failed: %s: %w", op, strings.TrimPrefix(c, "import_documents_"), err)
		}
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}

// idString returns value as a UUID string when it parses as one.
func idString(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", false
	}
	return s, true
}
