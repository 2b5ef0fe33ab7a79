package note

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	tags        TEXT,
	embedding   TEXT,
	shared_with TEXT,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes(owner_id);

CREATE TABLE IF NOT EXISTS users (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore is a SQLite-backed document store and user directory.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var (
	_ Store         = (*SQLiteStore)(nil)
	_ UserDirectory = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database under dataDir.
// If dataDir is empty, defaults to ~/.local/share/collabd.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share", "collabd")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "collabd.db")

	// WAL mode for better concurrency between session writes and searches.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// FindByID returns the document or ErrNotFound.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, content, summary, tags, embedding, shared_with, created_at, updated_at
		FROM notes WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding note %s: %w", id, err)
	}
	return doc, nil
}

// Save writes the document. The whole row is overwritten (last writer wins);
// only created_at survives from the prior version.
func (s *SQLiteStore) Save(ctx context.Context, doc *Document) (*Document, error) {
	if doc.OwnerID == "" {
		return nil, fmt.Errorf("saving note: owner id is required")
	}

	stored := doc.Clone()
	now := time.Now().UTC()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
		stored.CreatedAt = now
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	tags, err := marshalJSONColumn(stored.Tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	embedding, err := marshalJSONColumn(stored.Embedding)
	if err != nil {
		return nil, fmt.Errorf("encoding embedding: %w", err)
	}
	shared, err := marshalJSONColumn(stored.SharedWith)
	if err != nil {
		return nil, fmt.Errorf("encoding shared_with: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, owner_id, title, content, summary, tags, embedding, shared_with, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			tags = excluded.tags,
			embedding = excluded.embedding,
			shared_with = excluded.shared_with,
			updated_at = excluded.updated_at`,
		stored.ID, stored.OwnerID, stored.Title, stored.Content, stored.Summary,
		tags, embedding, shared, stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving note %s: %w", stored.ID, err)
	}

	return stored, nil
}

// Delete removes the document.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListForUser returns documents owned by or shared with userID, newest first.
// Collaborator membership is checked against the shared_with JSON array.
func (s *SQLiteStore) ListForUser(ctx context.Context, userID string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, content, summary, tags, embedding, shared_with, created_at, updated_at
		FROM notes
		WHERE owner_id = ?
		   OR EXISTS (SELECT 1 FROM json_each(notes.shared_with) WHERE json_each.value = ?)
		ORDER BY created_at DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notes for %s: %w", userID, err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ListAll returns every document, newest first.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, content, summary, tags, embedding, shared_with, created_at, updated_at
		FROM notes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// Exists reports whether the user id is known to the directory.
func (s *SQLiteStore) Exists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking user %s: %w", userID, err)
	}
	return true, nil
}

// PutUser registers a user id in the directory.
func (s *SQLiteStore) PutUser(ctx context.Context, userID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, userID, name)
	if err != nil {
		return fmt.Errorf("putting user %s: %w", userID, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanDocument.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc       Document
		tags      sql.NullString
		embedding sql.NullString
		shared    sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.Summary,
		&tags, &embedding, &shared, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONColumn(tags, &doc.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if err := unmarshalJSONColumn(embedding, &doc.Embedding); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	if err := unmarshalJSONColumn(shared, &doc.SharedWith); err != nil {
		return nil, fmt.Errorf("decoding shared_with: %w", err)
	}

	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return docs, nil
}

// marshalJSONColumn encodes a slice as JSON, mapping empty to SQL NULL so
// "absent" and "present but empty" stay distinguishable.
func marshalJSONColumn[T any](v []T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalJSONColumn[T any](col sql.NullString, dest *[]T) error {
	if !col.Valid || col.String == "" {
		*dest = nil
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}
