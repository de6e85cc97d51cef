// Package index stores documents, their tags and their chunk embeddings.
// Metadata lives in SQLite; chunk vectors live in a chromem collection.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/philippgille/chromem-go"

	"github.com/starford/contextual/internal/embedding"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL UNIQUE,
	body       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	manual      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (document_id, name)
);

CREATE INDEX IF NOT EXISTS idx_document_tags_name ON document_tags(name);

CREATE TABLE IF NOT EXISTS document_locations (
	title         TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	segments      TEXT NOT NULL DEFAULT '[]',
	body_checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS vector_journal (
	document_id TEXT PRIMARY KEY,
	op          TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const (
	dbFile          = "index.db"
	vectorDir       = "vectors"
	chunkCollection = "chunks"
)

// DB is a workspace's document index.
type DB struct {
	conn     *sql.DB
	vectors  *chromem.DB
	chunks   *chromem.Collection
	embedder embedding.Embedder
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*DB)

// WithLogger sets the index logger.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// Open opens (or creates) the index stored under dir and replays the vector
// journal left by any interrupted write.
func Open(ctx context.Context, dir string, emb embedding.Embedder, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: create dir: %w", err)
	}

	conn, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}

	vectors, err := chromem.NewPersistentDB(filepath.Join(dir, vectorDir), false)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: open vectors: %w", err)
	}
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return emb.EmbedFor(ctx, text, embedding.RoleDocument)
	}
	chunks, err := vectors.GetOrCreateCollection(chunkCollection, nil, embed)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: open collection: %w", err)
	}

	db := &DB{conn: conn, vectors: vectors, chunks: chunks, embedder: emb, logger: slog.Default()}
	for _, o := range opts {
		o(db)
	}
	if err := db.Recover(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the SQLite connection. Vectors are persisted on write.
func (db *DB) Close() error {
	return db.conn.Close()
}
