package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/models"
)

const (
	opInsert = "insert"
	opDelete = "delete"
)

// storedLocation is a location together with the body it fingerprints.
type storedLocation struct {
	models.DocumentLocation
	Body string
}

func (db *DB) lookup(ctx context.Context, title string) (*storedLocation, error) {
	var (
		loc  storedLocation
		segs string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT l.title, l.document_id, l.segments, l.body_checksum, COALESCE(d.body, '')
		FROM document_locations l
		LEFT JOIN documents d ON d.id = l.document_id
		WHERE l.title = ?
	`, title).Scan(&loc.Title, &loc.DocumentID, &segs, &loc.BodyChecksum, &loc.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: lookup location: %w", apperr.StoreIO(err))
	}
	if err := json.Unmarshal([]byte(segs), &loc.Segments); err != nil {
		return nil, fmt.Errorf("index: decode segments for %q: %w", title, err)
	}
	return &loc, nil
}

// Location returns the stored fingerprint for title, or nil.
func (db *DB) Location(ctx context.Context, title string) (*models.DocumentLocation, error) {
	loc, err := db.lookup(ctx, title)
	if err != nil || loc == nil {
		return nil, err
	}
	return &loc.DocumentLocation, nil
}

// replace swaps the document stored under doc.Title for a new one with id.
// It returns the id of the replaced document, if any, which the caller must
// discard from the vector store.
func (db *DB) replace(ctx context.Context, id string, doc models.Document, tags []models.Tag, loc models.DocumentLocation) (string, error) {
	segs, err := json.Marshal(loc.Segments)
	if err != nil {
		return "", fmt.Errorf("index: encode segments: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", apperr.StoreIO(err))
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var old string
	err = tx.QueryRowContext(ctx, `SELECT document_id FROM document_locations WHERE title = ?`, doc.Title).Scan(&old)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: read location: %w", apperr.StoreIO(err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE title = ?`, doc.Title); err != nil {
		return "", fmt.Errorf("index: delete document: %w", apperr.StoreIO(err))
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, body, updated_at) VALUES (?, ?, ?, ?)`,
		id, doc.Title, doc.Body, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("index: insert document: %w", apperr.StoreIO(err))
	}
	if err := insertTags(ctx, tx, id, tags); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_locations (title, document_id, segments, body_checksum)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			document_id   = excluded.document_id,
			segments      = excluded.segments,
			body_checksum = excluded.body_checksum
	`, doc.Title, id, string(segs), loc.BodyChecksum); err != nil {
		return "", fmt.Errorf("index: upsert location: %w", apperr.StoreIO(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_journal WHERE document_id = ?`, id); err != nil {
		return "", fmt.Errorf("index: clear journal: %w", apperr.StoreIO(err))
	}
	if old != "" {
		if err := journalTx(ctx, tx, old, opDelete); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("index: commit: %w", apperr.StoreIO(err))
	}
	return old, nil
}

// remove deletes the document stored under title and journals its id.
func (db *DB) remove(ctx context.Context, title string) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", apperr.StoreIO(err))
	}
	defer tx.Rollback() //nolint:errcheck

	var id string
	err = tx.QueryRowContext(ctx, `SELECT document_id FROM document_locations WHERE title = ?`, title).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: read location: %w", apperr.StoreIO(err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_locations WHERE title = ?`, title); err != nil {
		return "", fmt.Errorf("index: delete location: %w", apperr.StoreIO(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ? OR title = ?`, id, title); err != nil {
		return "", fmt.Errorf("index: delete document: %w", apperr.StoreIO(err))
	}
	if err := journalTx(ctx, tx, id, opDelete); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("index: commit: %w", apperr.StoreIO(err))
	}
	return id, nil
}

func insertTags(ctx context.Context, tx *sql.Tx, id string, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO document_tags (document_id, name, manual) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", apperr.StoreIO(err))
	}
	defer stmt.Close()
	for _, t := range tags {
		if _, err := stmt.ExecContext(ctx, id, t.Name, t.Manual); err != nil {
			return fmt.Errorf("index: insert tag: %w", apperr.StoreIO(err))
		}
	}
	return nil
}

func journalTx(ctx context.Context, tx *sql.Tx, id, op string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO vector_journal (document_id, op) VALUES (?, ?)`, id, op)
	if err != nil {
		return fmt.Errorf("index: journal %s: %w", op, apperr.StoreIO(err))
	}
	return nil
}

func (db *DB) journal(ctx context.Context, id, op string) error {
	_, err := db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO vector_journal (document_id, op) VALUES (?, ?)`, id, op)
	if err != nil {
		return fmt.Errorf("index: journal %s: %w", op, apperr.StoreIO(err))
	}
	return nil
}

func (db *DB) clearJournal(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM vector_journal WHERE document_id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: clear journal: %w", apperr.StoreIO(err))
	}
	return nil
}

func (db *DB) journaled(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT document_id FROM vector_journal ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("index: read journal: %w", apperr.StoreIO(err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SetTags replaces the tags of the document stored under title.
func (db *DB) SetTags(ctx context.Context, title string, tags []models.Tag) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", apperr.StoreIO(err))
	}
	defer tx.Rollback() //nolint:errcheck

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE title = ?`, title).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("index: set tags %q: %w", title, apperr.ErrDocumentDoesNotExist)
	}
	if err != nil {
		return fmt.Errorf("index: set tags: %w", apperr.StoreIO(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_tags WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("index: clear tags: %w", apperr.StoreIO(err))
	}
	if err := insertTags(ctx, tx, id, tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", apperr.StoreIO(err))
	}
	return nil
}

// Get returns the document stored under title with its tags.
func (db *DB) Get(ctx context.Context, title string) (models.TaggedDocument, error) {
	var (
		d  models.TaggedDocument
		id string
	)
	err := db.conn.QueryRowContext(ctx, `SELECT id, title, body FROM documents WHERE title = ?`, title).
		Scan(&id, &d.Title, &d.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("index: get %q: %w", title, apperr.ErrDocumentDoesNotExist)
	}
	if err != nil {
		return d, fmt.Errorf("index: get: %w", apperr.StoreIO(err))
	}
	tags, err := db.tagsFor(ctx, []string{id})
	if err != nil {
		return d, err
	}
	d.Tags = tags[id]
	return d, nil
}

// SelectAll returns every document with its tags, ordered by title.
func (db *DB) SelectAll(ctx context.Context) ([]models.TaggedDocument, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, title, body FROM documents ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("index: select all: %w", apperr.StoreIO(err))
	}
	defer rows.Close()

	var (
		docs []models.TaggedDocument
		ids  []string
	)
	for rows.Next() {
		var (
			d  models.TaggedDocument
			id string
		)
		if err := rows.Scan(&id, &d.Title, &d.Body); err != nil {
			return nil, err
		}
		docs = append(docs, d)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := db.tagsFor(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Tags = tags[ids[i]]
	}
	return docs, nil
}

// tagsFor loads tags per document id, sorted by name. A nil ids slice
// loads every document's tags.
func (db *DB) tagsFor(ctx context.Context, ids []string) (map[string][]models.Tag, error) {
	q := `SELECT document_id, name, manual FROM document_tags`
	args := make([]any, 0, len(ids))
	if ids != nil {
		q += ` WHERE document_id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	q += ` ORDER BY document_id, name`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", apperr.StoreIO(err))
	}
	defer rows.Close()
	out := make(map[string][]models.Tag)
	for rows.Next() {
		var (
			id string
			t  models.Tag
		)
		if err := rows.Scan(&id, &t.Name, &t.Manual); err != nil {
			return nil, err
		}
		out[id] = append(out[id], t)
	}
	return out, rows.Err()
}

// idsWithTags returns the ids of documents carrying every name in
// required. An empty filter matches every document.
func (db *DB) idsWithTags(ctx context.Context, required []string) (map[string]struct{}, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(required) == 0 {
		rows, err = db.conn.QueryContext(ctx, `SELECT id FROM documents`)
	} else {
		args := make([]any, 0, len(required)+1)
		for _, name := range required {
			args = append(args, name)
		}
		args = append(args, len(required))
		rows, err = db.conn.QueryContext(ctx, `
			SELECT document_id FROM document_tags
			WHERE name IN (`+placeholders(len(required))+`)
			GROUP BY document_id
			HAVING COUNT(DISTINCT name) = ?
		`, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("index: filter by tags: %w", apperr.StoreIO(err))
	}
	return scanIDs(rows)
}

// idsExcept returns the ids of every document not stored under title.
func (db *DB) idsExcept(ctx context.Context, title string) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM documents WHERE title != ?`, title)
	if err != nil {
		return nil, fmt.Errorf("index: filter by title: %w", apperr.StoreIO(err))
	}
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) (map[string]struct{}, error) {
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

type documentRow struct {
	Title string
	Body  string
}

func (db *DB) documentsByID(ctx context.Context, ids []string) (map[string]documentRow, error) {
	out := make(map[string]documentRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, body FROM documents WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: documents by id: %w", apperr.StoreIO(err))
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			r  documentRow
		)
		if err := rows.Scan(&id, &r.Title, &r.Body); err != nil {
			return nil, err
		}
		out[id] = r
	}
	return out, rows.Err()
}

// Checksums maps every indexed title to the checksum of its body.
func (db *DB) Checksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT title, body_checksum FROM document_locations`)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", apperr.StoreIO(err))
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var title, cs string
		if err := rows.Scan(&title, &cs); err != nil {
			return nil, err
		}
		out[title] = cs
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
