package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/contextual/internal/checksum"
	"github.com/starford/contextual/internal/models"
	"github.com/starford/contextual/internal/segment"
)

// DocumentIndex is the workspace's view of the index. Consumers depend on
// this interface rather than *DB.
type DocumentIndex interface {
	Upsert(ctx context.Context, doc models.Document, tags []models.Tag) (string, bool, error)
	Delete(ctx context.Context, title string) (bool, error)
	Get(ctx context.Context, title string) (models.TaggedDocument, error)
	Location(ctx context.Context, title string) (*models.DocumentLocation, error)
	SelectAll(ctx context.Context) ([]models.TaggedDocument, error)
	SetTags(ctx context.Context, title string, tags []models.Tag) error
	Search(ctx context.Context, emb []float32, required []string, k int) ([]Hit, error)
	SearchExcluding(ctx context.Context, emb []float32, title string, k int) ([]Hit, error)
	Checksums(ctx context.Context) (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)

// Hit is one matching chunk with the document it belongs to.
type Hit struct {
	DocumentID string
	Title      string
	Body       string
	Segment    models.Segment
	Distance   float32
}

// Upsert indexes doc under its title with the given tags. When the stored
// fingerprint and body already match, nothing is written and changed is
// false. Otherwise the new chunks are added before the metadata commit and
// the replaced document's chunks are removed after it, so the title always
// resolves to a complete set of chunks.
func (db *DB) Upsert(ctx context.Context, doc models.Document, tags []models.Tag) (id string, changed bool, err error) {
	segs := segment.ChunkText(doc.Body)
	loc, err := db.lookup(ctx, doc.Title)
	if err != nil {
		return "", false, err
	}
	if loc != nil && loc.Body == doc.Body && models.SameSegments(loc.Segments, segs) {
		return loc.DocumentID, false, nil
	}

	chunks := make([]models.Chunk, len(segs))
	if len(segs) > 0 {
		vecs, err := db.embedder.EmbedBatch(ctx, segment.Texts(doc.Body, segs))
		if err != nil {
			return "", false, fmt.Errorf("index: embed %q: %w", doc.Title, err)
		}
		for i, s := range segs {
			chunks[i] = models.Chunk{Segment: s, Embedding: vecs[i]}
		}
	}

	id = uuid.NewString()
	if err := db.journal(ctx, id, opInsert); err != nil {
		return "", false, err
	}
	if err := db.addChunks(ctx, id, doc.Body, chunks); err != nil {
		db.discard(ctx, id)
		return "", false, err
	}
	old, err := db.replace(ctx, id, doc, tags, models.DocumentLocation{
		Title:        doc.Title,
		DocumentID:   id,
		Segments:     segs,
		BodyChecksum: checksum.String(doc.Body),
	})
	if err != nil {
		db.discard(ctx, id)
		return "", false, err
	}
	if old != "" {
		db.discard(ctx, old)
	}
	return id, true, nil
}

// Delete removes the document stored under title. It reports whether one
// existed.
func (db *DB) Delete(ctx context.Context, title string) (bool, error) {
	id, err := db.remove(ctx, title)
	if err != nil || id == "" {
		return false, err
	}
	db.discard(ctx, id)
	return true, nil
}

// Search returns up to k chunks nearest to emb among documents whose tag
// names include every name in required.
func (db *DB) Search(ctx context.Context, emb []float32, required []string, k int) ([]Hit, error) {
	allowed, err := db.idsWithTags(ctx, required)
	if err != nil {
		return nil, err
	}
	return db.search(ctx, emb, allowed, k)
}

// SearchExcluding is Search over every document except the one stored
// under title.
func (db *DB) SearchExcluding(ctx context.Context, emb []float32, title string, k int) ([]Hit, error) {
	allowed, err := db.idsExcept(ctx, title)
	if err != nil {
		return nil, err
	}
	return db.search(ctx, emb, allowed, k)
}

func (db *DB) search(ctx context.Context, emb []float32, allowed map[string]struct{}, k int) ([]Hit, error) {
	raw, err := db.nearest(ctx, emb, allowed, k)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for _, h := range raw {
		ids = append(ids, h.documentID)
	}
	docs, err := db.documentsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		d, ok := docs[h.documentID]
		if !ok || h.segment.End > len(d.Body) {
			continue
		}
		hits = append(hits, Hit{
			DocumentID: h.documentID,
			Title:      d.Title,
			Body:       d.Body,
			Segment:    h.segment,
			Distance:   h.distance,
		})
	}
	return hits, nil
}
