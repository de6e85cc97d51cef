package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/models"
)

const (
	metaDocumentID = "document_id"
	metaStart      = "start"
	metaEnd        = "end"
)

func chunkID(documentID string, n int) string {
	return documentID + "#" + strconv.Itoa(n)
}

func (db *DB) addChunks(ctx context.Context, documentID string, body string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID: chunkID(documentID, i),
			Metadata: map[string]string{
				metaDocumentID: documentID,
				metaStart:      strconv.Itoa(c.Start),
				metaEnd:        strconv.Itoa(c.End),
			},
			Embedding: c.Embedding,
			Content:   models.Text(body, c.Segment),
		}
	}
	if err := db.chunks.AddDocuments(ctx, docs, runtime.GOMAXPROCS(0)); err != nil {
		return fmt.Errorf("index: add chunks: %w", apperr.StoreIO(err))
	}
	return nil
}

func (db *DB) deleteChunks(ctx context.Context, documentID string) error {
	err := db.chunks.Delete(ctx, map[string]string{metaDocumentID: documentID}, nil)
	if err != nil {
		return fmt.Errorf("index: delete chunks: %w", apperr.StoreIO(err))
	}
	return nil
}

// discard removes a document's chunks and, once they are gone, its journal
// entry. A failure is logged and left for Recover.
func (db *DB) discard(ctx context.Context, documentID string) {
	if err := db.deleteChunks(ctx, documentID); err != nil {
		db.logger.Warn("index: chunks left for recovery",
			slog.String("document_id", documentID), slog.String("error", err.Error()))
		return
	}
	if err := db.clearJournal(ctx, documentID); err != nil {
		db.logger.Warn("index: journal entry left behind",
			slog.String("document_id", documentID), slog.String("error", err.Error()))
	}
}

// Recover deletes the chunks of every journaled document id. Such ids
// belong to writes that never committed or replaced documents whose
// chunks were not yet removed.
func (db *DB) Recover(ctx context.Context) error {
	ids, err := db.journaled(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := db.deleteChunks(ctx, id); err != nil {
			return err
		}
		if err := db.clearJournal(ctx, id); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		db.logger.Info("index: recovered interrupted writes", slog.Int("documents", len(ids)))
	}
	return nil
}

type rawHit struct {
	documentID string
	segment    models.Segment
	distance   float32
}

// nearest returns up to k chunks closest to emb whose document id is in
// allowed, by ascending distance.
func (db *DB) nearest(ctx context.Context, emb []float32, allowed map[string]struct{}, k int) ([]rawHit, error) {
	if k <= 0 || len(allowed) == 0 {
		return nil, nil
	}
	n := db.chunks.Count()
	if n == 0 {
		return nil, nil
	}
	res, err := db.chunks.QueryEmbedding(ctx, emb, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("index: query vectors: %w", apperr.StoreIO(err))
	}

	hits := make([]rawHit, 0, k)
	for _, r := range res {
		id := r.Metadata[metaDocumentID]
		if _, ok := allowed[id]; !ok {
			continue
		}
		start, err1 := strconv.Atoi(r.Metadata[metaStart])
		end, err2 := strconv.Atoi(r.Metadata[metaEnd])
		if err1 != nil || err2 != nil {
			db.logger.Warn("index: chunk with bad range", slog.String("chunk_id", r.ID))
			continue
		}
		hits = append(hits, rawHit{
			documentID: id,
			segment:    models.Segment{Start: start, End: end},
			distance:   1 - r.Similarity,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}
