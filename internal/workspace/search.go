package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/embedding"
	"github.com/starford/contextual/internal/index"
	"github.com/starford/contextual/internal/models"
	"github.com/starford/contextual/internal/segment"
	"github.com/starford/contextual/internal/window"
)

// Search returns up to k chunks nearest to text among notes carrying every
// tag in tags. Character ranges are in code points.
func (w *Workspace) Search(ctx context.Context, text string, tags []string, k int) ([]models.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("workspace: search: results %d: %w", k, apperr.ErrInvalidArgument)
	}
	required, err := models.NormalizeTagNames(tags)
	if err != nil {
		return nil, err
	}
	idx, err := w.index(ctx)
	if err != nil {
		return nil, err
	}
	emb, err := w.embedder.EmbedFor(ctx, text, embedding.RoleQuery)
	if err != nil {
		return nil, fmt.Errorf("workspace: embed query: %w", err)
	}
	hits, err := idx.Search(ctx, emb, required, k)
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.SearchResult{
			Distance:       h.Distance,
			Title:          h.Title,
			CharacterRange: window.CharRange(h.Body, h.Segment),
		})
	}
	return out, nil
}

// ContextQuery asks for notes related to the text around a cursor.
type ContextQuery struct {
	// Title of the note being edited. When set, that note is left out of
	// the results.
	Title *string
	Text  string
	// Cursor is a UTF-16 code unit index into Text.
	Cursor           int
	Results          int
	ContextSentences int
}

// ContextSearch embeds the sentences around the cursor and returns the
// nearest chunks of other notes, each with ContextSentences sentences of
// surrounding text. RelevantRange is in UTF-16 code units of Text.
func (w *Workspace) ContextSearch(ctx context.Context, q ContextQuery) ([]models.ContextResult, error) {
	if q.Results < 1 {
		return nil, fmt.Errorf("workspace: context search: results %d: %w", q.Results, apperr.ErrInvalidArgument)
	}
	sentences := segment.ChunkText(q.Text)
	cursor, err := window.CursorByteOffset(q.Text, q.Cursor)
	if err != nil {
		return nil, err
	}
	target := window.TargetSentence(sentences, cursor)
	if target < 0 {
		return nil, nil
	}

	var query strings.Builder
	r := window.Around(len(sentences), target, w.queryWindow)
	for _, s := range sentences[r.Start:r.End] {
		query.WriteString(models.Text(q.Text, s))
	}

	idx, err := w.index(ctx)
	if err != nil {
		return nil, err
	}
	emb, err := w.embedder.Embed(ctx, query.String())
	if err != nil {
		return nil, fmt.Errorf("workspace: embed context: %w", err)
	}

	var hits []index.Hit
	if q.Title != nil {
		hits, err = idx.SearchExcluding(ctx, emb, *q.Title, q.Results)
	} else {
		hits, err = idx.Search(ctx, emb, nil, q.Results)
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.ContextResult, 0, len(hits))
	for _, h := range hits {
		res, ok := contextResult(h, q.ContextSentences)
		if ok {
			out = append(out, res)
		}
	}
	return out, nil
}

// contextResult re-chunks the hit's note and cuts the window of sentences
// around the chunk the hit starts in.
func contextResult(h index.Hit, size int) (models.ContextResult, bool) {
	chunks := segment.ChunkText(h.Body)
	if len(chunks) == 0 {
		return models.ContextResult{}, false
	}
	i := window.ContainingSentence(chunks, h.Segment.Start)
	target := chunks[i]
	r := window.Around(len(chunks), i, size)
	span := models.Range{Start: chunks[r.Start].Start, End: chunks[r.End-1].End}
	text := models.Text(h.Body, span)

	return models.ContextResult{
		Distance: h.Distance,
		Title:    h.Title,
		Text:     text,
		RelevantRange: window.UTF16Range(text, models.Range{
			Start: target.Start - span.Start,
			End:   target.End - span.Start,
		}),
	}, true
}
