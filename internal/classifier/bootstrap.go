package classifier

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/contextual/internal/embedding"
	"github.com/starford/contextual/internal/models"
	"github.com/starford/contextual/internal/parser"
	"github.com/starford/contextual/internal/segment"
)

//go:embed corpus/*.note
var corpusFS embed.FS

// LabeledVector is one embedded chunk of a bootstrap note.
type LabeledVector struct {
	Vector []float32
	Tags   []string
}

// Bootstrap is the fixed topic corpus every classifier trains on. Its
// embeddings are computed on first use and then kept for the life of the
// process; one Bootstrap is shared by every workspace.
type Bootstrap struct {
	docs []models.TaggedDocument

	mu       sync.Mutex
	examples []LabeledVector
}

// DefaultBootstrap parses the embedded topic corpus.
func DefaultBootstrap() (*Bootstrap, error) {
	entries, err := fs.ReadDir(corpusFS, "corpus")
	if err != nil {
		return nil, fmt.Errorf("classifier: read corpus: %w", err)
	}
	docs := make([]models.TaggedDocument, 0, len(entries))
	for _, e := range entries {
		data, err := corpusFS.ReadFile(path.Join("corpus", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("classifier: read %s: %w", e.Name(), err)
		}
		note, err := parser.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("classifier: parse %s: %w", e.Name(), err)
		}
		docs = append(docs, models.TaggedDocument{
			Document: models.Document{Title: note.Title, Body: note.Body},
			Tags:     note.Tags,
		})
	}
	return NewBootstrap(docs), nil
}

// NewBootstrap uses docs as the corpus.
func NewBootstrap(docs []models.TaggedDocument) *Bootstrap {
	return &Bootstrap{docs: docs}
}

// Documents returns the corpus notes.
func (b *Bootstrap) Documents() []models.TaggedDocument {
	return b.docs
}

// Examples embeds every chunk of the corpus once. A failed attempt is not
// kept, so a later call embeds again.
func (b *Bootstrap) Examples(ctx context.Context, emb embedding.Embedder) ([]LabeledVector, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.examples != nil {
		return b.examples, nil
	}

	perDoc := make([][]LabeledVector, len(b.docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, d := range b.docs {
		g.Go(func() error {
			segs := segment.ChunkText(d.Body)
			if len(segs) == 0 || len(d.Tags) == 0 {
				return nil
			}
			vecs, err := emb.EmbedBatch(gctx, segment.Texts(d.Body, segs))
			if err != nil {
				return fmt.Errorf("classifier: embed %q: %w", d.Title, err)
			}
			names := models.TagNames(d.Tags)
			out := make([]LabeledVector, len(vecs))
			for j, v := range vecs {
				out[j] = LabeledVector{Vector: v, Tags: names}
			}
			perDoc[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	examples := make([]LabeledVector, 0)
	for _, ex := range perDoc {
		examples = append(examples, ex...)
	}
	b.examples = examples
	return examples, nil
}
