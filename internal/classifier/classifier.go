// Package classifier assigns one automatic tag to a document with a model
// trained on a bootstrap corpus and the workspace's own tagged documents.
package classifier

import (
	"context"
	"fmt"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/embedding"
	"github.com/starford/contextual/internal/models"
	"github.com/starford/contextual/internal/segment"
)

// Vocabulary maps tag names to dense class ids.
type Vocabulary interface {
	// TagID returns the id for name, assigning the next free id on first
	// sight.
	TagID(name string) uint32
	TagName(id uint32) (string, bool)
	TagCount() int
}

// TagClassifier is a trained model bound to the vocabulary it was trained
// with. Its class count is fixed at training time.
type TagClassifier struct {
	model    *model
	vocab    Vocabulary
	embedder embedding.Embedder
}

// New trains a classifier on the bootstrap corpus plus documents.
func New(ctx context.Context, vocab Vocabulary, emb embedding.Embedder, boot *Bootstrap,
	documents []models.TaggedDocument, cfg Config, progress ProgressFunc) (*TagClassifier, error) {
	rows, err := trainingRows(ctx, vocab, emb, boot, documents)
	if err != nil {
		return nil, err
	}
	m, err := train(rows, vocab.TagCount(), cfg, progress)
	if err != nil {
		return nil, err
	}
	return &TagClassifier{model: m, vocab: vocab, embedder: emb}, nil
}

// trainingRows turns every chunk of a tagged document into one row per tag
// the document carries. Untagged documents contribute nothing.
func trainingRows(ctx context.Context, vocab Vocabulary, emb embedding.Embedder, boot *Bootstrap,
	documents []models.TaggedDocument) ([]Example, error) {
	base, err := boot.Examples(ctx, emb)
	if err != nil {
		return nil, err
	}

	var rows []Example
	for _, ex := range base {
		for _, name := range ex.Tags {
			rows = append(rows, Example{Features: ex.Vector, Class: int(vocab.TagID(name))})
		}
	}

	var (
		texts []string
		owner []int
	)
	for i, d := range documents {
		if len(d.Tags) == 0 {
			continue
		}
		for _, s := range segment.ChunkText(d.Body) {
			texts = append(texts, models.Text(d.Body, s))
			owner = append(owner, i)
		}
	}
	if len(texts) == 0 {
		return rows, nil
	}
	vecs, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("classifier: embed documents: %w", err)
	}
	for k, v := range vecs {
		for _, t := range documents[owner[k]].Tags {
			rows = append(rows, Example{Features: v, Class: int(vocab.TagID(t.Name))})
		}
	}
	return rows, nil
}

// Classes is the number of classes the model was trained with.
func (c *TagClassifier) Classes() int {
	return c.model.classes
}

// Scores sums the per-sentence class scores of doc. Summing rather than
// averaging favours longer documents.
func (c *TagClassifier) Scores(ctx context.Context, doc models.Document) ([]float32, error) {
	segs := segment.DocumentSentences(doc.Body)
	if len(segs) == 0 {
		return nil, fmt.Errorf("classifier: %q: %w", doc.Title, apperr.ErrEmptyClassificationInput)
	}
	vecs, err := c.embedder.EmbedBatch(ctx, segment.Texts(doc.Body, segs))
	if err != nil {
		return nil, fmt.Errorf("classifier: embed %q: %w", doc.Title, err)
	}

	sum := make([]float32, c.model.classes)
	for _, v := range vecs {
		s, err := c.model.scores(v)
		if err != nil {
			return nil, err
		}
		for i := range sum {
			sum[i] += s[i]
		}
	}
	return sum, nil
}

// Classify returns the automatic tag for doc. Ties go to the lowest class
// id.
func (c *TagClassifier) Classify(ctx context.Context, doc models.Document) (models.Tag, error) {
	scores, err := c.Scores(ctx, doc)
	if err != nil {
		return models.Tag{}, err
	}
	best := argmax(scores)
	name, ok := c.vocab.TagName(uint32(best))
	if !ok {
		return models.Tag{}, fmt.Errorf("classifier: class %d has no tag name", best)
	}
	return models.Tag{Name: name, Manual: false}, nil
}

// argmax returns the index of the largest score, the lowest index on ties.
func argmax(scores []float32) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
