package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/models"
	"github.com/starford/contextual/internal/segment"
	"github.com/starford/contextual/internal/testutil"
)

type testVocab struct {
	mu    sync.Mutex
	ids   map[string]uint32
	names []string
}

func newTestVocab() *testVocab {
	return &testVocab{ids: map[string]uint32{}}
}

func (v *testVocab) TagID(name string) uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.ids[name]; ok {
		return id
	}
	id := uint32(len(v.names))
	v.ids[name] = id
	v.names = append(v.names, name)
	return id
}

func (v *testVocab) TagName(id uint32) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if int(id) >= len(v.names) {
		return "", false
	}
	return v.names[id], true
}

func (v *testVocab) TagCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.names)
}

func tagged(title, body string, tags ...string) models.TaggedDocument {
	d := models.TaggedDocument{Document: models.Document{Title: title, Body: body}}
	for _, name := range tags {
		d.Tags = append(d.Tags, models.Tag{Name: name, Manual: true})
	}
	return d
}

func testBootstrap() *Bootstrap {
	return NewBootstrap([]models.TaggedDocument{
		tagged("pets", "The cat sleeps on the sofa. A dog barks at the cat. The kitten chases a puppy.", "Pets"),
		tagged("calculus", "An integral sums area. A derivative measures slope. Limits define continuity of functions.", "Calculus"),
	})
}

func strongConfig() Config {
	return Config{Epochs: 60, LearningRate: 0.1, BatchSize: 4, Seed: 7}
}

func TestDefaultBootstrapParsesCorpus(t *testing.T) {
	boot, err := DefaultBootstrap()
	require.NoError(t, err)

	docs := boot.Documents()
	require.Len(t, docs, 10)
	counts := map[string]int{}
	for _, d := range docs {
		assert.NotEmpty(t, d.Title)
		assert.NotEmpty(t, d.Body)
		require.NotEmpty(t, d.Tags, d.Title)
		for _, tag := range d.Tags {
			counts[tag.Name]++
		}
	}
	assert.Equal(t, 3, counts["Math"])
	assert.Equal(t, 3, counts["Computer Science"])
	for _, name := range []string{"History", "Philosophy", "Science", "Physics"} {
		assert.Equal(t, 1, counts[name], name)
	}
}

func TestBootstrapExamplesAreMemoized(t *testing.T) {
	emb := testutil.Embedder(t)
	boot := testBootstrap()

	first, err := boot.Examples(context.Background(), emb)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	for _, ex := range first {
		assert.Len(t, ex.Vector, testutil.Dimension)
		assert.Len(t, ex.Tags, 1)
	}

	second, err := boot.Examples(context.Background(), emb)
	require.NoError(t, err)
	assert.Same(t, &first[0], &second[0])
}

func TestClassifySeparatesTopics(t *testing.T) {
	ctx := context.Background()
	vocab := newTestVocab()
	c, err := New(ctx, vocab, testutil.Embedder(t), testBootstrap(), nil, strongConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, c.Classes())

	tag, err := c.Classify(ctx, models.Document{Title: "q", Body: "The cat and the dog sleep."})
	require.NoError(t, err)
	assert.Equal(t, models.Tag{Name: "Pets", Manual: false}, tag)

	tag, err = c.Classify(ctx, models.Document{Title: "q", Body: "A derivative and an integral."})
	require.NoError(t, err)
	assert.Equal(t, "Calculus", tag.Name)
}

func TestScoresCoverWorkspaceTags(t *testing.T) {
	ctx := context.Background()
	vocab := newTestVocab()
	docs := []models.TaggedDocument{
		tagged("soup", "Simmer the onions. Season the broth with salt.", "Cooking"),
		tagged("untagged", "This note has no tags and is skipped."),
	}
	c, err := New(ctx, vocab, testutil.Embedder(t), testBootstrap(), docs, strongConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, vocab.TagCount())

	scores, err := c.Scores(ctx, models.Document{Title: "q", Body: "Season the onions. Then simmer."})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	// Two sentences, so the summed probabilities add up to two.
	var total float32
	for _, s := range scores {
		total += s
	}
	assert.InDelta(t, 2.0, total, 1e-3)

	tag, err := c.Classify(ctx, models.Document{Title: "q", Body: "Season the broth. Simmer the onions."})
	require.NoError(t, err)
	assert.Equal(t, "Cooking", tag.Name)
}

func TestClassifyEmptyDocument(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, newTestVocab(), testutil.Embedder(t), testBootstrap(), nil, strongConfig(), nil)
	require.NoError(t, err)

	_, err = c.Classify(ctx, models.Document{Title: "blank", Body: " \n\t "})
	assert.True(t, errors.Is(err, apperr.ErrEmptyClassificationInput))
}

func TestTrainingReportsProgress(t *testing.T) {
	var seen []Progress
	cfg := Config{Epochs: 3, LearningRate: 0.01, BatchSize: 2, Seed: 1}
	_, err := New(context.Background(), newTestVocab(), testutil.Embedder(t), testBootstrap(), nil, cfg,
		func(p Progress) { seen = append(seen, p) })
	require.NoError(t, err)

	require.Len(t, seen, 3)
	for i, p := range seen {
		assert.Equal(t, i+1, p.Epoch)
		assert.Equal(t, 3, p.Epochs)
		assert.Greater(t, p.Loss, 0.0)
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	_, err := train(nil, 2, DefaultConfig(), nil)
	assert.ErrorIs(t, err, errNoExamples)

	rows := []Example{{Features: []float32{1, 0}, Class: 0}, {Features: []float32{1}, Class: 1}}
	_, err = train(rows, 2, DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = train([]Example{{Features: []float32{1}, Class: 3}}, 2, DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = train([]Example{{Features: []float32{1}, Class: 0}}, 1, Config{}, nil)
	assert.Error(t, err)
}

func TestTrainIsDeterministic(t *testing.T) {
	rows := []Example{
		{Features: []float32{1, 0, 0}, Class: 0},
		{Features: []float32{0, 1, 0}, Class: 1},
		{Features: []float32{0, 0, 1}, Class: 2},
		{Features: []float32{1, 1, 0}, Class: 0},
	}
	cfg := Config{Epochs: 10, LearningRate: 0.05, BatchSize: 2, Seed: 3}
	a, err := train(rows, 3, cfg, nil)
	require.NoError(t, err)
	b, err := train(rows, 3, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, a.w, b.w)
	assert.Equal(t, a.b, b.b)

	s, err := a.scores([]float32{0, 1, 0})
	require.NoError(t, err)
	assert.Len(t, s, 3)
	_, err = a.scores([]float32{1})
	assert.Error(t, err)
}

func TestArgmaxTiesGoToLowestID(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		want   int
	}{
		{"single", []float32{0.3}, 0},
		{"all equal", []float32{0.5, 0.5, 0.5}, 0},
		{"tie after first", []float32{0.1, 0.7, 0.7}, 1},
		{"strict max last", []float32{0.2, 0.2, 0.9}, 2},
		{"max first", []float32{2, 1, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, argmax(tt.scores))
		})
	}
}

func TestClassifyEqualScoresPickFirstTag(t *testing.T) {
	vocab := newTestVocab()
	for _, name := range []string{"First", "Second", "Third"} {
		vocab.TagID(name)
	}
	// Zero weights give every class the same logit.
	c := &TagClassifier{
		model: &model{
			classes: 3,
			dim:     testutil.Dimension,
			w:       make([]float64, 3*testutil.Dimension),
			b:       make([]float64, 3),
		},
		vocab:    vocab,
		embedder: testutil.Embedder(t),
	}

	scores, err := c.Scores(context.Background(), models.Document{Title: "q", Body: "Anything at all."})
	require.NoError(t, err)
	assert.InDelta(t, scores[0], scores[1], 1e-6)
	assert.InDelta(t, scores[1], scores[2], 1e-6)

	tag, err := c.Classify(context.Background(), models.Document{Title: "q", Body: "Anything at all."})
	require.NoError(t, err)
	assert.Equal(t, models.Tag{Name: "First", Manual: false}, tag)
}

func TestTrainingRowsOnePerChunkAndTag(t *testing.T) {
	ctx := context.Background()
	vocab := newTestVocab()
	boot := testBootstrap()
	multi := tagged("multi", "Simmer the onions. Season the broth. Serve it hot.", "Cooking", "Dinner")
	docs := []models.TaggedDocument{
		multi,
		tagged("untagged", "This note has no tags. It adds no rows."),
	}

	rows, err := trainingRows(ctx, vocab, testutil.Embedder(t), boot, docs)
	require.NoError(t, err)

	var bootRows int
	for _, d := range boot.Documents() {
		bootRows += len(segment.ChunkText(d.Body)) * len(d.Tags)
	}
	chunks := len(segment.ChunkText(multi.Body))
	require.Equal(t, 3, chunks)
	assert.Len(t, rows, bootRows+2*chunks)

	perClass := map[int]int{}
	for _, r := range rows {
		perClass[r.Class]++
	}
	assert.Equal(t, chunks, perClass[int(vocab.TagID("Cooking"))])
	assert.Equal(t, chunks, perClass[int(vocab.TagID("Dinner"))])
	assert.Equal(t, 4, vocab.TagCount())
}
