// Package workspace coordinates the note mirror, the document index and the
// tag classifier of one workspace directory.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/contextual/internal/classifier"
	"github.com/starford/contextual/internal/embedding"
	"github.com/starford/contextual/internal/index"
	"github.com/starford/contextual/internal/models"
	"github.com/starford/contextual/internal/storage"
)

const (
	notesDir = "notes"
	indexDir = ".contextual"

	// DefaultQueryWindow is how many sentences around the cursor form a
	// context search query.
	DefaultQueryWindow = 3
)

// Workspace is one loaded workspace directory.
type Workspace struct {
	location    string
	notes       storage.Provider
	embedder    embedding.Embedder
	bootstrap   *classifier.Bootstrap
	trainCfg    classifier.Config
	queryWindow int
	logger      *slog.Logger

	idxMu  sync.Mutex
	idx    index.DocumentIndex
	idxErr error

	vocabMu sync.RWMutex
	tagIDs  map[string]uint32
	tags    []string

	// clsMu is held across the whole retrain and classify sequence.
	clsMu sync.Mutex
	cls   *classifier.TagClassifier
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the workspace logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithClassifierConfig sets the training hyperparameters.
func WithClassifierConfig(cfg classifier.Config) Option {
	return func(w *Workspace) { w.trainCfg = cfg }
}

// WithQueryWindow sets how many sentences form a context search query.
func WithQueryWindow(n int) Option {
	return func(w *Workspace) {
		if n > 0 {
			w.queryWindow = n
		}
	}
}

// New prepares the workspace at location, creating its notes directory.
// The index is opened on first use.
func New(location string, emb embedding.Embedder, boot *classifier.Bootstrap, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve %q: %w", location, err)
	}
	w := &Workspace{
		location:    filepath.Clean(abs),
		embedder:    emb,
		bootstrap:   boot,
		trainCfg:    classifier.DefaultConfig(),
		queryWindow: DefaultQueryWindow,
		logger:      slog.Default(),
		tagIDs:      make(map[string]uint32),
	}
	for _, o := range opts {
		o(w)
	}
	w.logger = w.logger.With(slog.String("workspace", w.location))

	dir := filepath.Join(w.location, notesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create notes dir: %w", err)
	}
	w.notes, err = storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return w, nil
}

// Location is the absolute workspace directory.
func (w *Workspace) Location() string { return w.location }

// NotesDir is the directory holding the note mirror.
func (w *Workspace) NotesDir() string { return w.notes.Root() }

// index opens the index on first use. A failed open is remembered and
// returned to every later caller.
func (w *Workspace) index(ctx context.Context) (index.DocumentIndex, error) {
	w.idxMu.Lock()
	defer w.idxMu.Unlock()
	if w.idx == nil && w.idxErr == nil {
		db, err := index.Open(ctx, filepath.Join(w.location, indexDir), w.embedder, index.WithLogger(w.logger))
		if err != nil {
			w.idxErr = fmt.Errorf("workspace: open index: %w", err)
			w.logger.Error("workspace: open index failed", slog.String("error", err.Error()))
		} else {
			w.idx = db
		}
	}
	return w.idx, w.idxErr
}

// Close releases the index if it was opened.
func (w *Workspace) Close() error {
	w.idxMu.Lock()
	defer w.idxMu.Unlock()
	if w.idx == nil {
		return nil
	}
	err := w.idx.Close()
	w.idx = nil
	w.idxErr = fmt.Errorf("workspace: %s: closed", w.location)
	return err
}

// TagID returns the class id of name, assigning the next id on first sight.
func (w *Workspace) TagID(name string) uint32 {
	w.vocabMu.RLock()
	id, ok := w.tagIDs[name]
	w.vocabMu.RUnlock()
	if ok {
		return id
	}

	w.vocabMu.Lock()
	defer w.vocabMu.Unlock()
	if id, ok := w.tagIDs[name]; ok {
		return id
	}
	id = uint32(len(w.tags))
	w.tagIDs[name] = id
	w.tags = append(w.tags, name)
	return id
}

// TagName returns the name behind a class id.
func (w *Workspace) TagName(id uint32) (string, bool) {
	w.vocabMu.RLock()
	defer w.vocabMu.RUnlock()
	if int(id) >= len(w.tags) {
		return "", false
	}
	return w.tags[id], true
}

// TagCount is the number of names seen so far.
func (w *Workspace) TagCount() int {
	w.vocabMu.RLock()
	defer w.vocabMu.RUnlock()
	return len(w.tags)
}

// RetrainClassifier drops the cached model; the next Classify trains a new
// one from the current documents.
func (w *Workspace) RetrainClassifier() {
	w.clsMu.Lock()
	w.cls = nil
	w.clsMu.Unlock()
}

// Classify returns the automatic tag for doc, training the classifier first
// when none is cached.
func (w *Workspace) Classify(ctx context.Context, doc models.Document) (models.Tag, error) {
	w.clsMu.Lock()
	defer w.clsMu.Unlock()

	if w.cls == nil {
		idx, err := w.index(ctx)
		if err != nil {
			return models.Tag{}, err
		}
		docs, err := idx.SelectAll(ctx)
		if err != nil {
			return models.Tag{}, err
		}
		cls, err := classifier.New(ctx, w, w.embedder, w.bootstrap, docs, w.trainCfg, func(p classifier.Progress) {
			w.logger.Debug("classifier: epoch",
				slog.Int("epoch", p.Epoch),
				slog.Int("epochs", p.Epochs),
				slog.Float64("loss", p.Loss))
		})
		if err != nil {
			return models.Tag{}, fmt.Errorf("workspace: train classifier: %w", err)
		}
		w.logger.Info("classifier: trained", slog.Int("documents", len(docs)), slog.Int("classes", cls.Classes()))
		w.cls = cls
	}
	return w.cls.Classify(ctx, doc)
}
