package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/models"
)

// SaveNote mirrors body to the notes directory and indexes it. Saving an
// unchanged note writes nothing to the index. It reports whether the index
// changed and returns the note with its tags.
func (w *Workspace) SaveNote(ctx context.Context, title, body string) (models.TaggedDocument, bool, error) {
	if err := w.notes.Write(title, body); err != nil {
		return models.TaggedDocument{}, false, fmt.Errorf("workspace: save %q: %w", title, err)
	}
	return w.indexNote(ctx, models.Document{Title: title, Body: body})
}

// indexNote updates the index without touching the mirror. Manual tags of a
// replaced note are kept; its automatic tag is recomputed.
func (w *Workspace) indexNote(ctx context.Context, doc models.Document) (models.TaggedDocument, bool, error) {
	idx, err := w.index(ctx)
	if err != nil {
		return models.TaggedDocument{}, false, err
	}

	var manual []models.Tag
	prev, err := idx.Get(ctx, doc.Title)
	switch {
	case err == nil:
		manual = models.Manual(prev.Tags)
	case !errors.Is(err, apperr.ErrDocumentDoesNotExist):
		return models.TaggedDocument{}, false, err
	}

	_, changed, err := idx.Upsert(ctx, doc, manual)
	if err != nil {
		return models.TaggedDocument{}, false, fmt.Errorf("workspace: index %q: %w", doc.Title, err)
	}
	if !changed {
		return prev, false, nil
	}

	tags := manual
	auto, err := w.Classify(ctx, doc)
	switch {
	case err == nil:
		tags = models.SortDedup(append(manual, auto))
		if err := idx.SetTags(ctx, doc.Title, tags); err != nil {
			return models.TaggedDocument{}, true, err
		}
	case errors.Is(err, apperr.ErrEmptyClassificationInput):
		w.logger.Debug("workspace: nothing to classify", slog.String("title", doc.Title))
	default:
		return models.TaggedDocument{}, true, err
	}

	w.logger.Debug("workspace: indexed", slog.String("title", doc.Title), slog.Int("tags", len(tags)))
	return models.TaggedDocument{Document: doc, Tags: tags}, true, nil
}

// RemoveNote deletes the mirror file and the index entry. It reports
// whether the index held the note.
func (w *Workspace) RemoveNote(ctx context.Context, title string) (bool, error) {
	if err := w.notes.Delete(title); err != nil {
		return false, fmt.Errorf("workspace: remove %q: %w", title, err)
	}
	idx, err := w.index(ctx)
	if err != nil {
		return false, err
	}
	return idx.Delete(ctx, title)
}

// ReadNote returns the mirrored body of title.
func (w *Workspace) ReadNote(_ context.Context, title string) (string, error) {
	body, err := w.notes.Read(title)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("workspace: read %q: %w", title, apperr.ErrDocumentDoesNotExist)
	}
	return body, err
}

// GetTags returns the tags of title.
func (w *Workspace) GetTags(ctx context.Context, title string) ([]models.Tag, error) {
	idx, err := w.index(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := idx.Get(ctx, title)
	if err != nil {
		return nil, err
	}
	return doc.Tags, nil
}

// SetTags replaces the manual tags of title. The automatic tag survives
// unless a manual tag has the same name. The classifier is retrained on the
// next classification.
func (w *Workspace) SetTags(ctx context.Context, title string, names []string) ([]models.Tag, error) {
	manual, err := models.ManualTags(names)
	if err != nil {
		return nil, err
	}
	idx, err := w.index(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := idx.Get(ctx, title)
	if err != nil {
		return nil, err
	}

	merged := models.SortDedup(append(manual, models.Automatic(doc.Tags)...))
	if err := idx.SetTags(ctx, title, merged); err != nil {
		return nil, err
	}
	w.RetrainClassifier()
	return merged, nil
}

// Files lists every indexed note with its tags, ordered by title.
func (w *Workspace) Files(ctx context.Context) ([]models.TaggedDocument, error) {
	idx, err := w.index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.SelectAll(ctx)
}
