package workspace

import (
	"context"
	"log/slog"

	"github.com/starford/contextual/internal/models"
)

// Sync brings the index in line with the note mirror:
//   - new or edited files are re-indexed
//   - notes whose file is gone are removed from the index
func (w *Workspace) Sync(ctx context.Context) error {
	idx, err := w.index(ctx)
	if err != nil {
		return err
	}
	files, err := w.notes.List()
	if err != nil {
		return err
	}
	checksums, err := idx.Checksums(ctx)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Title] = struct{}{}
		if checksums[f.Title] == f.Checksum {
			continue
		}
		body, err := w.notes.Read(f.Title)
		if err != nil {
			w.logger.Warn("sync: read failed", slog.String("title", f.Title), slog.String("error", err.Error()))
			continue
		}
		if _, _, err := w.indexNote(ctx, models.Document{Title: f.Title, Body: body}); err != nil {
			w.logger.Warn("sync: index failed", slog.String("title", f.Title), slog.String("error", err.Error()))
		} else {
			w.logger.Debug("sync: indexed", slog.String("title", f.Title))
		}
	}

	for title := range checksums {
		if _, ok := disk[title]; ok {
			continue
		}
		if _, err := idx.Delete(ctx, title); err != nil {
			w.logger.Warn("sync: delete failed", slog.String("title", title), slog.String("error", err.Error()))
		} else {
			w.logger.Debug("sync: removed stale", slog.String("title", title))
		}
	}
	return nil
}
