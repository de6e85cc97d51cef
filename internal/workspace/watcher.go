package workspace

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/contextual/internal/models"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, title string)

const reconcileDelay = 200 * time.Millisecond

// Watch follows edits made to the notes directory outside the engine and
// keeps the index in step until ctx is cancelled. It calls cb (if non-nil)
// after each index change.
//
// Rename events remove the old title right away and trigger a debounced
// Sync that picks up the new name.
func Watch(ctx context.Context, ws *Workspace, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(ws.NotesDir()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", ws.NotesDir()))

	var (
		reconcileTimer *time.Timer
		reconcileCh    <-chan time.Time
	)
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := ws.Sync(ctx); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			title, ok := ws.notes.Title(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				body, err := ws.notes.Read(title)
				if err != nil {
					logger.Warn("watcher: read failed", slog.String("title", title), slog.String("error", err.Error()))
					continue
				}
				_, changed, err := ws.indexNote(ctx, models.Document{Title: title, Body: body})
				if err != nil {
					logger.Warn("watcher: index failed", slog.String("title", title), slog.String("error", err.Error()))
					continue
				}
				if !changed {
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("title", title), slog.String("op", kind))
				if cb != nil {
					cb(kind, title)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
				idx, err := ws.index(ctx)
				if err != nil {
					continue
				}
				removed, err := idx.Delete(ctx, title)
				if err != nil {
					logger.Warn("watcher: delete failed", slog.String("title", title), slog.String("error", err.Error()))
					continue
				}
				if removed {
					logger.Debug("watcher: deleted", slog.String("title", title))
					if cb != nil {
						cb("deleted", title)
					}
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
