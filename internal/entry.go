// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/contextual/internal/mcpserver"
	"github.com/starford/contextual/internal/workspace"
)

// Run serves the MCP tools over stdio until the client disconnects or the
// process is signalled. With watching enabled, edits made to the default
// workspace's notes directory are indexed as they happen.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{stdin: os.Stdin, stdout: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.Bool("watch", cfg.Workspace.Watch),
		slog.String("embedder", cfg.Embedder.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	eng, ws, err := OpenDefault(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(eng.Registry, mcpserver.Defaults{
		Workspace:        ws.Location(),
		Results:          cfg.Search.Results,
		ContextSentences: cfg.Search.ContextSentences,
	}, logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Workspace.Watch {
		g.Go(func() error {
			return workspace.Watch(gCtx, ws, logger, func(kind, title string) {
				logger.Info("note changed on disk", slog.String("kind", kind), slog.String("title", title))
			})
		})
	}

	// The MCP session ends when the client closes stdin; stop the watcher
	// with it.
	g.Go(func() error {
		defer stop()
		logger.Info("Starting MCP stdio server")
		if err := srv.Listen(gCtx, app.stdin, app.stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
