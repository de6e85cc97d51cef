package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/contextual/internal/classifier"
	"github.com/starford/contextual/internal/embedding"
	"github.com/starford/contextual/internal/workspace"
)

// NewLogger builds the JSON logger described by cfg.
func NewLogger(cfg ApplicationConfig) *slog.Logger {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: 3,
			Compress:   true,
		}
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

// Engine holds the long-lived services shared by every workspace.
type Engine struct {
	Embedder  *embedding.Service
	Bootstrap *classifier.Bootstrap
	Registry  *workspace.Registry

	config *Config
}

// NewEngine wires the embedder, the bootstrap corpus and the workspace
// registry. Nothing is loaded from disk until first use.
func NewEngine(cfg *Config, logger *slog.Logger) (*Engine, error) {
	boot, err := classifier.DefaultBootstrap()
	if err != nil {
		return nil, fmt.Errorf("load bootstrap corpus: %w", err)
	}
	emb := embedding.NewService(embedding.NewBuilder(cfg.Embedder.Embedding()),
		embedding.WithLogger(logger),
		embedding.WithCacheSize(cfg.Embedder.CacheSize))

	registry := workspace.NewRegistry(func(location string) (*workspace.Workspace, error) {
		return workspace.New(location, emb, boot,
			workspace.WithLogger(logger),
			workspace.WithClassifierConfig(cfg.Classifier.Training()),
			workspace.WithQueryWindow(cfg.Search.QueryWindow))
	})
	return &Engine{Embedder: emb, Bootstrap: boot, Registry: registry, config: cfg}, nil
}

// Default returns the configured workspace, loading it on first use.
func (e *Engine) Default() (*workspace.Workspace, error) {
	h, err := e.Registry.Lookup(e.config.Workspace.Path)
	if err != nil {
		return nil, err
	}
	return e.Registry.Get(h)
}

// Close unloads every workspace and releases the embedder.
func (e *Engine) Close() error {
	return errors.Join(e.Registry.Close(), e.Embedder.Close())
}

// OpenDefault builds an engine and syncs its default workspace with the
// note mirror. The default workspace is pinned: the watcher and the tools
// hold on to it, so it cannot be unloaded or deleted while the engine runs.
// Callers own the returned engine.
func OpenDefault(ctx context.Context, cfg *Config, logger *slog.Logger) (*Engine, *workspace.Workspace, error) {
	eng, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	h, err := eng.Registry.Lookup(cfg.Workspace.Path)
	if err == nil {
		err = eng.Registry.Pin(h)
	}
	var ws *workspace.Workspace
	if err == nil {
		ws, err = eng.Registry.Get(h)
	}
	if err != nil {
		_ = eng.Close()
		return nil, nil, fmt.Errorf("load workspace: %w", err)
	}
	if err := ws.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return eng, ws, nil
}
