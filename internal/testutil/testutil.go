// Package testutil provides shared test helpers for packages built on the
// embedder.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/contextual/internal/embedding"
)

// Dimension is the vector size of the test embedder.
const Dimension = 256

// Logger discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Embedder returns a deterministic offline embedder that is closed with the
// test.
func Embedder(t *testing.T) *embedding.Service {
	t.Helper()
	svc := embedding.NewService(embedding.NewBuilder(embedding.Config{
		Provider:  embedding.ProviderHashing,
		Dimension: Dimension,
	}), embedding.WithLogger(Logger()))
	t.Cleanup(func() { svc.Close() })
	return svc
}
