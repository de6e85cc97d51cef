package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/starford/contextual/pkg/config"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Search.QueryWindow)
	assert.Equal(t, 2048, cfg.Embedder.CacheSize)
}

func TestWorkspaceConfig_PathRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Workspace.Path = ""
	assert.Error(t, cfg.Validate())
}

func TestEmbedderConfig_UnknownProvider(t *testing.T) {
	cfg := EmbedderConfig{Provider: "magic", CacheSize: 1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}

func TestClassifierConfig_RejectsZeroEpochs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Classifier.Epochs = 0
	assert.Error(t, cfg.Validate())
}

func TestSearchConfig_RejectsZeroResults(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Search.Results = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_ErrorsNameYAMLKeys(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Search.QueryWindow = 0
	cfg.Search.ContextSentences = 0
	err := cfg.Search.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query_window")
	assert.Contains(t, err.Error(), "context_sentences")
	assert.NotContains(t, err.Error(), "QueryWindow")

	cfg = NewDefaultConfig()
	cfg.App.LogMaxSizeMB = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_max_size_mb")
}

func TestConfig_LoadFromYAML(t *testing.T) {
	t.Setenv("CONTEXTUAL_TEST_WS", "/tmp/notes-ws")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
workspace:
  path: ${CONTEXTUAL_TEST_WS}
  watch: false
embedder:
  provider: hashing
  dimension: 128
classifier:
  epochs: 20
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(path, cfg))

	assert.Equal(t, slog.LevelDebug, cfg.App.LogLevel)
	assert.Equal(t, "/tmp/notes-ws", cfg.Workspace.Path)
	assert.False(t, cfg.Workspace.Watch)

	emb := cfg.Embedder.Embedding()
	assert.Equal(t, "hashing", emb.Provider)
	assert.Equal(t, 128, emb.Dimension)

	training := cfg.Classifier.Training()
	assert.Equal(t, 20, training.Epochs)
	assert.Equal(t, 50, training.BatchSize)
}

func TestConfig_ShippedFileLoads(t *testing.T) {
	t.Setenv("CONTEXTUAL_WORKSPACE", "")
	t.Setenv("CONTEXTUAL_LOG_FILE", "")

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(filepath.Join("..", "config", "config.yaml"), cfg))
	assert.Equal(t, "./workspace", cfg.Workspace.Path)
	assert.Empty(t, cfg.App.LogFile)
	assert.Equal(t, "fastembed", cfg.Embedder.Provider)
}
