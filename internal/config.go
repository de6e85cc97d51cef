package internal

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/contextual/internal/classifier"
	"github.com/starford/contextual/internal/embedding"
	"github.com/starford/contextual/internal/workspace"
)

func init() {
	// Report validation errors by the keys users write in config.yaml.
	validation.ErrorTag = "yaml"
}

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Workspace  WorkspaceConfig   `yaml:"workspace"`
	Embedder   EmbedderConfig    `yaml:"embedder"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Search     SearchConfig      `yaml:"search"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.Embedder.Validate(); err != nil {
		return err
	}
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	return c.Search.Validate()
}

// ApplicationConfig holds application-level configuration.
//
// Logs go to stderr unless LogFile is set, in which case they go to a
// rotated file. Stdout is reserved for the MCP transport.
type ApplicationConfig struct {
	LogLevel     slog.Level `yaml:"log_level"`
	LogFile      string     `yaml:"log_file"`
	LogMaxSizeMB int        `yaml:"log_max_size_mb"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogMaxSizeMB, validation.Min(0)),
	)
}

// WorkspaceConfig points at the default workspace directory.
type WorkspaceConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// EmbedderConfig selects and tunes the embedding provider.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	CacheDir  string `yaml:"cache_dir"`
	MaxLength int    `yaml:"max_length"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
	Dimension int    `yaml:"dimension"`
}

// Validate validates the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(embedding.ProviderFastEmbed, embedding.ProviderHashing)),
		validation.Field(&c.MaxLength, validation.Min(0)),
		validation.Field(&c.BatchSize, validation.Min(0)),
		validation.Field(&c.CacheSize, validation.Min(0)),
		validation.Field(&c.Dimension, validation.Min(0)),
	)
}

// Embedding converts the section into the provider configuration.
func (c *EmbedderConfig) Embedding() embedding.Config {
	return embedding.Config{
		Provider:  c.Provider,
		Model:     c.Model,
		CacheDir:  c.CacheDir,
		MaxLength: c.MaxLength,
		BatchSize: c.BatchSize,
		Dimension: c.Dimension,
	}
}

// ClassifierConfig holds the tag classifier training hyperparameters.
type ClassifierConfig struct {
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"`
	Seed         uint64  `yaml:"seed"`
}

// Validate validates the classifier configuration.
func (c *ClassifierConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Epochs, validation.Required, validation.Min(1)),
		validation.Field(&c.LearningRate, validation.Required, validation.Min(0.0)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
	)
}

// Training converts the section into classifier hyperparameters.
func (c *ClassifierConfig) Training() classifier.Config {
	return classifier.Config{
		Epochs:       c.Epochs,
		LearningRate: c.LearningRate,
		BatchSize:    c.BatchSize,
		Seed:         c.Seed,
	}
}

// SearchConfig holds defaults for search requests.
type SearchConfig struct {
	QueryWindow      int `yaml:"query_window"`
	ContextSentences int `yaml:"context_sentences"`
	Results          int `yaml:"results"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.QueryWindow, validation.Required, validation.Min(1)),
		validation.Field(&c.ContextSentences, validation.Required, validation.Min(1)),
		validation.Field(&c.Results, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	train := classifier.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel:     slog.LevelInfo,
			LogMaxSizeMB: 10,
		},
		Workspace: WorkspaceConfig{
			Path:  "./workspace",
			Watch: true,
		},
		Embedder: EmbedderConfig{
			Provider:  embedding.ProviderFastEmbed,
			Model:     "BAAI/bge-small-en-v1.5",
			CacheDir:  "./local_cache",
			MaxLength: 512,
			BatchSize: 64,
			CacheSize: embedding.DefaultCacheSize,
		},
		Classifier: ClassifierConfig{
			Epochs:       train.Epochs,
			LearningRate: train.LearningRate,
			BatchSize:    train.BatchSize,
			Seed:         train.Seed,
		},
		Search: SearchConfig{
			QueryWindow:      workspace.DefaultQueryWindow,
			ContextSentences: 3,
			Results:          5,
		},
	}
}
