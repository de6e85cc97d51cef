// Package embedding provides the text embedder used by the index and the
// classifier.
package embedding

import (
	"context"
	"fmt"
)

// Role tells asymmetric models whether text is a query or a passage.
type Role int

const (
	RoleDocument Role = iota
	RoleQuery
)

func (r Role) String() string {
	if r == RoleQuery {
		return "query"
	}
	return "document"
}

// Embedder maps text to fixed-size vectors. Implementations are safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedFor(ctx context.Context, text string, role Role) ([]float32, error)
}

// Provider is a loaded model.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Close() error
}

// Config selects and tunes a provider.
type Config struct {
	Provider  string
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
	Dimension int
}

const (
	ProviderFastEmbed = "fastembed"
	ProviderHashing   = "hashing"
)

// Builder constructs a provider. It runs at most once per Service.
type Builder func() (Provider, error)

// NewBuilder returns the builder for cfg.Provider.
func NewBuilder(cfg Config) Builder {
	return func() (Provider, error) {
		switch cfg.Provider {
		case ProviderFastEmbed:
			p, err := NewFastEmbedProvider(FastEmbedConfig{
				Model:     cfg.Model,
				CacheDir:  cfg.CacheDir,
				MaxLength: cfg.MaxLength,
				BatchSize: cfg.BatchSize,
			})
			if err != nil {
				return nil, err
			}
			return p, nil
		case ProviderHashing:
			return NewHashingProvider(cfg.Dimension), nil
		default:
			return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
		}
	}
}
