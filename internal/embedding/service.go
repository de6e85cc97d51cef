package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/contextual/internal/apperr"
)

// DefaultCacheSize is the number of embeddings kept in memory.
const DefaultCacheSize = 2048

type cacheKey struct {
	role Role
	text string
}

// Service is the process-wide embedder. The provider is built on first use;
// a failed build is kept and returned to every later caller.
type Service struct {
	build     Builder
	logger    *slog.Logger
	cacheSize int

	mu       sync.Mutex
	built    bool
	provider Provider
	cache    *lru.Cache[cacheKey, []float32]
	err      error
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithCacheSize bounds the embedding cache. Zero disables it.
func WithCacheSize(n int) ServiceOption {
	return func(s *Service) { s.cacheSize = n }
}

// NewService wraps build in a lazily initialised, cached embedder.
func NewService(build Builder, opts ...ServiceOption) *Service {
	s := &Service{build: build, logger: slog.Default(), cacheSize: DefaultCacheSize}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) load() (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return s.provider, s.err
	}
	s.built = true

	p, err := s.build()
	if err != nil {
		s.err = fmt.Errorf("%w: %w", apperr.ErrEmbedderInitFailed, err)
		s.logger.Error("embedder init failed", slog.String("error", err.Error()))
		return nil, s.err
	}
	if s.cacheSize > 0 {
		c, err := lru.New[cacheKey, []float32](s.cacheSize)
		if err != nil {
			_ = p.Close()
			s.err = fmt.Errorf("%w: cache: %w", apperr.ErrEmbedderInitFailed, err)
			return nil, s.err
		}
		s.cache = c
	}
	s.provider = p
	s.logger.Info("embedder ready", slog.Int("dimension", p.Dimension()))
	return p, nil
}

// Dimension returns the provider's vector size.
func (s *Service) Dimension() (int, error) {
	p, err := s.load()
	if err != nil {
		return 0, err
	}
	return p.Dimension(), nil
}

// Embed embeds text as a document passage.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.EmbedFor(ctx, text, RoleDocument)
}

// EmbedFor embeds text for the given role.
func (s *Service) EmbedFor(ctx context.Context, text string, role Role) ([]float32, error) {
	if role == RoleDocument {
		out, err := s.EmbedBatch(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}

	p, err := s.load()
	if err != nil {
		return nil, err
	}
	key := cacheKey{role: role, text: text}
	if v, ok := s.get(key); ok {
		return v, nil
	}
	v, err := p.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding: query: %w", err)
	}
	s.put(key, v)
	return v, nil
}

// EmbedBatch embeds texts as document passages, in order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	p, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if v, ok := s.get(cacheKey{role: RoleDocument, text: text}); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := p.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("embedding: documents: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedding: documents: got %d vectors for %d texts", len(vecs), len(missing))
	}
	for j, v := range vecs {
		out[slots[j]] = v
		s.put(cacheKey{role: RoleDocument, text: missing[j]}, v)
	}
	return out, nil
}

// Close releases the provider if it was built.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return nil
	}
	err := s.provider.Close()
	s.provider = nil
	s.err = fmt.Errorf("%w: service closed", apperr.ErrEmbedderInitFailed)
	return err
}

func (s *Service) get(k cacheKey) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(k)
}

func (s *Service) put(k cacheKey, v []float32) {
	if s.cache != nil {
		s.cache.Add(k, v)
	}
}
