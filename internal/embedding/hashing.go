package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashingDimension is used when no dimension is configured.
const DefaultHashingDimension = 384

// HashingProvider embeds text as an L2-normalised bag of hashed, lowercased
// word tokens. It needs no model files and is deterministic, which makes it
// the offline fallback and the test embedder.
type HashingProvider struct {
	dim int
}

// NewHashingProvider returns a provider producing vectors of size dim.
func NewHashingProvider(dim int) *HashingProvider {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingProvider{dim: dim}
}

func (p *HashingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *HashingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

func (p *HashingProvider) Dimension() int { return p.dim }

func (p *HashingProvider) Close() error { return nil }

func (p *HashingProvider) vector(text string) []float32 {
	v := make([]float32, p.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%uint32(p.dim)]++
	}
	if len(tokens) == 0 {
		// Keep the vector non-zero so it can be normalised.
		v[0] = 1
		return v
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
