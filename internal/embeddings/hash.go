package embeddings

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultHashDimension is the vector length of the hashing provider.
const DefaultHashDimension = 384

// HashProvider embeds text by feature hashing lowercased word tokens into a
// fixed number of signed buckets. Vectors are unit length and fully
// deterministic, which makes the provider suitable for tests and for
// deployments without a model.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hashing provider. dim <= 0 selects
// DefaultHashDimension.
func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashProvider{dimension: dim}
}

// EmbedDocuments embeds each text.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embed(t)
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

// Dimension returns the vector length.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op.
func (p *HashProvider) Close() error {
	return nil
}

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)
	tokens := hashTokens(text)
	for _, tok := range tokens {
		h := xxhash.Sum64String(tok)
		idx := int(h % uint64(p.dimension))
		if h>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	Normalize(vec)
	return vec
}

// hashTokens splits text into lowercased letter/digit runs. Text without any
// such run falls back to its whitespace fields so non-blank input never
// yields a zero vector.
func hashTokens(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		tokens = strings.Fields(text)
	}
	return tokens
}
