package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultLocalDimension is the vector size of the local embedder.
const DefaultLocalDimension = 384

// LocalEmbedder is an in-process embedding model based on feature hashing.
// Each lower-cased word is hashed into one of dim buckets with a hash-derived
// sign, word bigrams are added at half weight, and the result is
// L2-normalised. Identical text always yields the identical vector.
type LocalEmbedder struct {
	dim int
}

// NewLocalEmbedder creates a local embedder. A non-positive dim selects
// DefaultLocalDimension.
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &LocalEmbedder{dim: dim}
}

// Embed implements Embedder.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("%v", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, ErrInvalidInput)
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		// Punctuation only: hash the raw text so the vector is still non-zero.
		tokens = []string{strings.TrimSpace(text)}
	}

	acc := make([]float64, e.dim)
	for i, tok := range tokens {
		e.add(acc, tok, 1)
		if i > 0 {
			e.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (e *LocalEmbedder) add(acc []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(e.dim)
	if h>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

// Dimension implements Embedder.
func (e *LocalEmbedder) Dimension() int {
	return e.dim
}

// Name implements Embedder.
func (e *LocalEmbedder) Name() string {
	return fmt.Sprintf("local-hash-%d", e.dim)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
