// Package llm provides the embedding providers used to vectorise chunks and
// queries.
package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks pdfrag/internal/llm Embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrEmbeddingUnavailable wraps every provider failure. Indexing skips the
	// affected chunk; search reports it as a distinct status.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrDimensionMismatch is a fatal configuration error: the provider
	// returned a vector whose length differs from the pinned dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidInput is returned for empty or whitespace-only text.
	ErrInvalidInput = errors.New("invalid embedding input")
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	// Embed returns the vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector length, or 0 while it is not yet known.
	Dimension() int
	// Name identifies the provider and model.
	Name() string
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEmbeddingUnavailable, fmt.Sprintf(format, args...))
}

// DimensionGuard pins the dimension of an Embedder. The dimension is either
// configured up front or taken from the first successful call; any later
// vector of a different length is rejected with ErrDimensionMismatch.
type DimensionGuard struct {
	inner Embedder

	mu  sync.Mutex
	dim int
}

// NewDimensionGuard wraps inner. A dim of 0 pins on first use.
func NewDimensionGuard(inner Embedder, dim int) *DimensionGuard {
	if dim == 0 {
		dim = inner.Dimension()
	}
	return &DimensionGuard{inner: inner, dim: dim}
}

// Embed implements Embedder.
func (g *DimensionGuard) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, unavailable("%s returned an empty vector", g.inner.Name())
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dim == 0 {
		g.dim = len(vec)
	}
	if len(vec) != g.dim {
		return nil, fmt.Errorf("%w: %s returned %d values, expected %d", ErrDimensionMismatch, g.inner.Name(), len(vec), g.dim)
	}
	return vec, nil
}

// Dimension implements Embedder.
func (g *DimensionGuard) Dimension() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dim
}

// Name implements Embedder.
func (g *DimensionGuard) Name() string {
	return g.inner.Name()
}
