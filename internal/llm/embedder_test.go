package llm

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns queued vectors or errors in order.
type stubEmbedder struct {
	mu    sync.Mutex
	dim   int
	vecs  [][]float32
	errs  []error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.vecs) {
		return s.vecs[i], nil
	}
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }
func (s *stubEmbedder) Name() string   { return "stub" }

func TestLocalEmbedder_Embed(t *testing.T) {
	e := NewLocalEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Asthma symptoms include wheezing")
	require.NoError(t, err)
	require.Len(t, a, 64)

	b, err := e.Embed(ctx, "Asthma symptoms include wheezing")
	require.NoError(t, err)
	assert.Equal(t, a, b, "same text must give the same vector")

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	c, err := e.Embed(ctx, "Completely unrelated sentence about trains")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestLocalEmbedder_Embed_Similarity(t *testing.T) {
	e := NewLocalEmbedder(0)
	ctx := context.Background()

	query, err := e.Embed(ctx, "asthma inhaler")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "Using an asthma inhaler correctly")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "Broken bones need a cast")
	require.NoError(t, err)

	assert.Greater(t, dot(query, near), dot(query, far))
}

func TestLocalEmbedder_Embed_InvalidInput(t *testing.T) {
	e := NewLocalEmbedder(16)
	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := e.Embed(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	vec, err := e.Embed(context.Background(), "...")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestLocalEmbedder_Defaults(t *testing.T) {
	e := NewLocalEmbedder(-1)
	assert.Equal(t, DefaultLocalDimension, e.Dimension())
	assert.Equal(t, "local-hash-384", e.Name())
}

func TestDimensionGuard(t *testing.T) {
	t.Run("pins on first vector", func(t *testing.T) {
		inner := &stubEmbedder{vecs: [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8}}}
		g := NewDimensionGuard(inner, 0)
		assert.Equal(t, 0, g.Dimension())

		_, err := g.Embed(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, 3, g.Dimension())

		_, err = g.Embed(context.Background(), "b")
		require.NoError(t, err)

		_, err = g.Embed(context.Background(), "c")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDimensionMismatch))
		assert.False(t, errors.Is(err, ErrEmbeddingUnavailable))
	})

	t.Run("configured dimension", func(t *testing.T) {
		inner := &stubEmbedder{vecs: [][]float32{{1, 2}}}
		g := NewDimensionGuard(inner, 3)
		_, err := g.Embed(context.Background(), "a")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("inner dimension used when not configured", func(t *testing.T) {
		g := NewDimensionGuard(NewLocalEmbedder(32), 0)
		assert.Equal(t, 32, g.Dimension())
	})

	t.Run("provider errors pass through", func(t *testing.T) {
		inner := &stubEmbedder{dim: 3, errs: []error{unavailable("down")}}
		g := NewDimensionGuard(inner, 0)
		_, err := g.Embed(context.Background(), "a")
		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
		assert.Equal(t, 0, g.Dimension())
	})

	t.Run("empty vector is unavailable", func(t *testing.T) {
		inner := &stubEmbedder{vecs: [][]float32{{}}}
		g := NewDimensionGuard(inner, 0)
		_, err := g.Embed(context.Background(), "a")
		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantName string
	}{
		{name: "default is local", cfg: Config{}, wantName: "local-hash-384"},
		{name: "local with dimension", cfg: Config{Provider: ProviderLocal, Dimension: 128}, wantName: "local-hash-128"},
		{name: "remote", cfg: Config{Provider: ProviderRemote, BaseURL: "http://localhost:11434", Model: "m"}, wantName: "remote:m"},
		{name: "remote without url", cfg: Config{Provider: ProviderRemote}, wantErr: true},
		{name: "openai", cfg: Config{Provider: ProviderOpenAI, BaseURL: "http://localhost:8080/v1", Model: "text-embedding-3-small"}, wantName: "openai:text-embedding-3-small"},
		{name: "unknown", cfg: Config{Provider: "magic"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, closeFn, err := New(tt.cfg)
			require.NotNil(t, closeFn)
			defer func() { _ = closeFn() }()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, e.Name())
			_, isGuard := e.(*DimensionGuard)
			assert.True(t, isGuard)
		})
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
