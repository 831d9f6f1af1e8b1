package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_Embed(t *testing.T) {
	inner := &stubEmbedder{vecs: [][]float32{{0.25, -0.5, 1}, {9, 9, 9}}}
	c, err := NewCachedEmbedder(inner, "")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	first, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, first)

	second, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call must be served from cache")

	other, err := c.Embed(ctx, "world")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9, 9}, other)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &stubEmbedder{dim: 2, errs: []error{unavailable("down")}}
	c, err := NewCachedEmbedder(inner, "")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedder_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := NewCachedEmbedder(&stubEmbedder{vecs: [][]float32{{1, 2}}}, dir)
	require.NoError(t, err)
	_, err = c.Embed(ctx, "persist me")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	inner := &stubEmbedder{vecs: [][]float32{{7, 7}}}
	c, err = NewCachedEmbedder(inner, dir)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	vec, err := c.Embed(ctx, "persist me")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, 0, inner.calls)
}

func TestDecodeVector_Corrupt(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	vec, err := decodeVector(encodeVector([]float32{3.5, -1}))
	require.NoError(t, err)
	assert.Equal(t, []float32{3.5, -1}, vec)
}
