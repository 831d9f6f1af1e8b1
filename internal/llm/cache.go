package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"pdfrag/internal/contextutil"
)

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (bl *badgerLogger) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// CachedEmbedder stores vectors in BadgerDB keyed by provider name and a
// digest of the text, so rebuilding an index does not recompute vectors.
type CachedEmbedder struct {
	inner Embedder
	db    *badger.DB
}

// NewCachedEmbedder opens (or creates) the cache at dir and wraps inner.
// An empty dir keeps the cache in memory.
func NewCachedEmbedder(inner Embedder, dir string) (*CachedEmbedder, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: slog.Default().With("component", "embedding-cache")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, db: db}, nil
}

// Close closes the underlying database.
func (c *CachedEmbedder) Close() error {
	return c.db.Close()
}

// Embed implements Embedder. Cache read and write failures fall through to
// the wrapped provider.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)
	key := c.key(text)

	vec, err := c.get(key)
	if err == nil {
		return vec, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		logger.WarnContext(ctx, "embedding cache read failed", "error", err)
	}

	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.put(key, vec); err != nil {
		logger.WarnContext(ctx, "embedding cache write failed", "error", err)
	}
	return vec, nil
}

// Dimension implements Embedder.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Name implements Embedder.
func (c *CachedEmbedder) Name() string {
	return c.inner.Name()
}

func (c *CachedEmbedder) key(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return []byte("emb/" + c.inner.Name() + "/" + hex.EncodeToString(sum[:]))
}

func (c *CachedEmbedder) get(key []byte) ([]float32, error) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeVector(val)
			if err != nil {
				return err
			}
			vec = decoded
			return nil
		})
	})
	return vec, err
}

func (c *CachedEmbedder) put(key []byte, vec []float32) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeVector(vec))
	})
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
