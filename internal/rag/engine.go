package rag

import (
	"context"
	"errors"
	"strings"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
	"pdfrag/internal/llm"
	"pdfrag/internal/vectorstore"
)

const (
	// DefaultTopK is used when a query does not set TopK.
	DefaultTopK = 3
	// DefaultMaxTopK caps TopK.
	DefaultMaxTopK = 20
)

// Engine retrieves indexed chunks relevant to a query.
type Engine interface {
	// Search embeds the query and returns the nearest chunks with attribution.
	Search(ctx context.Context, q Query) Response
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder    llm.Embedder
	vectorStore vectorstore.Store
	collection  string
	defaultTopK int
	maxTopK     int
}

// Option configures the engine.
type Option func(*ragEngine)

// WithMaxTopK sets the upper bound of TopK.
func WithMaxTopK(n int) Option {
	return func(e *ragEngine) {
		if n > 0 {
			e.maxTopK = n
		}
	}
}

// WithDefaultTopK sets TopK for queries that leave it unset.
func WithDefaultTopK(n int) Option {
	return func(e *ragEngine) {
		if n > 0 {
			e.defaultTopK = n
		}
	}
}

// NewEngine creates a new retrieval engine over collection.
func NewEngine(
	embedder llm.Embedder,
	vectorStore vectorstore.Store,
	collection string,
	opts ...Option,
) Engine {
	e := &ragEngine{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		defaultTopK: DefaultTopK,
		maxTopK:     DefaultMaxTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// clampTopK maps an unset TopK to the default and bounds it to [1, maxTopK].
func (e *ragEngine) clampTopK(k int) int {
	if k == 0 {
		k = e.defaultTopK
	}
	return max(1, min(k, e.maxTopK))
}

// Search implements Engine.
func (e *ragEngine) Search(ctx context.Context, q Query) Response {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(q.Text) == "" {
		return Response{Status: StatusNoQuery, Text: MessageNoQuery}
	}

	k := e.clampTopK(q.TopK)
	logger.InfoContext(ctx, "search started",
		"query_length", len(q.Text),
		"top_k", k,
		"category", q.Category,
	)

	queryVector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return Response{Status: StatusEmbeddingUnavailable, Text: MessageEmbeddingUnavailable}
	}

	var filter vectorstore.Filter
	if q.Category != "" {
		filter = vectorstore.Filter{indexer.MetaCategory: q.Category}
	}

	res, err := e.vectorStore.Query(ctx, e.collection, queryVector, k, filter)
	if err != nil {
		// A collection that was never built holds no documents.
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			logger.WarnContext(ctx, "collection not found", "collection", e.collection)
			return Response{Status: StatusNoResults, Text: MessageNoResults}
		}
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return Response{Status: StatusStoreUnavailable, Text: MessageStoreUnavailable}
	}

	if res.Len() == 0 {
		logger.InfoContext(ctx, "no search results found")
		return Response{Status: StatusNoResults, Text: MessageNoResults}
	}

	results := make([]SearchResult, 0, res.Len())
	for i := range res.IDs {
		meta := res.Metadatas[i]
		results = append(results, SearchResult{
			ChunkID:      res.IDs[i],
			ChunkText:    res.Documents[i],
			Source:       metaString(meta, indexer.MetaSource),
			Category:     metaString(meta, indexer.MetaCategory),
			SectionTitle: metaString(meta, indexer.MetaSection),
			Distance:     res.Distances[i],
			Rank:         i + 1,
		})
	}

	logger.DebugContext(ctx, "top search result",
		"chunk_id", results[0].ChunkID,
		"distance", results[0].Distance,
		"source", results[0].Source,
	)
	logger.InfoContext(ctx, "search completed", "results_count", len(results), "top_k", k)

	return Response{
		Status:  StatusOK,
		Text:    formatResults(results),
		Results: results,
	}
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}
