package service

import (
	"context"
	"fmt"
	"sort"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
	"pdfrag/internal/vectorstore"
)

// uncategorized labels chunks of documents at the input root.
const uncategorized = "uncategorized"

// previewRunes bounds the sample text returned per chunk.
const previewRunes = 120

// SampleChunk is one stored chunk returned by Stats.
type SampleChunk struct {
	ID       string `json:"id"`
	Source   string `json:"source,omitempty"`
	Category string `json:"category,omitempty"`
	Section  string `json:"section,omitempty"`
	Preview  string `json:"preview"`
}

// CollectionStats summarises the stored collection.
type CollectionStats struct {
	Collection string         `json:"collection"`
	Count      int            `json:"count"`
	Sample     []SampleChunk  `json:"sample"`
	Categories map[string]int `json:"categories"` // Tally over the sample
	Sources    []string       `json:"sources"`    // Distinct sources in the sample, sorted
}

// CollectionService inspects and manages the vector collection.
type CollectionService interface {
	// Stats returns the record count and a sample of up to sampleSize chunks.
	Stats(ctx context.Context, sampleSize int) (CollectionStats, error)
	// Delete removes the collection.
	Delete(ctx context.Context) error
}

// collectionService implements CollectionService.
type collectionService struct {
	store      vectorstore.Store
	collection string
}

// NewCollectionService creates a new CollectionService.
func NewCollectionService(store vectorstore.Store, collection string) CollectionService {
	return &collectionService{store: store, collection: collection}
}

// Stats implements CollectionService.
func (s *collectionService) Stats(ctx context.Context, sampleSize int) (CollectionStats, error) {
	if sampleSize <= 0 {
		return CollectionStats{}, &ValidationError{Field: "sample", Message: "must be greater than 0"}
	}

	count, err := s.store.Count(ctx, s.collection)
	if err != nil {
		return CollectionStats{}, fmt.Errorf("%w: failed to count collection: %w", ErrExternalService, err)
	}

	stats := CollectionStats{
		Collection: s.collection,
		Count:      count,
		Sample:     []SampleChunk{},
		Categories: make(map[string]int),
		Sources:    []string{},
	}
	if count == 0 {
		return stats, nil
	}

	peek, err := s.store.Peek(ctx, s.collection, sampleSize)
	if err != nil {
		return CollectionStats{}, fmt.Errorf("%w: failed to peek collection: %w", ErrExternalService, err)
	}

	seen := make(map[string]bool)
	for i, id := range peek.IDs {
		meta := peek.Metadatas[i]
		chunk := SampleChunk{
			ID:       id,
			Source:   metaString(meta, indexer.MetaSource),
			Category: metaString(meta, indexer.MetaCategory),
			Section:  metaString(meta, indexer.MetaSection),
			Preview:  preview(peek.Documents[i]),
		}
		stats.Sample = append(stats.Sample, chunk)

		category := chunk.Category
		if category == "" {
			category = uncategorized
		}
		stats.Categories[category]++

		if chunk.Source != "" && !seen[chunk.Source] {
			seen[chunk.Source] = true
			stats.Sources = append(stats.Sources, chunk.Source)
		}
	}
	sort.Strings(stats.Sources)
	return stats, nil
}

// Delete implements CollectionService.
func (s *collectionService) Delete(ctx context.Context) error {
	if err := s.store.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("%w: failed to delete collection: %w", ErrExternalService, err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "collection deleted", "collection", s.collection)
	return nil
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
