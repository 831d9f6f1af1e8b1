package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks pdfrag/internal/vectorstore Store

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable wraps connectivity and server failures.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrCollectionNotFound is returned when a named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrVectorSizeMismatch is returned when a vector or collection does not
	// match the collection's configured dimension.
	ErrVectorSizeMismatch = errors.New("vector size mismatch")
)

// Record is one stored chunk.
type Record struct {
	ID        string
	Embedding []float32
	Document  string
	Metadata  map[string]any
}

// QueryResult holds parallel slices in rank order (nearest first).
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]any
	Distances []float32 // Cosine distance, 0 is identical
}

// Len returns the number of results.
func (r QueryResult) Len() int {
	return len(r.IDs)
}

func (r *QueryResult) add(id, document string, meta map[string]any, distance float32) {
	r.IDs = append(r.IDs, id)
	r.Documents = append(r.Documents, document)
	r.Metadatas = append(r.Metadatas, meta)
	r.Distances = append(r.Distances, distance)
}

// Filter restricts a query to records whose metadata equals every given
// value exactly.
type Filter map[string]string

// Store is the vector index boundary.
type Store interface {
	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// GetOrCreate ensures the collection exists with vectors of size dim.
	GetOrCreate(ctx context.Context, name string, dim int) error

	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, name string, records []Record) error

	// Query returns up to topK nearest records matching filter.
	Query(ctx context.Context, name string, vector []float32, topK int, filter Filter) (QueryResult, error)

	// Count returns the number of records; a missing collection counts as 0.
	Count(ctx context.Context, name string) (int, error)

	// Peek returns up to n records in storage order, without distances.
	Peek(ctx context.Context, name string, n int) (QueryResult, error)

	// DeleteCollection removes the collection; a missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error
}
