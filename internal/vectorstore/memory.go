package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store using exhaustive cosine search.
// Writes to the same id are last-write-wins; a mutex serialises access.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dim     int
	order   []string // Insertion order of ids
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.dim != dim {
			return fmt.Errorf("%w: collection %s stores %d, expected %d", ErrVectorSizeMismatch, name, c.dim, dim)
		}
		return nil
	}
	s.collections[name] = &memoryCollection{dim: dim, records: make(map[string]Record)}
	return nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, name string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	for _, rec := range records {
		if len(rec.Embedding) != c.dim {
			return fmt.Errorf("%w: record %s has %d values, collection %s stores %d", ErrVectorSizeMismatch, rec.ID, len(rec.Embedding), name, c.dim)
		}
	}
	for _, rec := range records {
		if _, exists := c.records[rec.ID]; !exists {
			c.order = append(c.order, rec.ID)
		}
		c.records[rec.ID] = cloneRecord(rec)
	}
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, name string, vector []float32, topK int, filter Filter) (QueryResult, error) {
	if topK <= 0 {
		return QueryResult{}, fmt.Errorf("topK must be greater than 0")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if len(vector) != c.dim {
		return QueryResult{}, fmt.Errorf("%w: query has %d values, collection %s stores %d", ErrVectorSizeMismatch, len(vector), name, c.dim)
	}

	type hit struct {
		id       string
		distance float32
	}
	hits := make([]hit, 0, len(c.order))
	for _, id := range c.order {
		rec := c.records[id]
		if !matches(rec.Metadata, filter) {
			continue
		}
		hits = append(hits, hit{id: id, distance: 1 - cosine(vector, rec.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].distance < hits[j].distance
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	var result QueryResult
	for _, h := range hits {
		rec := c.records[h.id]
		result.add(rec.ID, rec.Document, cloneMeta(rec.Metadata), h.distance)
	}
	return result, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.records), nil
	}
	return 0, nil
}

// Peek implements Store.
func (s *MemoryStore) Peek(ctx context.Context, name string, n int) (QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result QueryResult
	c, ok := s.collections[name]
	if !ok {
		return result, nil
	}
	for _, id := range c.order {
		if result.Len() >= n {
			break
		}
		rec := c.records[id]
		result.add(rec.ID, rec.Document, cloneMeta(rec.Metadata), 0)
	}
	return result, nil
}

// DeleteCollection implements Store.
func (s *MemoryStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func matches(meta map[string]any, filter Filter) bool {
	for key, want := range filter {
		got, ok := meta[key].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func cloneRecord(rec Record) Record {
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	rec.Metadata = cloneMeta(rec.Metadata)
	return rec
}

func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
