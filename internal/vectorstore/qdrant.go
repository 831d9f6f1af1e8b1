package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pdfrag/internal/contextutil"
)

// Payload keys reserved by QdrantStore. Everything else in a payload is
// record metadata.
const (
	payloadChunkID  = "chunk_id"
	payloadDocument = "document"
)

// pointNamespace derives Qdrant point UUIDs from chunk ids.
var pointNamespace = uuid.MustParse("6f1c3a52-8d7e-4b0a-9c2f-1e5d4a3b2c10")

// PointID returns the deterministic Qdrant point id of a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// QdrantStore implements Store using Qdrant over gRPC.
type QdrantStore struct {
	client *qdrant.Client
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	host, port, err := qdrantAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client: client,
	}, nil
}

// qdrantAddress maps the HTTP URL of a Qdrant server to its gRPC host and port.
func qdrantAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err != nil {
			return "", 0, fmt.Errorf("invalid Qdrant port %q: %w", parsedURL.Port(), err)
		}
		// gRPC port is typically HTTP port + 1
		port = httpPort + 1
	}
	return host, port, nil
}

// Close releases the underlying connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Ping checks that the server answers.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// wrapErr classifies a client error.
func wrapErr(op, collection string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
}

// GetOrCreate ensures a collection exists with the specified vector size.
// If the collection exists, validates that the vector size matches.
// If it doesn't exist, creates it with the specified vector size.
func (s *QdrantStore) GetOrCreate(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return wrapErr("check collection existence", collection, err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return wrapErr("create collection", collection, err)
		}
		return nil
	}

	info, err := s.GetCollectionInfo(ctx, collection)
	if err != nil {
		return err
	}
	if info.VectorSize == 0 {
		return fmt.Errorf("could not determine vector size of collection %s", collection)
	}
	if info.VectorSize != vectorSize {
		return fmt.Errorf("%w: collection %s stores %d, expected %d", ErrVectorSizeMismatch, collection, info.VectorSize, vectorSize)
	}

	logger.DebugContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
	return nil
}

// Upsert inserts or updates records in the collection.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		payload := make(map[string]any, len(rec.Metadata)+2)
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		payload[payloadChunkID] = rec.ID
		payload[payloadDocument] = rec.Document

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(rec.ID)),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(records), "error", err)
		return wrapErr("upsert points", collection, err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(records))
	return nil
}

// Query performs a similarity search with an optional exact-match filter.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter Filter) (QueryResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK <= 0 {
		return QueryResult{}, fmt.Errorf("topK must be greater than 0")
	}

	limit := uint64(topK)
	queryReq := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFilter(filter),
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "top_k", topK, "error", err)
		return QueryResult{}, wrapErr("search points", collection, err)
	}

	var result QueryResult
	for _, point := range scoredPoints {
		id, document, meta := splitPayload(point.Id, point.Payload)
		// Qdrant reports cosine similarity; convert to distance.
		result.add(id, document, meta, 1-point.Score)
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "top_k", topK, "results", result.Len())
	return result, nil
}

// buildFilter turns an equality filter into Qdrant keyword conditions.
func buildFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter))
	for _, key := range slices.Sorted(maps.Keys(filter)) {
		must = append(must, qdrant.NewMatch(key, filter[key]))
	}
	return &qdrant.Filter{Must: must}
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return 0, wrapErr("check collection existence", collection, err)
	}
	if !exists {
		return 0, nil
	}

	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, wrapErr("count points", collection, err)
	}
	return int(count), nil
}

// Peek returns the first n points of the collection.
func (s *QdrantStore) Peek(ctx context.Context, collection string, n int) (QueryResult, error) {
	if n <= 0 {
		return QueryResult{}, nil
	}
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return QueryResult{}, wrapErr("check collection existence", collection, err)
	}
	if !exists {
		return QueryResult{}, nil
	}

	limit := uint32(n)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return QueryResult{}, wrapErr("scroll points", collection, err)
	}

	var result QueryResult
	for _, point := range points {
		id, document, meta := splitPayload(point.Id, point.Payload)
		result.add(id, document, meta, 0)
	}
	return result, nil
}

// DeleteCollection drops the collection if it exists.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return wrapErr("check collection existence", collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return wrapErr("delete collection", collection, err)
	}
	logger.InfoContext(ctx, "collection deleted", "collection", collection)
	return nil
}

// GetCollectionInfo returns information about a collection including point count.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, wrapErr("get collection info", collection, err)
	}

	var vectorSize int
	if config := info.Config; config != nil && config.Params != nil {
		if vectorsConfig := config.Params.GetVectorsConfig(); vectorsConfig != nil {
			if params := vectorsConfig.GetParams(); params != nil {
				vectorSize = int(params.Size)
			}
		}
	}

	var pointsCount int
	if info.PointsCount != nil {
		pointsCount = int(*info.PointsCount)
	}

	return &CollectionInfo{
		VectorSize:  vectorSize,
		PointsCount: pointsCount,
		Status:      info.Status.String(),
	}, nil
}

// CollectionInfo contains information about a Qdrant collection.
type CollectionInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// splitPayload separates the reserved payload keys from record metadata.
func splitPayload(pointID *qdrant.PointId, payload map[string]*qdrant.Value) (string, string, map[string]any) {
	meta := convertPayloadToMap(payload)

	id, _ := meta[payloadChunkID].(string)
	if id == "" && pointID != nil {
		id = pointID.GetUuid()
	}
	document, _ := meta[payloadDocument].(string)
	delete(meta, payloadChunkID)
	delete(meta, payloadDocument)
	return id, document, meta
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
