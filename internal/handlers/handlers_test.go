package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pdfrag/internal/llm"
	llm_mocks "pdfrag/internal/llm/mocks"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
	service_mocks "pdfrag/internal/service/mocks"
	"pdfrag/internal/storage"
	"pdfrag/internal/vectorstore"
	vectorstore_mocks "pdfrag/internal/vectorstore/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const testCollection = "health_assistant"

// fakeEngine returns a fixed response and records the last query.
type fakeEngine struct {
	resp rag.Response
	got  rag.Query
}

func (f *fakeEngine) Search(_ context.Context, q rag.Query) rag.Response {
	f.got = q
	return f.resp
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error
}

func TestEmbedHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*llm_mocks.MockEmbedder)
		wantStatus int
		wantError  string
	}{
		{
			name: "success",
			body: `{"text":"hello"}`,
			setupMock: func(m *llm_mocks.MockEmbedder) {
				m.EXPECT().Embed(gomock.Any(), "hello").Return([]float32{0.5, -0.5}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid json",
			body:       `{"text":`,
			setupMock:  func(m *llm_mocks.MockEmbedder) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "empty text",
			body:       `{"text":""}`,
			setupMock:  func(m *llm_mocks.MockEmbedder) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation error on field text",
		},
		{
			name: "provider down",
			body: `{"text":"hello"}`,
			setupMock: func(m *llm_mocks.MockEmbedder) {
				m.EXPECT().Embed(gomock.Any(), "hello").
					Return(nil, fmt.Errorf("%w: connection refused", llm.ErrEmbeddingUnavailable))
			},
			wantStatus: http.StatusBadGateway,
			wantError:  "External service error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			embedder := llm_mocks.NewMockEmbedder(ctrl)
			tt.setupMock(embedder)

			handler := NewEmbedHandler(service.NewEmbedService(embedder))
			req := httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Contains(t, decodeError(t, w.Body), tt.wantError)
				return
			}
			var resp EmbedResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, []float32{0.5, -0.5}, resp.Embedding)
		})
	}
}

func TestSearchHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		resp       rag.Response
		wantStatus int
	}{
		{
			name: "results",
			body: `{"query":"flu","top_k":2,"category":"mhml"}`,
			resp: rag.Response{
				Status:  rag.StatusOK,
				Text:    "Flu.\n[Source: flu.pdf]",
				Results: []rag.SearchResult{{ChunkID: "flu.pdf_chunk_0", Rank: 1}},
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no results",
			body:       `{"query":"flu"}`,
			resp:       rag.Response{Status: rag.StatusNoResults, Text: rag.MessageNoResults},
			wantStatus: http.StatusOK,
		},
		{
			name:       "embedding unavailable",
			body:       `{"query":"flu"}`,
			resp:       rag.Response{Status: rag.StatusEmbeddingUnavailable, Text: rag.MessageEmbeddingUnavailable},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "store unavailable",
			body:       `{"query":"flu"}`,
			resp:       rag.Response{Status: rag.StatusStoreUnavailable, Text: rag.MessageStoreUnavailable},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{resp: tt.resp}
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			NewSearchHandler(engine).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var got rag.Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, tt.resp.Status, got.Status)
			assert.Equal(t, tt.resp.Text, got.Text)
			assert.NotNil(t, got.Results)
		})
	}
}

func TestSearchHandler_DecodesQuery(t *testing.T) {
	engine := &fakeEngine{resp: rag.Response{Status: rag.StatusNoResults}}
	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"anxiety","top_k":5,"category":"mhml"}`))
	NewSearchHandler(engine).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, rag.Query{Text: "anxiety", TopK: 5, Category: "mhml"}, engine.got)
}

func TestIndexHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		reset      bool
		startErr   error
		wantStatus int
	}{
		{name: "start", wantStatus: http.StatusAccepted},
		{name: "reset", query: "?reset=true", reset: true, wantStatus: http.StatusAccepted},
		{name: "already running", startErr: service.ErrConflict, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ingest := service_mocks.NewMockIngestService(ctrl)
			ingest.EXPECT().Start(gomock.Any(), tt.reset).Return(tt.startErr)

			req := httptest.NewRequest(http.MethodPost, "/api/index"+tt.query, nil)
			w := httptest.NewRecorder()
			NewIndexHandler(ingest).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.startErr != nil {
				assert.Equal(t, "ingestion already running", decodeError(t, w.Body))
				return
			}
			var resp IndexResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "accepted", resp.Status)
		})
	}
}

func TestIndexHandler_Status(t *testing.T) {
	ctrl := gomock.NewController(t)
	ingest := service_mocks.NewMockIngestService(ctrl)
	ingest.EXPECT().Status().Return(service.IngestStatus{Running: true})

	w := httptest.NewRecorder()
	NewIndexHandler(ingest).Status(w, httptest.NewRequest(http.MethodGet, "/api/index", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var got service.IngestStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.True(t, got.Running)
}

func TestCollectionHandler_Stats(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	require.NoError(t, store.GetOrCreate(ctx, testCollection, 2))
	for i := range 7 {
		require.NoError(t, store.Upsert(ctx, testCollection, []vectorstore.Record{{
			ID:        fmt.Sprintf("a.pdf_chunk_%d", i),
			Embedding: []float32{1, 0},
			Document:  "text",
			Metadata:  map[string]any{"source": "a.pdf"},
		}}))
	}
	handler := NewCollectionHandler(service.NewCollectionService(store, testCollection))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantSample int
	}{
		{name: "default sample", wantStatus: http.StatusOK, wantSample: 5},
		{name: "custom sample", query: "?sample=2", wantStatus: http.StatusOK, wantSample: 2},
		{name: "non-integer sample", query: "?sample=x", wantStatus: http.StatusBadRequest},
		{name: "zero sample", query: "?sample=0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Stats(w, httptest.NewRequest(http.MethodGet, "/api/collection"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got service.CollectionStats
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, 7, got.Count)
			assert.Len(t, got.Sample, tt.wantSample)
			assert.Equal(t, tt.wantSample, got.Categories["uncategorized"])
		})
	}
}

func TestCollectionHandler_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := vectorstore_mocks.NewMockStore(ctrl)
	store.EXPECT().Count(gomock.Any(), testCollection).
		Return(0, fmt.Errorf("%w: dial tcp", vectorstore.ErrStoreUnavailable))
	store.EXPECT().DeleteCollection(gomock.Any(), testCollection).Return(nil)
	handler := NewCollectionHandler(service.NewCollectionService(store, testCollection))

	w := httptest.NewRecorder()
	handler.Stats(w, httptest.NewRequest(http.MethodGet, "/api/collection", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	handler.Delete(w, httptest.NewRequest(http.MethodDelete, "/api/collection", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func newTestLedger(t *testing.T) *storage.RunRepo {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))
	return storage.NewRunRepo(db)
}

func TestRunsHandler(t *testing.T) {
	ledger := newTestLedger(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2"} {
		run := storage.Run{
			ID:         id,
			Collection: testCollection,
			InputDir:   "/data",
			StartedAt:  started.Add(time.Duration(i) * time.Hour),
			FinishedAt: started.Add(time.Duration(i)*time.Hour + time.Minute),
			Discovered: 1,
			Indexed:    1,
		}
		docs := []storage.RunDocument{{RunID: id, DocumentID: "a.pdf", RelPath: "a.pdf", Outcome: "indexed", TotalChunks: 2, Stored: 2}}
		require.NoError(t, ledger.Create(context.Background(), run, docs))
	}

	handler := NewRunsHandler(ledger)
	r := chi.NewRouter()
	r.Get("/api/runs", handler.List)
	r.Get("/api/runs/{id}", handler.Get)

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var runs []storage.Run
		require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID, "newest first")
	})

	t.Run("list with limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var runs []storage.Run
		require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
		assert.Len(t, runs, 1)
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs?limit=-3", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var got RunDetailResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "run-1", got.ID)
		require.Len(t, got.Documents, 1)
		assert.Equal(t, "a.pdf", got.Documents[0].DocumentID)
	})

	t.Run("get missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		handler := NewHealthHandler(vectorstore.NewMemoryStore(), testCollection, "local-hash-384")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Checks["vector_store"])
		assert.Equal(t, "0", resp.Checks["collection"])
		assert.Empty(t, resp.Issues)
	})

	t.Run("store down", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := vectorstore_mocks.NewMockStore(ctrl)
		store.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

		w := httptest.NewRecorder()
		NewHealthHandler(store, testCollection, "local-hash-384").
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, []string{"vector_store_unavailable"}, resp.Issues)
	})
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: &service.ValidationError{Field: "text", Message: "required"}, wantStatus: http.StatusBadRequest},
		{name: "conflict", err: service.ErrConflict, wantStatus: http.StatusConflict},
		{name: "not found", err: fmt.Errorf("run x: %w", storage.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "store", err: fmt.Errorf("%w: %w", service.ErrExternalService, vectorstore.ErrStoreUnavailable), wantStatus: http.StatusServiceUnavailable},
		{name: "embedding", err: llm.ErrEmbeddingUnavailable, wantStatus: http.StatusBadGateway},
		{name: "external", err: service.ErrExternalService, wantStatus: http.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, context.Background(), tt.err, "failed")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}
