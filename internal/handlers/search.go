package handlers

import (
	"net/http"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/rag"
)

// SearchHandler handles HTTP requests for retrieval queries.
type SearchHandler struct {
	engine rag.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine rag.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// ServeHTTP handles POST /api/search.
//
// swagger:route POST /api/search search
//
// Returns the chunks nearest to the query with source attribution.
// Degraded outcomes keep the response body and set the status code:
// 502 when the embedding provider fails, 503 when the vector store fails.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var q rag.Query
	if !decodeJSON(w, r, &q) {
		return
	}

	resp := h.engine.Search(ctx, q)
	if resp.Results == nil {
		resp.Results = []rag.SearchResult{}
	}

	statusCode := http.StatusOK
	switch resp.Status {
	case rag.StatusEmbeddingUnavailable:
		statusCode = http.StatusBadGateway
	case rag.StatusStoreUnavailable:
		statusCode = http.StatusServiceUnavailable
	}
	logger.InfoContext(ctx, "search request completed", "status", resp.Status, "results_count", len(resp.Results))
	writeJSON(ctx, w, statusCode, resp)
}
