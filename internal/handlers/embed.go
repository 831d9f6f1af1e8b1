package handlers

import (
	"net/http"

	"pdfrag/internal/service"
)

// EmbedHandler exposes the embedding provider over HTTP.
type EmbedHandler struct {
	embedService service.EmbedService
}

// NewEmbedHandler creates a new EmbedHandler.
func NewEmbedHandler(embedService service.EmbedService) *EmbedHandler {
	return &EmbedHandler{embedService: embedService}
}

// EmbedRequest represents the HTTP request payload for embeddings.
type EmbedRequest struct {
	Text string `json:"text"`
}

// EmbedResponse represents the HTTP response payload for embeddings.
type EmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ServeHTTP handles POST /embed.
//
// swagger:route POST /embed embedText
//
// Returns the embedding vector for the given text.
func (h *EmbedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EmbedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	vec, err := h.embedService.Embed(ctx, req.Text)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to embed text")
		return
	}
	writeJSON(ctx, w, http.StatusOK, EmbedResponse{Embedding: vec})
}
