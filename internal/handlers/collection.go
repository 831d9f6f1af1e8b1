package handlers

import (
	"net/http"
	"strconv"

	"pdfrag/internal/service"
)

// defaultSampleSize is the number of chunks returned by GET /api/collection.
const defaultSampleSize = 5

// CollectionHandler reports on and manages the vector collection.
type CollectionHandler struct {
	collectionService service.CollectionService
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(collectionService service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collectionService: collectionService}
}

// Stats handles GET /api/collection. The optional sample parameter sets
// the number of chunks returned.
func (h *CollectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sample := defaultSampleSize
	if raw := r.URL.Query().Get("sample"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "sample must be an integer")
			return
		}
		sample = n
	}

	stats, err := h.collectionService.Stats(ctx, sample)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to read collection")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}

// Delete handles DELETE /api/collection.
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.collectionService.Delete(ctx); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete collection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
