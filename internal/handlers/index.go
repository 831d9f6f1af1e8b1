package handlers

import (
	"net/http"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/service"
)

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	ingestService service.IngestService
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(ingestService service.IngestService) *IndexHandler {
	return &IndexHandler{ingestService: ingestService}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP handles POST /api/index.
//
// Indexing runs in the background. With ?reset=true the collection is
// deleted first. Returns 409 while another run is active.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	reset := r.URL.Query().Get("reset") == "true"
	if reset {
		logger.InfoContext(ctx, "reset re-indexing triggered via API")
	} else {
		logger.InfoContext(ctx, "re-indexing triggered via API")
	}

	if err := h.ingestService.Start(ctx, reset); err != nil {
		handleServiceError(w, ctx, err, "Failed to start indexing")
		return
	}

	message := "Indexing started. Check server logs for progress."
	if reset {
		message = "Reset re-indexing started (collection deleted). Check server logs for progress."
	}
	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: message,
		Status:  "accepted",
	})
}

// Status handles GET /api/index and reports the current and last run.
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.ingestService.Status())
}
