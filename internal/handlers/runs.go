package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pdfrag/internal/storage"
)

// RunLedger reads recorded ingestion runs.
// This interface is defined from the handler's perspective (consumer-first).
type RunLedger interface {
	List(ctx context.Context, limit int) ([]storage.Run, error)
	Get(ctx context.Context, id string) (storage.Run, error)
	Documents(ctx context.Context, runID string) ([]storage.RunDocument, error)
}

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// RunsHandler serves the ingestion ledger.
type RunsHandler struct {
	ledger RunLedger
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(ledger RunLedger) *RunsHandler {
	return &RunsHandler{ledger: ledger}
}

// RunDetailResponse is a run with its per-document outcomes.
type RunDetailResponse struct {
	storage.Run
	Documents []storage.RunDocument `json:"documents"`
}

// List handles GET /api/runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.ledger.List(ctx, limit)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(ctx, w, http.StatusOK, runs)
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	run, err := h.ledger.Get(ctx, id)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get run")
		return
	}
	docs, err := h.ledger.Documents(ctx, id)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get run documents")
		return
	}
	if docs == nil {
		docs = []storage.RunDocument{}
	}
	writeJSON(ctx, w, http.StatusOK, RunDetailResponse{Run: run, Documents: docs})
}
