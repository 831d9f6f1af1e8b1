package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pdfrag/internal/handlers"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
	"pdfrag/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine            rag.Engine
	EmbedService      service.EmbedService
	IngestService     service.IngestService
	CollectionService service.CollectionService
	Ledger            handlers.RunLedger
	Store             vectorstore.Store
	Collection        string
	EmbedderName      string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)

	// Add CORS middleware
	r.Use(CORS)

	searchHandler := handlers.NewSearchHandler(deps.Engine)
	embedHandler := handlers.NewEmbedHandler(deps.EmbedService)
	indexHandler := handlers.NewIndexHandler(deps.IngestService)
	collectionHandler := handlers.NewCollectionHandler(deps.CollectionService)
	runsHandler := handlers.NewRunsHandler(deps.Ledger)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Collection, deps.EmbedderName)

	r.Method(http.MethodPost, "/embed", embedHandler)

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodPost, "/index", indexHandler)
		r.Get("/index", indexHandler.Status)
		r.Get("/collection", collectionHandler.Stats)
		r.Delete("/collection", collectionHandler.Delete)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
