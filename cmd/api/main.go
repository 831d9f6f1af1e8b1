package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/http"
	"pdfrag/internal/service"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API indexes a directory of PDF documents into a vector collection and
// retrieves the passages most relevant to a query, with source attribution.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: PDF RAG API
//   description: |
//     Ingestion and retrieval API over a collection of embedded PDF chunks.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to release resources", "error", err)
		}
	}()

	ingestService := service.NewIngestService(a.Indexer, a.Store, cfg.InputDir)

	// Create router with dependencies
	deps := &http.Deps{
		Engine:            a.Engine,
		EmbedService:      service.NewEmbedService(a.Embedder),
		IngestService:     ingestService,
		CollectionService: service.NewCollectionService(a.Store, cfg.Collection),
		Ledger:            a.Ledger,
		Store:             a.Store,
		Collection:        cfg.Collection,
		EmbedderName:      a.Embedder.Name(),
	}
	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr, "input_dir", cfg.InputDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			slog.Error("API server failed", "error", err)
			return
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := ingestService.Wait(shutdownCtx); err != nil {
		slog.Warn("Ingestion still running at shutdown", "error", err)
	}
}
