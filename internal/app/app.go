// Package app wires configuration into the ingestion and retrieval components
// shared by the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"pdfrag/internal/cleaner"
	"pdfrag/internal/config"
	"pdfrag/internal/extract"
	"pdfrag/internal/indexer"
	"pdfrag/internal/llm"
	"pdfrag/internal/rag"
	"pdfrag/internal/storage"
	"pdfrag/internal/vectorstore"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Store    vectorstore.Store
	Embedder llm.Embedder
	Indexer  *indexer.Indexer
	Engine   rag.Engine
	Ledger   *storage.RunRepo

	closers []func() error
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewStore creates the configured vector store.
func NewStore(cfg *config.Config) (vectorstore.Store, func() error, error) {
	switch cfg.VectorStore {
	case config.StoreMemory:
		return vectorstore.NewMemoryStore(), func() error { return nil }, nil
	case config.StoreQdrant:
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
}

// New wires every component from cfg. The vector store must answer a ping;
// callers treat that failure as fatal at startup.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, closeStore, err := NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	a.closers = append(a.closers, closeStore)
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach vector store: %w", err)
	}
	a.Store = store

	embedder, closeEmbedder, err := llm.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	a.closers = append(a.closers, closeEmbedder)
	a.Embedder = embedder

	textCleaner := cleaner.Default()
	if cfg.CleanerRulesPath != "" {
		rules, err := cleaner.LoadRules(cfg.CleanerRulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load cleaner rules: %w", err)
		}
		if textCleaner, err = cleaner.New(rules); err != nil {
			return nil, fmt.Errorf("failed to build cleaner: %w", err)
		}
	}

	chunker, err := indexer.NewChunker(indexer.WithChunkSize(cfg.ChunkSize), indexer.WithOverlap(cfg.ChunkOverlap))
	if err != nil {
		return nil, err
	}

	extractor, err := extract.New(cfg.PDFExtractor)
	if err != nil {
		return nil, err
	}

	db, err := openLedger(cfg.LedgerPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.Ledger = storage.NewRunRepo(db)

	a.Indexer = indexer.NewIndexer(textCleaner, chunker, embedder, store, cfg.Collection,
		indexer.WithExtractor(extractor),
		indexer.WithWorkers(cfg.IngestWorkers),
		indexer.WithRecorder(a.Ledger),
	)
	a.Engine = rag.NewEngine(embedder, store, cfg.Collection,
		rag.WithDefaultTopK(cfg.TopK),
		rag.WithMaxTopK(cfg.MaxTopK),
	)

	slog.InfoContext(ctx, "components initialized",
		"vector_store", cfg.VectorStore,
		"embedder", embedder.Name(),
		"collection", cfg.Collection,
		"index_version", a.Indexer.IndexVersion(),
	)
	return a, nil
}

func openLedger(path string) (*sql.DB, error) {
	db, err := storage.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return db, nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
