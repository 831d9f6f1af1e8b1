package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingest_service.go -package=mocks -mock_names=IngestService=MockIngestService pdfrag/internal/service IngestService

import (
	"context"
	"fmt"
	"sync"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
	"pdfrag/internal/vectorstore"
)

// Indexer runs full ingestion passes over an input directory.
// This interface is defined from the service layer's perspective (consumer-first).
type Indexer interface {
	IndexAll(ctx context.Context, root string) (*indexer.RunReport, error)
	Collection() string
}

// IngestStatus describes the current and most recent ingestion run.
type IngestStatus struct {
	Running   bool               `json:"running"`
	LastRun   *indexer.RunReport `json:"last_run,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

// IngestService rebuilds the vector index from the input directory.
// At most one run is active at a time.
type IngestService interface {
	// Run ingests synchronously. With reset the collection is deleted first.
	Run(ctx context.Context, reset bool) (*indexer.RunReport, error)
	// Start launches a run in the background and returns immediately.
	Start(ctx context.Context, reset bool) error
	// Status reports whether a run is active and the last finished run.
	Status() IngestStatus
	// Wait blocks until background runs finish or ctx is done.
	Wait(ctx context.Context) error
}

// ingestService implements IngestService.
type ingestService struct {
	indexer Indexer
	store   vectorstore.Store
	root    string

	mu      sync.Mutex
	running bool
	last    *indexer.RunReport
	lastErr error
	wg      sync.WaitGroup
}

// NewIngestService creates a new IngestService reading PDFs from root.
func NewIngestService(ix Indexer, store vectorstore.Store, root string) IngestService {
	return &ingestService{
		indexer: ix,
		store:   store,
		root:    root,
	}
}

func (s *ingestService) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrConflict
	}
	s.running = true
	return nil
}

func (s *ingestService) release(report *indexer.RunReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if report != nil {
		s.last = report
	}
	s.lastErr = err
}

// Run implements IngestService.
func (s *ingestService) Run(ctx context.Context, reset bool) (*indexer.RunReport, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	report, err := s.run(ctx, reset)
	s.release(report, err)
	return report, err
}

// Start implements IngestService.
func (s *ingestService) Start(ctx context.Context, reset bool) error {
	if err := s.acquire(); err != nil {
		return err
	}

	// Indexing continues after the HTTP request completes; the request logger is kept.
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger := contextutil.LoggerFromContext(runCtx)
		report, err := s.run(runCtx, reset)
		if err != nil {
			logger.ErrorContext(runCtx, "re-indexing completed with errors", "error", err)
		} else {
			logger.InfoContext(runCtx, "re-indexing completed successfully", "run_id", report.ID)
		}
		s.release(report, err)
	}()
	return nil
}

func (s *ingestService) run(ctx context.Context, reset bool) (*indexer.RunReport, error) {
	logger := contextutil.LoggerFromContext(ctx)
	collection := s.indexer.Collection()

	if reset {
		if err := s.store.DeleteCollection(ctx, collection); err != nil {
			return nil, fmt.Errorf("%w: failed to delete collection %s: %w", ErrExternalService, collection, err)
		}
		logger.InfoContext(ctx, "deleted collection before re-indexing", "collection", collection)
	}

	report, err := s.indexer.IndexAll(ctx, s.root)
	if err != nil {
		return report, WrapError(err, "ingestion failed")
	}
	return report, nil
}

// Status implements IngestService.
func (s *ingestService) Status() IngestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := IngestStatus{Running: s.running, LastRun: s.last}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// Wait implements IngestService.
func (s *ingestService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
