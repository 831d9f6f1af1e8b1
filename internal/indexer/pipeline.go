package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/extract"
	"pdfrag/internal/llm"
	"pdfrag/internal/source"
	"pdfrag/internal/storage"
	"pdfrag/internal/vectorstore"
)

// TextCleaner normalises extracted text before chunking.
type TextCleaner interface {
	Clean(text string) string
}

// RunRecorder persists finished runs to the ingestion ledger.
type RunRecorder interface {
	Create(ctx context.Context, run storage.Run, docs []storage.RunDocument) error
}

// Indexer orchestrates cleaning, chunking, embedding and storing of PDF documents.
type Indexer struct {
	cleaner    TextCleaner
	chunker    *Chunker
	embedder   llm.Embedder
	store      vectorstore.Store
	collection string
	extractor  extract.Extractor
	recorder   RunRecorder
	workers    int

	mu         sync.Mutex
	ensuredDim int // Dimension the collection was ensured with, 0 if not yet
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithExtractor sets the PDF text extractor used by IndexAll.
func WithExtractor(e extract.Extractor) Option {
	return func(ix *Indexer) {
		ix.extractor = e
	}
}

// WithWorkers sets the number of documents indexed concurrently by IndexAll.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithRecorder records every IndexAll run in the ledger.
func WithRecorder(r RunRecorder) Option {
	return func(ix *Indexer) {
		ix.recorder = r
	}
}

// NewIndexer creates a new Indexer writing into collection.
func NewIndexer(
	cleaner TextCleaner,
	chunker *Chunker,
	embedder llm.Embedder,
	store vectorstore.Store,
	collection string,
	opts ...Option,
) *Indexer {
	ix := &Indexer{
		cleaner:    cleaner,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		collection: collection,
		extractor:  extract.NewNativeExtractor(),
		workers:    1,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Collection returns the target collection name.
func (ix *Indexer) Collection() string {
	return ix.collection
}

// IndexVersion identifies the chunking and embedding configuration.
func (ix *Indexer) IndexVersion() string {
	return IndexVersion(ix.chunker, ix.embedder.Name())
}

// Index cleans, chunks, embeds and stores one document.
// Per-chunk failures are recorded in the result and do not stop the document.
// The returned error is non-nil only for fatal conditions (dimension mismatch,
// cancellation), in which case the result covers the chunks processed so far.
func (ix *Indexer) Index(ctx context.Context, doc Document) (DocumentResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	result := DocumentResult{DocumentID: doc.ID, Path: doc.Path, Category: doc.Category}

	if strings.TrimSpace(doc.RawText) == "" {
		logger.WarnContext(ctx, "no content extracted", "document_id", doc.ID)
		result.skip(ReasonEmptyContent)
		return result, nil
	}

	cleaned := ix.cleaner.Clean(doc.RawText)
	if cleaned == "" {
		logger.WarnContext(ctx, "no content after cleaning", "document_id", doc.ID)
		result.skip(ReasonEmptyAfterCleaning)
		return result, nil
	}

	texts := ix.chunker.Split(cleaned)
	if len(texts) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "document_id", doc.ID)
		result.skip(ReasonNoChunks)
		return result, nil
	}
	result.TotalChunks = len(texts)

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			result.finish()
			return result, err
		}

		chunk := Chunk{
			ID:           ChunkID(doc.ID, i),
			DocumentID:   doc.ID,
			Index:        i,
			TotalChunks:  len(texts),
			Text:         text,
			SectionTitle: sectionTitle(text),
			Category:     doc.Category,
		}

		cr, err := ix.storeChunk(ctx, &chunk)
		result.addChunk(cr)
		if err != nil {
			result.finish()
			result.Err = err
			return result, fmt.Errorf("failed to index %s: %w", doc.ID, err)
		}
	}

	result.finish()
	logger.InfoContext(ctx, "indexed document",
		"document_id", doc.ID,
		"outcome", result.Outcome,
		"total_chunks", result.TotalChunks,
		"stored", result.Stored,
		"skipped", result.Skipped,
	)
	return result, nil
}

// storeChunk embeds and upserts one chunk. A non-nil error is fatal for the run.
func (ix *Indexer) storeChunk(ctx context.Context, chunk *Chunk) (ChunkResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	cr := ChunkResult{
		ID:     chunk.ID,
		Index:  chunk.Index,
		Length: utf8.RuneCountInString(chunk.Text),
		Status: ChunkSkipped,
	}

	vec, err := ix.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		cr.Err = err
		if errors.Is(err, llm.ErrDimensionMismatch) {
			cr.Reason = ReasonDimensionMismatch
			return cr, err
		}
		logger.WarnContext(ctx, "skipping chunk: embedding failed", "chunk_id", chunk.ID, "error", err)
		cr.Reason = ReasonEmbeddingUnavailable
		return cr, nil
	}
	chunk.Embedding = vec

	if err := ix.ensureCollection(ctx, len(vec)); err != nil {
		return ix.storeFailed(ctx, cr, err)
	}

	if err := ix.store.Upsert(ctx, ix.collection, []vectorstore.Record{chunk.Record()}); err != nil {
		return ix.storeFailed(ctx, cr, err)
	}

	cr.Status = ChunkStored
	return cr, nil
}

func (ix *Indexer) storeFailed(ctx context.Context, cr ChunkResult, err error) (ChunkResult, error) {
	cr.Err = err
	if errors.Is(err, vectorstore.ErrVectorSizeMismatch) {
		cr.Reason = ReasonDimensionMismatch
		return cr, fmt.Errorf("%w: %w", llm.ErrDimensionMismatch, err)
	}
	contextutil.LoggerFromContext(ctx).WarnContext(ctx, "skipping chunk: store failed", "chunk_id", cr.ID, "error", err)
	cr.Reason = ReasonStoreError
	return cr, nil
}

// ensureCollection creates the collection on the first stored vector of a run.
func (ix *Indexer) ensureCollection(ctx context.Context, dim int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.ensuredDim == dim {
		return nil
	}
	if err := ix.store.GetOrCreate(ctx, ix.collection, dim); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", ix.collection, err)
	}
	ix.ensuredDim = dim
	return nil
}

func (ix *Indexer) resetCollectionState() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ensuredDim = 0
}

// RunReport describes one IndexAll run.
type RunReport struct {
	ID         string           `json:"id"`
	Root       string           `json:"root"`
	Collection string           `json:"collection"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Stats      RunStats         `json:"stats"`
	Documents  []DocumentResult `json:"-"`
	Err        error            `json:"-"` // Fatal error that ended the run early
}

// IndexAll discovers every PDF under root, extracts and indexes it.
// Extraction failures and empty documents are recorded and skipped. A fatal
// error cancels the remaining documents; the partial report is still returned.
func (ix *Indexer) IndexAll(ctx context.Context, root string) (*RunReport, error) {
	logger := contextutil.LoggerFromContext(ctx)
	report := &RunReport{
		ID:         uuid.New().String(),
		Root:       root,
		Collection: ix.collection,
		StartedAt:  time.Now(),
	}

	files, err := source.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	// The collection may have been deleted since the previous run.
	ix.resetCollectionState()

	logger.InfoContext(ctx, "starting indexing",
		"run_id", report.ID,
		"input_dir", root,
		"total_files", len(files),
		"workers", ix.workers,
	)
	if len(files) == 0 {
		logger.WarnContext(ctx, "no PDF files found", "input_dir", root)
	}

	results := ix.indexFiles(ctx, files, report)

	report.FinishedAt = time.Now()
	report.Documents = results
	report.Stats = NewRunStats(len(files), results, ix.IndexVersion())

	logger.InfoContext(ctx, "indexing completed",
		"run_id", report.ID,
		"discovered", report.Stats.DocsDiscovered,
		"indexed", report.Stats.DocsIndexed,
		"partial", report.Stats.DocsPartial,
		"skipped", report.Stats.DocsSkipped,
		"failed", report.Stats.DocsFailed,
		"chunks_stored", report.Stats.ChunksStored,
		"chunks_skipped", report.Stats.ChunksSkipped,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	if ix.recorder != nil {
		run, docs := report.LedgerRecords()
		// Record with a fresh context so a cancelled run still lands in the ledger.
		recordCtx := context.WithoutCancel(ctx)
		if err := ix.recorder.Create(recordCtx, run, docs); err != nil {
			logger.ErrorContext(ctx, "failed to record run", "run_id", report.ID, "error", err)
		}
	}

	if report.Err != nil {
		return report, report.Err
	}
	return report, nil
}

// releaseTimeout bounds how long the pool waits for its workers to exit.
const releaseTimeout = 30 * time.Second

// indexFiles runs indexFile over files on the worker pool and returns the
// results of processed files in discovery order. Cancelling ctx or a fatal
// error stops new documents from starting; documents already in progress
// run to completion so no document is left half-stored.
func (ix *Indexer) indexFiles(ctx context.Context, files []source.ScannedFile, report *RunReport) []DocumentResult {
	logger := contextutil.LoggerFromContext(ctx)
	results := make([]DocumentResult, len(files))
	done := make([]bool, len(files))

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	pool, err := ants.NewPool(ix.workers)
	if err != nil {
		report.Err = fmt.Errorf("failed to create worker pool: %w", err)
		return nil
	}
	defer func() {
		if err := pool.ReleaseTimeout(releaseTimeout); err != nil {
			logger.WarnContext(ctx, "worker pool did not drain", "error", err)
		}
	}()

	// In-flight documents are detached from cancellation.
	docCtx := context.WithoutCancel(runCtx)

	var wg sync.WaitGroup
	for i, f := range files {
		if runCtx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if runCtx.Err() != nil {
				return
			}
			res, err := ix.indexFile(docCtx, f)
			results[i] = res
			done[i] = true
			if err != nil {
				cancel(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			cancel(fmt.Errorf("failed to submit %s: %w", f.RelPath, submitErr))
			break
		}
	}
	wg.Wait()

	if cause := context.Cause(runCtx); cause != nil {
		logger.ErrorContext(ctx, "indexing aborted", "error", cause)
		report.Err = cause
	}

	processed := make([]DocumentResult, 0, len(files))
	for i, ok := range done {
		if ok {
			processed = append(processed, results[i])
		}
	}
	return processed
}

func (ix *Indexer) indexFile(ctx context.Context, f source.ScannedFile) (DocumentResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	text, err := ix.extractor.Extract(ctx, f.AbsPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return DocumentResult{DocumentID: f.DocumentID, Path: f.RelPath, Category: f.Category,
				Outcome: OutcomeFailed, Reason: ReasonExtractionFailed, Err: err}, ctxErr
		}
		logger.ErrorContext(ctx, "failed to extract text", "rel_path", f.RelPath, "error", err)
		return DocumentResult{
			DocumentID: f.DocumentID,
			Path:       f.RelPath,
			Category:   f.Category,
			Outcome:    OutcomeFailed,
			Reason:     ReasonExtractionFailed,
			Err:        err,
		}, nil
	}

	return ix.Index(ctx, Document{
		ID:       f.DocumentID,
		Path:     f.RelPath,
		Category: f.Category,
		RawText:  text,
	})
}

// LedgerRecords converts the report into ledger rows.
func (r *RunReport) LedgerRecords() (storage.Run, []storage.RunDocument) {
	run := storage.Run{
		ID:            r.ID,
		Collection:    r.Collection,
		InputDir:      r.Root,
		IndexVersion:  r.Stats.IndexVersion,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Discovered:    r.Stats.DocsDiscovered,
		Indexed:       r.Stats.DocsIndexed,
		Partial:       r.Stats.DocsPartial,
		Skipped:       r.Stats.DocsSkipped,
		Failed:        r.Stats.DocsFailed,
		ChunksStored:  r.Stats.ChunksStored,
		ChunksSkipped: r.Stats.ChunksSkipped,
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}

	docs := make([]storage.RunDocument, 0, len(r.Documents))
	for _, d := range r.Documents {
		doc := storage.RunDocument{
			RunID:       r.ID,
			DocumentID:  d.DocumentID,
			RelPath:     d.Path,
			Category:    d.Category,
			Outcome:     string(d.Outcome),
			Reason:      string(d.Reason),
			TotalChunks: d.TotalChunks,
			Stored:      d.Stored,
			Skipped:     d.Skipped,
		}
		if d.Err != nil {
			doc.Error = d.Err.Error()
		}
		docs = append(docs, doc)
	}
	return run, docs
}
