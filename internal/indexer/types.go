package indexer

import (
	"fmt"
	"strings"

	"pdfrag/internal/vectorstore"
)

// Document is a source PDF after text extraction.
type Document struct {
	ID       string // Relative path with separators replaced by "_"
	Path     string // Path relative to the input root, slash separated
	Category string // Relative directory, slash separated, empty at the root
	RawText  string // Extracted text before cleaning
}

// Chunk is one contiguous piece of a cleaned document.
type Chunk struct {
	ID           string // Format: "{document_id}_chunk_{index}"
	DocumentID   string
	Index        int // Position within the document (starts at 0)
	TotalChunks  int
	Text         string
	SectionTitle string
	Category     string
	Embedding    []float32
}

// ChunkID returns the stable identifier of chunk index of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// Metadata keys stored alongside each chunk.
const (
	MetaSource      = "source"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaCategory    = "category"
	MetaSection     = "section"
)

// Metadata returns the store metadata of the chunk.
// Category and section are only present when non-empty.
func (c Chunk) Metadata() map[string]any {
	meta := map[string]any{
		MetaSource:      c.DocumentID,
		MetaChunkIndex:  c.Index,
		MetaTotalChunks: c.TotalChunks,
	}
	if c.Category != "" {
		meta[MetaCategory] = c.Category
	}
	if c.SectionTitle != "" {
		meta[MetaSection] = c.SectionTitle
	}
	return meta
}

// Record returns the vector store record of an embedded chunk.
func (c Chunk) Record() vectorstore.Record {
	return vectorstore.Record{
		ID:        c.ID,
		Embedding: c.Embedding,
		Document:  c.Text,
		Metadata:  c.Metadata(),
	}
}

// ChunkStatus is the per-chunk outcome of indexing.
type ChunkStatus string

const (
	ChunkStored  ChunkStatus = "stored"
	ChunkSkipped ChunkStatus = "skipped"
)

// ChunkResult records what happened to a single chunk.
type ChunkResult struct {
	ID     string
	Index  int
	Length int // Runes
	Status ChunkStatus
	Reason Reason
	Err    error
}

// Outcome is the per-document result of indexing.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed" // Every chunk stored
	OutcomePartial Outcome = "partial" // Some chunks stored
	OutcomeSkipped Outcome = "skipped" // Nothing to index
	OutcomeFailed  Outcome = "failed"  // Extraction failed or no chunk stored
)

// Reason explains a skipped chunk or document.
type Reason string

const (
	ReasonEmptyContent         Reason = "empty_content"
	ReasonEmptyAfterCleaning   Reason = "empty_after_cleaning"
	ReasonNoChunks             Reason = "no_chunks"
	ReasonExtractionFailed     Reason = "extraction_failed"
	ReasonEmbeddingUnavailable Reason = "embedding_unavailable"
	ReasonStoreError           Reason = "store_error"
	ReasonDimensionMismatch    Reason = "dimension_mismatch"
)

// DocumentResult summarises indexing of one document.
type DocumentResult struct {
	DocumentID  string
	Path        string
	Category    string
	Outcome     Outcome
	Reason      Reason
	TotalChunks int
	Stored      int
	Skipped     int
	Chunks      []ChunkResult
	Err         error
}

func (r *DocumentResult) addChunk(cr ChunkResult) {
	r.Chunks = append(r.Chunks, cr)
	switch cr.Status {
	case ChunkStored:
		r.Stored++
	case ChunkSkipped:
		r.Skipped++
	}
}

func (r *DocumentResult) skip(reason Reason) {
	r.Outcome = OutcomeSkipped
	r.Reason = reason
}

func (r *DocumentResult) finish() {
	switch {
	case r.TotalChunks == 0:
		r.Outcome = OutcomeSkipped
	case r.Stored == r.TotalChunks:
		r.Outcome = OutcomeIndexed
	case r.Stored > 0:
		r.Outcome = OutcomePartial
	default:
		r.Outcome = OutcomeFailed
		if len(r.Chunks) > 0 {
			r.Reason = r.Chunks[0].Reason
		}
	}
}

// sectionTitleMaxRunes bounds the first line accepted as a section title.
const sectionTitleMaxRunes = 100

// sectionTitle returns the first line of a chunk when the chunk has more
// than one line and that line is short enough to be a heading. The line is
// kept verbatim, surrounding whitespace included.
func sectionTitle(text string) string {
	first, _, found := strings.Cut(text, "\n")
	if !found {
		return ""
	}
	if first == "" || len([]rune(first)) >= sectionTitleMaxRunes {
		return ""
	}
	return first
}
