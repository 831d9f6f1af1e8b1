package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "v2.0"

// RunStats contains statistics about one ingestion run.
type RunStats struct {
	// DocsDiscovered is the number of PDF files found under the input root.
	DocsDiscovered int `json:"docs_discovered"`
	// DocsIndexed is the number of documents with every chunk stored.
	DocsIndexed int `json:"docs_indexed"`
	// DocsPartial is the number of documents with some chunks skipped.
	DocsPartial int `json:"docs_partial"`
	// DocsSkipped is the number of documents with nothing to index.
	DocsSkipped int `json:"docs_skipped"`
	// DocsFailed is the number of documents that could not be extracted or
	// had no chunk stored.
	DocsFailed int `json:"docs_failed"`
	// ChunksAttempted is the total number of chunks that were attempted to be embedded.
	ChunksAttempted int `json:"chunks_attempted"`
	// ChunksStored is the number of chunks successfully embedded and stored.
	ChunksStored int `json:"chunks_stored"`
	// ChunksSkipped is the number of chunks skipped.
	ChunksSkipped int `json:"chunks_skipped"`
	// SkipReasons counts skipped chunks and skipped or failed documents by reason.
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
	// ChunkLengthStats describes the rune length of stored chunks.
	ChunkLengthStats ChunkLengthStats `json:"chunk_length_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkLengthStats contains statistics about chunk lengths in runes.
type ChunkLengthStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// NewRunStats aggregates per-document results.
func NewRunStats(discovered int, results []DocumentResult, indexVersion string) RunStats {
	stats := RunStats{
		DocsDiscovered: discovered,
		SkipReasons:    make(map[string]int),
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   indexVersion,
	}

	var lengths []int
	for _, res := range results {
		switch res.Outcome {
		case OutcomeIndexed:
			stats.DocsIndexed++
		case OutcomePartial:
			stats.DocsPartial++
		case OutcomeSkipped:
			stats.DocsSkipped++
		case OutcomeFailed:
			stats.DocsFailed++
		}
		if res.Outcome == OutcomeSkipped || res.Outcome == OutcomeFailed {
			if res.Reason != "" {
				stats.SkipReasons[string(res.Reason)]++
			}
		}

		for _, cr := range res.Chunks {
			stats.ChunksAttempted++
			switch cr.Status {
			case ChunkStored:
				stats.ChunksStored++
				lengths = append(lengths, cr.Length)
			case ChunkSkipped:
				stats.ChunksSkipped++
				stats.SkipReasons[string(cr.Reason)]++
			}
		}
	}

	stats.ChunkLengthStats = computeLengthStats(lengths)
	return stats
}

// IndexVersion hashes everything that changes chunk ids or vectors.
func IndexVersion(chunker *Chunker, embedderName string) string {
	input := fmt.Sprintf("%s|%s|chunk_size=%d|overlap=%d",
		ChunkerVersion, embedderName, chunker.ChunkSize(), chunker.Overlap())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeLengthStats computes min, max, mean, and p95 from chunk lengths.
func computeLengthStats(lengths []int) ChunkLengthStats {
	if len(lengths) == 0 {
		return ChunkLengthStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, n := range lengths {
		sum += n
	}
	mean := float64(sum) / float64(len(lengths))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkLengthStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
