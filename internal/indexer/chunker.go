package indexer

import (
	"errors"
	"fmt"
)

const (
	DefaultChunkSize = 512 // Runes per chunk
	DefaultOverlap   = 50  // Runes shared by consecutive chunks
)

// ErrInvalidChunking is returned for a chunk size / overlap pair that could
// not make progress through the text.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Chunker splits cleaned text into overlapping windows, preferring to end a
// window just after a sentence-terminating period.
type Chunker struct {
	chunkSize int
	overlap   int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the maximum chunk length in runes.
func WithChunkSize(n int) ChunkerOption {
	return func(c *Chunker) {
		c.chunkSize = n
	}
}

// WithOverlap sets the number of runes shared between consecutive chunks.
func WithOverlap(n int) ChunkerOption {
	return func(c *Chunker) {
		c.overlap = n
	}
}

// NewChunker creates a chunker. Overlap must be smaller than the chunk size.
func NewChunker(opts ...ChunkerOption) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunking, c.chunkSize)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunking, c.overlap)
	}
	if c.overlap >= c.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidChunking, c.overlap, c.chunkSize)
	}
	return c, nil
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text in order. Empty text yields no chunks.
//
// Each window is chunkSize runes long. A window that does not reach the end
// of the text is shortened to end just after its last period, provided that
// period lies in the second half of the window. The next window starts
// chunkSize-overlap runes after the current one, or earlier when the
// shortened window would otherwise leave a gap.
//
// The pull-back means every rune lands in some chunk, but it departs from a
// fixed chunkSize-overlap stride: for text with periods in the second half of
// a window, chunk counts and therefore chunk ids can differ from collections
// built by a fixed-stride splitter. Reindex such collections rather than
// mixing the two.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	spans := c.spans(runes)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = string(runes[sp.start:sp.end])
	}
	return chunks
}

type span struct {
	start, end int
}

func (c *Chunker) spans(runes []rune) []span {
	n := len(runes)
	step := c.chunkSize - c.overlap

	var out []span
	for start := 0; start < n; {
		end := min(start+c.chunkSize, n)
		if end < n {
			if p := lastPeriod(runes, start, end); p > start+c.chunkSize/2 {
				end = p + 1
			}
		}
		out = append(out, span{start: start, end: end})

		next := start + step
		if end < n && next > end {
			// end > start+chunkSize/2 and step > chunkSize/2 here, so
			// end-overlap is still past start.
			next = end - c.overlap
		}
		start = next
	}
	return out
}

// lastPeriod returns the index of the last '.' in runes[start:end], or -1.
func lastPeriod(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '.' {
			return i
		}
	}
	return -1
}
