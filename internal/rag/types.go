package rag

// Query represents a retrieval request.
type Query struct {
	// Text is the user's search query.
	Text string `json:"query"`
	// TopK optionally specifies the number of chunks to return. Zero selects the default.
	TopK int `json:"top_k,omitempty"`
	// Category restricts results to one source directory (exact match).
	Category string `json:"category,omitempty"`
}

// Status describes how a search ended.
type Status string

const (
	StatusOK                   Status = "ok"
	StatusNoQuery              Status = "no_query"
	StatusNoResults            Status = "no_results"
	StatusEmbeddingUnavailable Status = "embedding_unavailable"
	StatusStoreUnavailable     Status = "store_unavailable"
)

// User-facing messages for non-OK statuses.
const (
	MessageNoQuery              = "Please provide a search query."
	MessageNoResults            = "No relevant information found."
	MessageEmbeddingUnavailable = "The embedding service is unavailable. Please try again later."
	MessageStoreUnavailable     = "The knowledge base is unavailable. Please try again later."
)

// SearchResult is one retrieved chunk.
type SearchResult struct {
	// ChunkID is the stable chunk identifier.
	ChunkID string `json:"chunk_id"`
	// ChunkText is the stored chunk text.
	ChunkText string `json:"chunk_text"`
	// Source is the document id the chunk came from.
	Source string `json:"source,omitempty"`
	// Category is the source directory of the document.
	Category string `json:"category,omitempty"`
	// SectionTitle is the heading detected at the start of the chunk.
	SectionTitle string `json:"section_title,omitempty"`
	// Distance is the cosine distance to the query (0 is identical).
	Distance float32 `json:"distance"`
	// Rank is the rank of this chunk in the store's ordering (1-based).
	Rank int `json:"rank"`
}

// Response is the outcome of a search.
type Response struct {
	// Status is OK when Results is non-empty.
	Status Status `json:"status"`
	// Text is the formatted context for OK responses and a user-facing
	// message otherwise.
	Text string `json:"text"`
	// Results are in store order, nearest first.
	Results []SearchResult `json:"results"`
}
