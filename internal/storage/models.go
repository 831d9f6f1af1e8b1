package storage

import "time"

// Run is one ingestion run over an input directory.
type Run struct {
	ID            string    `json:"id"` // UUID
	Collection    string    `json:"collection"`
	InputDir      string    `json:"input_dir"`
	IndexVersion  string    `json:"index_version"` // Hash of chunking and embedding parameters
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Discovered    int       `json:"discovered"`
	Indexed       int       `json:"indexed"`
	Partial       int       `json:"partial"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	ChunksStored  int       `json:"chunks_stored"`
	ChunksSkipped int       `json:"chunks_skipped"`
	Error         string    `json:"error,omitempty"` // Fatal error that ended the run early
}

// RunDocument is the outcome of one document within a run.
type RunDocument struct {
	RunID       string `json:"run_id"`
	DocumentID  string `json:"document_id"`
	RelPath     string `json:"rel_path"`
	Category    string `json:"category"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	TotalChunks int    `json:"total_chunks"`
	Stored      int    `json:"stored"`
	Skipped     int    `json:"skipped"`
	Error       string `json:"error,omitempty"`
}
