package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RunRepo provides methods for ingestion ledger operations.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create stores a finished run and its documents in one transaction.
func (r *RunRepo) Create(ctx context.Context, run Run, docs []RunDocument) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, collection, input_dir, index_version, started_at, finished_at,
			discovered, indexed, partial, skipped, failed, chunks_stored, chunks_skipped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Collection, run.InputDir, run.IndexVersion, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Discovered, run.Indexed, run.Partial, run.Skipped, run.Failed, run.ChunksStored, run.ChunksSkipped, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_documents (run_id, document_id, rel_path, category, outcome, reason,
			total_chunks, stored, skipped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, doc := range docs {
		_, err := stmt.ExecContext(ctx,
			run.ID, doc.DocumentID, doc.RelPath, doc.Category, doc.Outcome, doc.Reason,
			doc.TotalChunks, doc.Stored, doc.Skipped, doc.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run document %s: %w", doc.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, collection, input_dir, index_version, started_at, finished_at,
	discovered, indexed, partial, skipped, failed, chunks_stored, chunks_skipped, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.Collection, &run.InputDir, &run.IndexVersion, &run.StartedAt, &run.FinishedAt,
		&run.Discovered, &run.Indexed, &run.Partial, &run.Skipped, &run.Failed,
		&run.ChunksStored, &run.ChunksSkipped, &run.Error,
	)
	return run, err
}

// Get returns the run with the given id.
func (r *RunRepo) Get(ctx context.Context, id string) (Run, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, most recent first.
func (r *RunRepo) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Documents returns the documents of a run ordered by document id.
func (r *RunRepo) Documents(ctx context.Context, runID string) ([]RunDocument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, document_id, rel_path, category, outcome, reason, total_chunks, stored, skipped, error
		 FROM run_documents WHERE run_id = ? ORDER BY document_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []RunDocument
	for rows.Next() {
		var doc RunDocument
		if err := rows.Scan(&doc.RunID, &doc.DocumentID, &doc.RelPath, &doc.Category, &doc.Outcome,
			&doc.Reason, &doc.TotalChunks, &doc.Stored, &doc.Skipped, &doc.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return docs, nil
}
