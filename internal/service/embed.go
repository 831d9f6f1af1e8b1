package service

import (
	"context"
	"fmt"
	"strings"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/llm"
)

// EmbedService exposes the embedding provider to HTTP clients.
type EmbedService interface {
	// Embed returns the embedding vector of text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embedService implements EmbedService.
type embedService struct {
	embedder llm.Embedder
}

// NewEmbedService creates a new EmbedService.
func NewEmbedService(embedder llm.Embedder) EmbedService {
	return &embedService{embedder: embedder}
}

// Embed implements EmbedService.
func (s *embedService) Embed(ctx context.Context, text string) ([]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	// Business validation
	if strings.TrimSpace(text) == "" {
		logger.WarnContext(ctx, "empty text in embed request")
		return nil, &ValidationError{
			Field:   "text",
			Message: "cannot be empty",
		}
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed text", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	logger.InfoContext(ctx, "embed request processed successfully", "text_length", len(text), "dimension", len(vec))
	return vec, nil
}
