package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEmbedder uses an OpenAI-compatible /v1/embeddings endpoint through
// langchaingo.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible service.
// An empty token is sent as "none" for local services without auth.
func NewOpenAIEmbedder(baseURL, token, model string) (*OpenAIEmbedder, error) {
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &OpenAIEmbedder{
		embedder: embedder,
		model:    model,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, ErrInvalidInput)
	}

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to generate embedding", "model", e.model, "error", err)
		return nil, unavailable("%v", err)
	}
	return vec, nil
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int {
	return 0
}

// Name implements Embedder.
func (e *OpenAIEmbedder) Name() string {
	return "openai:" + e.model
}
