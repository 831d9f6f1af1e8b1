package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultRemoteTimeout bounds a single remote embedding call.
const DefaultRemoteTimeout = 30 * time.Second

// RemoteEmbedder calls an HTTP embedding service (Ollama-compatible
// /api/embeddings endpoint).
type RemoteEmbedder struct {
	BaseURL string
	Model   string
	client  *http.Client
}

// NewRemoteEmbedder creates a remote embedder. A non-positive timeout
// selects DefaultRemoteTimeout.
func NewRemoteEmbedder(baseURL, model string, timeout time.Duration) *RemoteEmbedder {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteEmbedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// EmbeddingRequest is the request payload of the embeddings endpoint.
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse is the response payload of the embeddings endpoint.
type EmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements Embedder. Transport errors, timeouts, non-2xx statuses
// and malformed bodies are all reported as ErrEmbeddingUnavailable.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, ErrInvalidInput)
	}

	url := fmt.Sprintf("%s/api/embeddings", e.BaseURL)

	body, err := json.Marshal(EmbeddingRequest{Model: e.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, unavailable("failed to send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, unavailable("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var embeddingResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, unavailable("failed to decode response: %v", err)
	}
	if len(embeddingResp.Embedding) == 0 {
		return nil, unavailable("response carried no embedding")
	}

	vec := make([]float32, len(embeddingResp.Embedding))
	for i, v := range embeddingResp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimension implements Embedder. The remote dimension is only known after
// the first call, so DimensionGuard pins it.
func (e *RemoteEmbedder) Dimension() int {
	return 0
}

// Name implements Embedder.
func (e *RemoteEmbedder) Name() string {
	return "remote:" + e.Model
}
