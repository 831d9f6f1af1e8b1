package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewRemoteEmbedder(t *testing.T) {
	e := NewRemoteEmbedder("http://localhost:11434/", "nomic-embed-text", 0)
	if e == nil {
		t.Fatal("NewRemoteEmbedder() returned nil")
	}
	if e.BaseURL != "http://localhost:11434" {
		t.Errorf("NewRemoteEmbedder() BaseURL = %v, want http://localhost:11434", e.BaseURL)
	}
	if e.client.Timeout != DefaultRemoteTimeout {
		t.Errorf("NewRemoteEmbedder() timeout = %v, want %v", e.client.Timeout, DefaultRemoteTimeout)
	}
	if e.Name() != "remote:nomic-embed-text" {
		t.Errorf("Name() = %q", e.Name())
	}
}

func TestRemoteEmbedder_Embed(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantErr    bool
		wantSize   int
	}{
		{
			name: "successful embedding",
			text: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/api/embeddings" {
					t.Errorf("expected /api/embeddings, got %s", r.URL.Path)
				}
				var req EmbeddingRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if req.Prompt != "Hello" || req.Model != "test-model" {
					t.Errorf("unexpected request %+v", req)
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: make([]float64, 768)})
			},
			wantSize: 768,
		},
		{
			name: "created status is success",
			text: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float64{0.1, 0.2}})
			},
			wantSize: 2,
		},
		{
			name: "server error",
			text: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			},
			wantErr: true,
		},
		{
			name: "missing embedding",
			text: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			wantErr: true,
		},
		{
			name: "malformed body",
			text: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"embedding": [`))
			},
			wantErr: true,
		},
		{
			name: "blank text",
			text: "   ",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				t.Error("server should not be called for blank text")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			e := NewRemoteEmbedder(server.URL, "test-model", time.Second)
			vec, err := e.Embed(context.Background(), tt.text)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Embed() expected error, got nil")
				}
				if !errors.Is(err, ErrEmbeddingUnavailable) {
					t.Errorf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Embed() unexpected error: %v", err)
			}
			if len(vec) != tt.wantSize {
				t.Errorf("Embed() size = %d, want %d", len(vec), tt.wantSize)
			}
		})
	}
}

func TestRemoteEmbedder_Embed_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float64{1}})
	}))
	defer server.Close()

	e := NewRemoteEmbedder(server.URL, "test-model", 20*time.Millisecond)
	_, err := e.Embed(context.Background(), "slow")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestRemoteEmbedder_Embed_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	e := NewRemoteEmbedder(url, "test-model", time.Second)
	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestRemoteEmbedder_Embed_ConvertsFloat64ToFloat32(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float64{1.5, 2.5, 3.5}})
	}))
	defer server.Close()

	e := NewRemoteEmbedder(server.URL, "test-model", time.Second)
	vec, err := e.Embed(context.Background(), "test")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := []float32{1.5, 2.5, 3.5}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("Embed() vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}
