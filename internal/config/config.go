package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pdfrag/internal/extract"
	"pdfrag/internal/llm"
)

// Vector store backends.
const (
	StoreQdrant = "qdrant"
	StoreMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	InputDir   string
	Collection string

	VectorStore string
	QdrantURL   string

	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingModel     string
	EmbeddingAPIKey    string
	EmbeddingDimension int // 0 pins on first use; the local provider defaults to 384
	EmbeddingTimeout   time.Duration
	EmbeddingCacheDir  string // Empty disables the vector cache

	ChunkSize     int
	ChunkOverlap  int
	TopK          int
	MaxTopK       int
	IngestWorkers int

	CleanerRulesPath string
	PDFExtractor     string
	LedgerPath       string

	APIPort   string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the result.
// If a .env file exists in the current directory or a parent, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated is Load without range checks, for callers that apply
// overrides first and call Validate on the final values.
func LoadUnvalidated() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		InputDir:          getEnv("INPUT_DIR", "./documents"),
		Collection:        getEnv("COLLECTION", "health_assistant"),
		VectorStore:       getEnv("VECTOR_STORE", StoreQdrant),
		QdrantURL:         getEnv("QDRANT_URL", "http://localhost:6333"),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", llm.ProviderLocal),
		EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingAPIKey:   getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingCacheDir: getEnv("EMBEDDING_CACHE_DIR", ""),
		CleanerRulesPath:  getEnv("CLEANER_RULES_PATH", ""),
		PDFExtractor:      getEnv("PDF_EXTRACTOR", extract.KindNative),
		LedgerPath:        getEnv("LEDGER_PATH", "./data/ledger.db"),
		APIPort:           getEnv("API_PORT", "9000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"EMBEDDING_DIMENSION", 0, &cfg.EmbeddingDimension},
		{"CHUNK_SIZE", 512, &cfg.ChunkSize},
		{"CHUNK_OVERLAP", 50, &cfg.ChunkOverlap},
		{"TOP_K", 3, &cfg.TopK},
		{"MAX_TOP_K", 20, &cfg.MaxTopK},
		{"INGEST_WORKERS", 1, &cfg.IngestWorkers},
	}
	for _, v := range ints {
		n, err := getEnvInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dest = n
	}

	timeout, err := time.ParseDuration(getEnv("EMBEDDING_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_TIMEOUT must be a valid duration: %w", err)
	}
	cfg.EmbeddingTimeout = timeout
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("COLLECTION is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must not be negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be less than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.EmbeddingDimension < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must not be negative")
	}
	if c.EmbeddingTimeout <= 0 {
		return fmt.Errorf("EMBEDDING_TIMEOUT must be greater than 0")
	}
	if c.MaxTopK <= 0 {
		return fmt.Errorf("MAX_TOP_K must be greater than 0")
	}
	if c.TopK <= 0 || c.TopK > c.MaxTopK {
		return fmt.Errorf("TOP_K must be between 1 and MAX_TOP_K (%d)", c.MaxTopK)
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be greater than 0")
	}

	if err := oneOf("VECTOR_STORE", c.VectorStore, StoreQdrant, StoreMemory); err != nil {
		return err
	}
	if err := oneOf("EMBEDDING_PROVIDER", c.EmbeddingProvider, llm.ProviderLocal, llm.ProviderRemote, llm.ProviderOpenAI); err != nil {
		return err
	}
	if err := oneOf("PDF_EXTRACTOR", c.PDFExtractor, extract.KindNative, extract.KindPDFToText); err != nil {
		return err
	}
	if err := oneOf("LOG_FORMAT", c.LogFormat, "text", "json"); err != nil {
		return err
	}
	if err := oneOf("LOG_LEVEL", strings.ToLower(c.LogLevel), "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if c.VectorStore == StoreQdrant && c.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL is required when VECTOR_STORE=qdrant")
	}
	return nil
}

// EmbedderConfig returns the embedding provider settings.
func (c *Config) EmbedderConfig() llm.Config {
	return llm.Config{
		Provider:  c.EmbeddingProvider,
		BaseURL:   c.EmbeddingBaseURL,
		Model:     c.EmbeddingModel,
		APIKey:    c.EmbeddingAPIKey,
		Dimension: c.EmbeddingDimension,
		Timeout:   c.EmbeddingTimeout,
		CacheDir:  c.EmbeddingCacheDir,
	}
}

// loadDotEnv loads the first .env found in the working directory or up to
// four of its parents. Errors are ignored; .env files are optional.
func loadDotEnv() {
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}
