package llm

import (
	"fmt"
	"time"
)

// Provider names accepted by New.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
	ProviderOpenAI = "openai"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider  string
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int           // 0 pins on first use (remote, openai)
	Timeout   time.Duration // Remote only
	CacheDir  string        // Empty disables the vector cache
}

// New builds the configured provider, wrapped in a cache when CacheDir is
// set and always in a DimensionGuard. The returned close function releases
// the cache and is never nil.
func New(cfg Config) (Embedder, func() error, error) {
	noop := func() error { return nil }

	var base Embedder
	switch cfg.Provider {
	case ProviderLocal, "":
		base = NewLocalEmbedder(cfg.Dimension)
	case ProviderRemote:
		if cfg.BaseURL == "" {
			return nil, noop, fmt.Errorf("remote embedding provider requires a base URL")
		}
		base = NewRemoteEmbedder(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case ProviderOpenAI:
		e, err := NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, noop, err
		}
		base = e
	default:
		return nil, noop, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	closeFn := noop
	if cfg.CacheDir != "" {
		cached, err := NewCachedEmbedder(base, cfg.CacheDir)
		if err != nil {
			return nil, noop, err
		}
		base = cached
		closeFn = cached.Close
	}

	return NewDimensionGuard(base, cfg.Dimension), closeFn, nil
}
