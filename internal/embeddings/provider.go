package embeddings

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed", "tei" or "hash".
	Provider string
	// Model is the embedding model or family name.
	Model string
	// BaseURL is the TEI URL (only used for TEI provider).
	BaseURL string
	// APIKey is the TEI bearer token (optional).
	APIKey string
	// RequestsPerSecond limits TEI requests. 0 disables limiting.
	RequestsPerSecond float64
	// Timeout bounds a TEI request.
	Timeout time.Duration
	// CacheDir is the model cache directory (only used for FastEmbed).
	CacheDir string
	// LibraryPath is the ONNX runtime library (only used for FastEmbed).
	LibraryPath string
	// Dimension is the vector length (only used for the hash provider).
	Dimension int

	Logger *zap.Logger
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:       cfg.Model,
			CacheDir:    cfg.CacheDir,
			LibraryPath: cfg.LibraryPath,
			Logger:      cfg.Logger,
		})
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			APIKey:            cfg.APIKey,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Timeout:           cfg.Timeout,
			Logger:            cfg.Logger,
		})
	case "hash":
		return NewHashProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
