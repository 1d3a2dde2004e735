// Package config loads contextpack configuration.
//
// Values come from, lowest precedence first: Default(), an optional YAML or
// TOML file, and CONTEXTPACK_* environment variables. Environment names map
// to keys by splitting on the first underscore after the prefix:
//
//	CONTEXTPACK_CONTEXT_MAX_CONTEXT_SIZE -> context.max_context_size
//	CONTEXTPACK_EMBEDDINGS_API_KEY       -> embeddings.api_key
package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds the complete configuration.
type Config struct {
	Chunker    ChunkerConfig    `koanf:"chunker"`
	Dedup      DedupConfig      `koanf:"dedup"`
	Retriever  RetrieverConfig  `koanf:"retriever"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Memory     MemoryConfig     `koanf:"memory"`
	Context    ContextConfig    `koanf:"context"`
	Secrets    SecretsConfig    `koanf:"secrets"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ChunkerConfig sizes chunks in whitespace tokens.
type ChunkerConfig struct {
	Size int `koanf:"size"`
}

// DedupConfig controls per-document semantic deduplication.
type DedupConfig struct {
	Enabled   bool    `koanf:"enabled"`
	Threshold float64 `koanf:"threshold"`
	// Granularity is "chunk" or "sentence".
	Granularity string `koanf:"granularity"`
}

// RetrieverConfig selects the ranking strategy.
type RetrieverConfig struct {
	// Kind is "cpu" or "indexed".
	Kind      string `koanf:"kind"`
	CacheSize int    `koanf:"cache_size"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed", "tei" or "hash".
	Provider          string   `koanf:"provider"`
	Model             string   `koanf:"model"`
	BaseURL           string   `koanf:"base_url"`
	APIKey            Secret   `koanf:"api_key"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
	Timeout           Duration `koanf:"timeout"`
	CacheDir          string   `koanf:"cache_dir"`
	LibraryPath       string   `koanf:"library_path"`
	Dimension         int      `koanf:"dimension"`
}

// MemoryConfig configures the memory governor.
type MemoryConfig struct {
	Enabled            bool    `koanf:"enabled"`
	TargetUsagePercent float64 `koanf:"target_usage_percent"`
	MinBudget          int     `koanf:"min_budget"`
	// LimitBytes is the reference for usage percent. 0 means system memory.
	LimitBytes    uint64  `koanf:"limit_bytes"`
	EvictFraction float64 `koanf:"evict_fraction"`
}

// ContextConfig configures assembly.
type ContextConfig struct {
	MaxContextSize    int     `koanf:"max_context_size"`
	Separator         string  `koanf:"separator"`
	IngestConcurrency int     `koanf:"ingest_concurrency"`
	EvictChunks       bool    `koanf:"evict_chunks"`
	EvictFraction     float64 `koanf:"evict_fraction"`
}

// SecretsConfig configures ingestion-time redaction.
type SecretsConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Engine        string   `koanf:"engine"`
	Redaction     string   `koanf:"redaction"`
	AllowList     []string `koanf:"allow_list"`
	AllowlistFile string   `koanf:"allowlist_file"`
}

// IngestConfig configures directory loading and watching.
type IngestConfig struct {
	Extensions  []string `koanf:"extensions"`
	Debounce    Duration `koanf:"debounce"`
	MaxFileSize int64    `koanf:"max_file_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	BodyLimit       string   `koanf:"body_limit"`
}

// LoggingConfig is the file/env view of logging settings.
type LoggingConfig struct {
	Level    string            `koanf:"level"`
	Format   string            `koanf:"format"`
	OTEL     bool              `koanf:"otel"`
	Sampling bool              `koanf:"sampling"`
	Fields   map[string]string `koanf:"fields"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	// Protocol is "grpc" or "http".
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Chunker: ChunkerConfig{Size: 256},
		Dedup: DedupConfig{
			Enabled:     true,
			Threshold:   0.85,
			Granularity: "chunk",
		},
		Retriever: RetrieverConfig{Kind: "cpu", CacheSize: 10000},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "lightweight",
			BaseURL:  "http://localhost:8080",
			Timeout:  Duration(30 * time.Second),
		},
		Memory: MemoryConfig{
			Enabled:            true,
			TargetUsagePercent: 80,
			MinBudget:          64,
			EvictFraction:      0.25,
		},
		Context: ContextConfig{
			MaxContextSize:    4096,
			Separator:         "\n\n",
			IngestConcurrency: 4,
			EvictChunks:       false,
			EvictFraction:     0.1,
		},
		Secrets: SecretsConfig{Enabled: false, Engine: "regex", Redaction: "[REDACTED]"},
		Ingest: IngestConfig{
			Extensions:  []string{".txt", ".md"},
			Debounce:    Duration(500 * time.Millisecond),
			MaxFileSize: 10 << 20,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
			BodyLimit:       "16M",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Sampling: true},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "contextpack",
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Chunker.Size > 0, "chunker.size must be > 0, got %d", c.Chunker.Size)

	check(!math.IsNaN(c.Dedup.Threshold) && c.Dedup.Threshold >= 0 && c.Dedup.Threshold <= 1,
		"dedup.threshold must be in [0,1], got %v", c.Dedup.Threshold)
	check(oneOf(c.Dedup.Granularity, "chunk", "sentence"),
		"dedup.granularity must be chunk or sentence, got %q", c.Dedup.Granularity)

	check(oneOf(c.Retriever.Kind, "cpu", "indexed"), "retriever.kind must be cpu or indexed, got %q", c.Retriever.Kind)
	check(c.Retriever.CacheSize > 0, "retriever.cache_size must be > 0, got %d", c.Retriever.CacheSize)

	check(oneOf(c.Embeddings.Provider, "fastembed", "tei", "hash"),
		"embeddings.provider must be fastembed, tei or hash, got %q", c.Embeddings.Provider)
	check(c.Embeddings.Provider != "tei" || c.Embeddings.BaseURL != "", "embeddings.base_url is required for tei")
	check(c.Embeddings.RequestsPerSecond >= 0, "embeddings.requests_per_second must be >= 0")

	if c.Memory.Enabled {
		check(c.Memory.TargetUsagePercent > 0 && c.Memory.TargetUsagePercent <= 100,
			"memory.target_usage_percent must be in (0,100], got %v", c.Memory.TargetUsagePercent)
		check(c.Memory.MinBudget >= 0, "memory.min_budget must be >= 0")
		check(c.Memory.EvictFraction >= 0 && c.Memory.EvictFraction <= 1, "memory.evict_fraction must be in [0,1]")
	}

	check(c.Context.MaxContextSize > 0, "context.max_context_size must be > 0, got %d", c.Context.MaxContextSize)
	check(c.Context.IngestConcurrency > 0, "context.ingest_concurrency must be > 0")
	check(c.Context.EvictFraction >= 0 && c.Context.EvictFraction <= 1, "context.evict_fraction must be in [0,1]")

	if c.Secrets.Enabled {
		check(oneOf(c.Secrets.Engine, "regex", "gitleaks"), "secrets.engine must be regex or gitleaks, got %q", c.Secrets.Engine)
	}

	check(c.Ingest.MaxFileSize > 0, "ingest.max_file_size must be > 0")

	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server.port must be 1-65535, got %d", c.Server.Port)
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")

	check(oneOf(c.Logging.Format, "json", "console"), "logging.format must be json or console, got %q", c.Logging.Format)

	if c.Telemetry.Enabled {
		check(c.Telemetry.ServiceName != "", "telemetry.service_name is required when telemetry is enabled")
		check(c.Telemetry.Endpoint != "", "telemetry.endpoint is required when telemetry is enabled")
		check(oneOf(c.Telemetry.Protocol, "grpc", "http"), "telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol)
		check(c.Telemetry.SampleRate >= 0 && c.Telemetry.SampleRate <= 1, "telemetry.sample_rate must be in [0,1]")
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
