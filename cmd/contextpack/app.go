package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/chunking"
	"github.com/fyrsmithlabs/contextpack/internal/compression"
	"github.com/fyrsmithlabs/contextpack/internal/config"
	"github.com/fyrsmithlabs/contextpack/internal/embeddings"
	"github.com/fyrsmithlabs/contextpack/internal/ingest"
	"github.com/fyrsmithlabs/contextpack/internal/logging"
	"github.com/fyrsmithlabs/contextpack/internal/memory"
	"github.com/fyrsmithlabs/contextpack/internal/orchestrator"
	"github.com/fyrsmithlabs/contextpack/internal/retrieval"
	"github.com/fyrsmithlabs/contextpack/internal/secrets"
	"github.com/fyrsmithlabs/contextpack/internal/telemetry"
)

// app holds the wired pipeline.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	provider  embeddings.Provider
	manager   *orchestrator.ContextManager
}

// newApp loads configuration, applies overrides and wires every component.
func newApp(ctx context.Context, configPath string, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}

	a := &app{cfg: cfg}

	// Telemetry starts before the logger so the OTEL bridge has a provider.
	var degraded []error
	a.telemetry, err = telemetry.New(ctx, cfg.Telemetry, version,
		telemetry.WithDegradedHandler(func(err error) { degraded = append(degraded, err) }))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("logging configuration: %w", err)
	}
	a.logger, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	zl := a.logger.Underlying()
	for _, err := range degraded {
		a.logger.Warn(ctx, "telemetry degraded", zap.Error(err))
	}

	a.provider, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:          cfg.Embeddings.Provider,
		Model:             cfg.Embeddings.Model,
		BaseURL:           cfg.Embeddings.BaseURL,
		APIKey:            cfg.Embeddings.APIKey.Value(),
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		Timeout:           cfg.Embeddings.Timeout.Duration(),
		CacheDir:          cfg.Embeddings.CacheDir,
		LibraryPath:       cfg.Embeddings.LibraryPath,
		Dimension:         cfg.Embeddings.Dimension,
		Logger:            zl.Named("embeddings"),
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	a.manager, err = newManager(cfg, a.provider, zl)
	if err != nil {
		a.close()
		return nil, err
	}

	a.logger.Info(ctx, "contextpack initialized",
		zap.String("embeddings.provider", cfg.Embeddings.Provider),
		logging.Secret("embeddings.api_key", cfg.Embeddings.APIKey),
		zap.String("retriever", cfg.Retriever.Kind),
		zap.Int("max_context_size", cfg.Context.MaxContextSize),
		zap.Bool("dedup", cfg.Dedup.Enabled),
		zap.Bool("memory_governor", cfg.Memory.Enabled),
		zap.Bool("secrets", cfg.Secrets.Enabled),
		zap.Bool("telemetry", a.telemetry.Enabled()))
	return a, nil
}

func newManager(cfg *config.Config, emb embeddings.Embedder, logger *zap.Logger) (*orchestrator.ContextManager, error) {
	chunker, err := chunking.NewSemanticChunker(cfg.Chunker.Size)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	dedup, err := compression.NewSemanticDeduplicator(cfg.Dedup.Threshold, emb,
		compression.WithLogger(logger.Named("compression")))
	if err != nil {
		return nil, fmt.Errorf("creating deduplicator: %w", err)
	}

	retriever, err := retrieval.New(cfg.Retriever.Kind, emb,
		retrieval.WithCacheSize(cfg.Retriever.CacheSize),
		retrieval.WithLogger(logger.Named("retrieval")))
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	var governor memory.Governor = memory.NoopGovernor{}
	if cfg.Memory.Enabled {
		governor, err = memory.NewMemoryManager(memory.Config{
			TargetUsagePercent: cfg.Memory.TargetUsagePercent,
			MinBudget:          cfg.Memory.MinBudget,
			LimitBytes:         cfg.Memory.LimitBytes,
			EvictFraction:      cfg.Memory.EvictFraction,
		}, memory.WithLogger(logger.Named("memory")))
		if err != nil {
			return nil, fmt.Errorf("creating memory governor: %w", err)
		}
	}

	scrubber, err := secrets.New(secrets.Config{
		Enabled:       cfg.Secrets.Enabled,
		Engine:        cfg.Secrets.Engine,
		Redaction:     cfg.Secrets.Redaction,
		AllowList:     cfg.Secrets.AllowList,
		AllowlistFile: cfg.Secrets.AllowlistFile,
	})
	if err != nil {
		return nil, fmt.Errorf("creating secret scrubber: %w", err)
	}

	m, err := orchestrator.New(orchestrator.Config{
		MaxContextSize:    cfg.Context.MaxContextSize,
		DedupEnabled:      cfg.Dedup.Enabled,
		DedupGranularity:  cfg.Dedup.Granularity,
		IngestConcurrency: cfg.Context.IngestConcurrency,
		EvictChunks:       cfg.Context.EvictChunks,
		EvictFraction:     cfg.Context.EvictFraction,
		Separator:         cfg.Context.Separator,
	},
		orchestrator.WithChunker(chunker),
		orchestrator.WithCompressor(dedup),
		orchestrator.WithRetriever(retriever),
		orchestrator.WithGovernor(governor),
		orchestrator.WithScrubber(scrubber),
		orchestrator.WithLogger(logger.Named("orchestrator")),
	)
	if err != nil {
		return nil, fmt.Errorf("creating context manager: %w", err)
	}
	return m, nil
}

func (a *app) ingestConfig() ingest.Config {
	return ingest.Config{
		Extensions:  a.cfg.Ingest.Extensions,
		MaxFileSize: a.cfg.Ingest.MaxFileSize,
		Debounce:    a.cfg.Ingest.Debounce.Duration(),
	}
}

// close releases the provider and flushes telemetry and logs.
func (a *app) close() {
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.telemetry != nil {
		_ = a.telemetry.Shutdown(context.Background())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
