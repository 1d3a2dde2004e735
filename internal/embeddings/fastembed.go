//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	fastembed "github.com/anush008/fastembed-go"
	"go.uber.org/zap"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is the embedding model or family name. See ResolveModel.
	Model string

	// CacheDir is the directory to cache model files.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int

	// BatchSize is the number of passages embedded per ONNX call. Defaults to 256.
	BatchSize int

	// LibraryPath points at the ONNX runtime shared library. Overrides ONNX_PATH.
	LibraryPath string

	Logger *zap.Logger
}

// FastEmbedProvider provides embedding generation using local ONNX models on the CPU.
type FastEmbedProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	batchSize int
	metrics   *Metrics
	mu        sync.RWMutex
}

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-bge-small-en":                      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"fast-bge-base-en":                       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
}

// NewFastEmbedProvider loads the model, downloading it into CacheDir on first use.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	name := ResolveModel(cfg.Model)
	model, ok := modelMapping[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q (supported: BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, sentence-transformers/all-MiniLM-L6-v2)", ErrInvalidConfig, cfg.Model)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.LibraryPath != "" {
		if err := os.Setenv("ONNX_PATH", cfg.LibraryPath); err != nil {
			return nil, fmt.Errorf("setting ONNX_PATH: %w", err)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	logger.Info("fastembed model loaded",
		zap.String("model", name),
		zap.String("cache_dir", cacheDir))

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelName: name,
		dimension: DimensionFor(name),
		batchSize: batchSize,
		metrics:   NewMetrics(logger),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
// Uses the "passage: " prefix recommended for BGE document embeddings.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) (vecs [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.modelName, opDocuments, time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vecs, err = p.model.PassageEmbed(texts, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vecs, nil
}

// EmbedQuery generates an embedding for a single query with the "query: " prefix.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.modelName, opQuery, time.Since(start), 1, err)
	}()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vec, err = p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

// Dimension returns the embedding dimension for the current model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX session.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		err := p.model.Destroy()
		p.model = nil
		return err
	}
	return nil
}
