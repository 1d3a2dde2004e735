package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TEIConfig holds configuration for a Text Embeddings Inference service.
type TEIConfig struct {
	// BaseURL is the base URL of the TEI server.
	BaseURL string

	// Model is reported in metrics and used to derive the dimension.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// RequestsPerSecond limits outgoing requests. 0 disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Defaults to 1.
	Burst int

	// Timeout bounds a single request. Defaults to 30s.
	Timeout time.Duration

	Logger *zap.Logger
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// TEIProvider calls the TEI /embed endpoint.
type TEIProvider struct {
	config    TEIConfig
	model     string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
	metrics   *Metrics
}

// NewTEIProvider creates a TEI provider.
func NewTEIProvider(cfg TEIConfig) (*TEIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	model := ResolveModel(cfg.Model)
	return &TEIProvider{
		config:    cfg,
		model:     model,
		dimension: DimensionFor(model),
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		metrics:   NewMetrics(logger),
	}, nil
}

// teiRequest is the request body for TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) (vecs [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, opDocuments, time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	return p.embed(ctx, texts, len(texts))
}

// EmbedQuery generates an embedding for a single query.
func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, opQuery, time.Since(start), 1, err)
	}()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vecs, err := p.embed(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimension returns the embedding dimension based on the configured model.
func (p *TEIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for TEI since it uses HTTP.
func (p *TEIProvider) Close() error {
	return nil
}

func (p *TEIProvider) embed(ctx context.Context, inputs interface{}, want int) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != want {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbeddingFailed, len(vectors), want)
	}
	return vectors, nil
}
