package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTEIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	var gotAuth string
	srv := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Inputs   []string `json:"inputs"`
			Truncate bool     `json:"truncate"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)

		out := make([][]float32, len(req.Inputs))
		for i := range req.Inputs {
			out[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs string `json:"inputs"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is solar power", req.Inputs)
		_, _ = w.Write([]byte(`[[0.5,0.5]]`))
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "what is solar power")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
		{
			name: "vector count mismatch",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[[1,2]]`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTEIServer(t, tt.handler)
			p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = p.EmbedDocuments(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmbeddingFailed)
		})
	}
}

func TestTEIProvider_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := newTEIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[[1]]`))
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.EmbedQuery(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTEIConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, TEIConfig{}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, TEIConfig{BaseURL: "http://x", RequestsPerSecond: -1}.Validate(), ErrInvalidConfig)
	assert.NoError(t, TEIConfig{BaseURL: "http://x"}.Validate())
}
