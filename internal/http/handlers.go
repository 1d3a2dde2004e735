package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/logging"
	"github.com/fyrsmithlabs/contextpack/internal/orchestrator"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AddDocumentsRequest is the request body for POST /api/v1/documents.
type AddDocumentsRequest struct {
	Documents []orchestrator.DocumentInput `json:"documents"`
}

// AddDocumentsResponse is the response body for POST /api/v1/documents.
// After a partial failure it lists the documents that were stored, and
// FailedIndex is the position of the first document that was not.
type AddDocumentsResponse struct {
	IDs         []string `json:"ids"`
	Error       string   `json:"error,omitempty"`
	FailedIndex *int     `json:"failed_index,omitempty"`
}

// ContextRequest is the request body for POST /api/v1/context.
type ContextRequest struct {
	Query string `json:"query"`
	// MaxContextSize overrides the configured budget when set.
	MaxContextSize *int `json:"max_context_size,omitempty"`
}

// ContextResponse is the response body for POST /api/v1/context.
type ContextResponse struct {
	Context  string   `json:"context"`
	Tokens   int      `json:"tokens"`
	ChunkIDs []string `json:"chunk_ids"`
	Budget   int      `json:"budget"`
	Degraded bool     `json:"degraded"`
}

// ChunkResponse describes one stored chunk.
type ChunkResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Position   int    `json:"position"`
	Tokens     int    `json:"tokens"`
	Content    string `json:"content"`
}

// ChunksResponse is the response body for GET /api/v1/chunks.
type ChunksResponse struct {
	Chunks []ChunkResponse `json:"chunks"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAddDocuments(c echo.Context) error {
	var req AddDocumentsRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid documents request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	ctx := c.Request().Context()
	ids, err := s.service.AddDocuments(ctx, req.Documents)
	if err != nil {
		s.logger.Error("adding documents failed",
			append(logging.ContextFields(ctx), zap.Int("committed", len(ids)), zap.Error(err))...)
		if len(ids) == 0 {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to add documents")
		}
		// Documents are committed in order up to the first failure.
		failed := len(ids)
		return c.JSON(http.StatusMultiStatus, AddDocumentsResponse{
			IDs:         ids,
			Error:       fmt.Sprintf("document %d could not be added", failed),
			FailedIndex: &failed,
		})
	}

	return c.JSON(http.StatusCreated, AddDocumentsResponse{IDs: ids})
}

func (s *Server) handleContext(c echo.Context) error {
	var req ContextRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid context request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var opts []orchestrator.QueryOption
	if req.MaxContextSize != nil {
		opts = append(opts, orchestrator.WithMaxContextSize(*req.MaxContextSize))
	}

	ctx := c.Request().Context()
	res, err := s.service.GenerateContextResult(ctx, req.Query, opts...)
	if errors.Is(err, orchestrator.ErrInvalidConfig) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		s.logger.Error("generating context failed", append(logging.ContextFields(ctx), zap.Error(err))...)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate context")
	}

	return c.JSON(http.StatusOK, ContextResponse{
		Context:  res.Context,
		Tokens:   res.Tokens,
		ChunkIDs: res.ChunkIDs,
		Budget:   res.Budget,
		Degraded: res.Degraded,
	})
}

func (s *Server) handleChunks(c echo.Context) error {
	docID := c.QueryParam("document_id")

	chunks := s.service.Chunks()
	resp := ChunksResponse{Chunks: make([]ChunkResponse, 0, len(chunks))}
	for _, ch := range chunks {
		if docID != "" && ch.DocumentID != docID {
			continue
		}
		resp.Chunks = append(resp.Chunks, ChunkResponse{
			ID:         ch.ID,
			DocumentID: ch.DocumentID,
			Position:   ch.Position,
			Tokens:     ch.TokenCount,
			Content:    ch.Content,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Stats())
}
