// Package http serves the context assembly API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/corpus"
	"github.com/fyrsmithlabs/contextpack/internal/logging"
	"github.com/fyrsmithlabs/contextpack/internal/orchestrator"
)

// ContextService is the subset of the ContextManager the API exposes.
type ContextService interface {
	AddDocuments(ctx context.Context, docs []orchestrator.DocumentInput) ([]string, error)
	GenerateContextResult(ctx context.Context, query string, opts ...orchestrator.QueryOption) (*orchestrator.ContextResult, error)
	Chunks() []*corpus.Chunk
	Stats() orchestrator.Stats
}

// Server provides HTTP endpoints over a ContextService.
type Server struct {
	echo    *echo.Echo
	service ContextService
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// BodyLimit caps request bodies, e.g. "16M". Empty disables the limit.
	BodyLimit string
}

// NewServer creates a new HTTP server.
func NewServer(service ContextService, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("context service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(requestContext())
	metrics, err := defaultRequestMetrics()
	if err != nil {
		logger.Warn("http metrics partially unavailable", zap.Error(err))
	}
	e.Use(metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()

	return s, nil
}

// requestContext stores the request id in the request context so downstream
// logs can be correlated.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			}
			return next(c)
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/documents", s.handleAddDocuments)
	v1.POST("/context", s.handleContext)
	v1.GET("/chunks", s.handleChunks)
	v1.GET("/stats", s.handleStats)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
