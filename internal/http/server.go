// Package http provides the HTTP and websocket API for collabd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/collabd/internal/ai"
	"github.com/fyrsmithlabs/collabd/internal/collab"
	"github.com/fyrsmithlabs/collabd/internal/note"
	"github.com/fyrsmithlabs/collabd/internal/similarity"
)

// Server provides HTTP endpoints for collabd.
type Server struct {
	echo     *echo.Echo
	store    note.Store
	users    note.UserDirectory
	gateway  *ai.Gateway
	sessions *collab.Manager
	logger   *zap.Logger
	config   *Config

	// baseCtx outlives individual requests so a client disconnect cannot
	// cancel an in-flight collaborative write.
	baseCtx context.Context
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(store note.Store, users note.UserDirectory, gateway *ai.Gateway, sessions *collab.Manager, logger *zap.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if gateway == nil {
		return nil, fmt.Errorf("ai gateway cannot be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
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
		echo:     e,
		store:    store,
		users:    users,
		gateway:  gateway,
		sessions: sessions,
		logger:   logger,
		config:   cfg,
		baseCtx:  context.Background(),
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Realtime collaboration
	s.echo.GET("/ws", s.handleWebSocket)

	api := s.echo.Group("/api")

	api.POST("/users", s.handleCreateUser)

	api.POST("/notes", s.handleCreateNote)
	api.GET("/notes", s.handleListNotes)
	api.GET("/notes/:id", s.handleGetNote)
	api.PUT("/notes/:id", s.handleUpdateNote)
	api.DELETE("/notes/:id", s.handleDeleteNote)
	api.POST("/notes/:id/share", s.handleShareNote)
	api.POST("/notes/:id/unshare", s.handleUnshareNote)

	api.POST("/ai/summarize", s.handleSummarize)
	api.POST("/ai/tags", s.handleTags)
	api.POST("/ai/search", s.handleSearch)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// userID extracts the acting user from the X-User-ID header.
func userID(c echo.Context) (string, error) {
	id := c.Request().Header.Get("X-User-ID")
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
	}
	return id, nil
}

// domainError maps domain sentinel errors onto HTTP status codes.
func domainError(err error) error {
	switch {
	case errors.Is(err, note.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "note not found")
	case errors.Is(err, note.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, "not authorized")
	case errors.Is(err, ai.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrAllProvidersExhausted):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, similarity.ErrNoQueryVector):
		return echo.NewHTTPError(http.StatusBadGateway, "query could not be embedded")
	case errors.Is(err, similarity.ErrDimensionMismatch):
		return echo.NewHTTPError(http.StatusInternalServerError, "stored embedding dimensions are inconsistent")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
