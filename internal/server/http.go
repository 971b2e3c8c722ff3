// Package server exposes the search engine over HTTP and WebSocket.
// Both transports share the request/response schema and the uniform
// error payload.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	qerrors "github.com/codequery-dev/codequery/internal/errors"
	"github.com/codequery-dev/codequery/internal/search"
	"github.com/codequery-dev/codequery/internal/telemetry"
)

// StatusClientClosedRequest is the nginx convention for a client that
// went away before the response was written.
const StatusClientClosedRequest = 499

// Server hosts the HTTP and WebSocket transports over one engine.
type Server struct {
	engine   *search.Engine
	recorder *telemetry.Recorder
	logger   *slog.Logger
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithTelemetry exposes the recorder's snapshot endpoint.
func WithTelemetry(rec *telemetry.Recorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for the given engine.
func New(engine *search.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin handler with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/v1/stores", s.handleStores)
	r.POST("/v1/stores/:store/search", s.handleSearch)
	r.GET("/v1/ws", s.handleWebSocket)
	if s.recorder != nil {
		r.GET("/v1/telemetry", s.handleTelemetry)
	}

	return r
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("server_listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"stores": s.engine.Stores(),
	})
}

func (s *Server) handleStores(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stores": s.engine.Stores()})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req search.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, qerrors.InvalidQuery("request body is not valid JSON"))
		return
	}

	resp, err := s.engine.Search(c.Request.Context(), c.Param("store"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, s.recorder.Snapshot())
}

// writeError maps an error to its HTTP status and the uniform payload.
func writeError(c *gin.Context, err error) {
	c.JSON(statusOf(err), search.ErrorPayloadOf(err))
}

// statusOf maps the transport error code to an HTTP status.
func statusOf(err error) int {
	switch qerrors.PublicOf(err) {
	case qerrors.PublicInvalidQuery:
		return http.StatusBadRequest
	case qerrors.PublicStoreNotFound:
		return http.StatusNotFound
	case qerrors.PublicDependencyUnavailable:
		return http.StatusServiceUnavailable
	case qerrors.PublicCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
