// Package server hosts the pipeline behind a gin HTTP listener. It converts
// each inbound request to the pipeline's transport-neutral form, runs the
// executor, and writes the result back.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dkoretsky/pipegate/internal/middleware"
	"github.com/dkoretsky/pipegate/internal/observability"
	"github.com/dkoretsky/pipegate/internal/pipeline"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// serverTracer is the OTEL tracer for inbound request spans.
var serverTracer = otel.Tracer("pipegate/server")

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MaxBodyBytes caps how much request body is read into memory.
	// Default is 10MB. Set to 0 to disable the limit.
	MaxBodyBytes int64
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		MaxBodyBytes: 10 << 20,
	}
}

// Server is the HTTP front end for a pipeline executor.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	executor   *pipeline.Executor
	logger     observability.Logger
	config     *ServerConfig
	mu         sync.RWMutex
	running    bool
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new HTTP server around the given executor.
func NewServer(config *ServerConfig, executor *pipeline.Executor, opts ...ServerOption) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	// Set Gin mode based on environment (only once to avoid race conditions)
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()

	s := &Server{
		engine:   engine,
		executor: executor,
		logger:   observability.NopLogger(),
		config:   config,
	}

	for _, opt := range opts {
		opt(s)
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return s
}

// Handle registers a route whose handler runs through the pipeline.
func (s *Server) Handle(method, path string, handler pipeline.Handler) {
	s.engine.Handle(method, path, func(c *gin.Context) {
		s.serve(c, handler)
	})
}

// HandleAny registers a route for every method under the given gin path
// pattern (e.g. "/api/*path").
func (s *Server) HandleAny(path string, handler pipeline.Handler) {
	s.engine.Any(path, func(c *gin.Context) {
		s.serve(c, handler)
	})
}

// HandleFallback registers the handler for every request no explicit route
// matched. Unlike a root-level "/*path" wildcard it does not conflict with
// the health endpoint.
func (s *Server) HandleFallback(handler pipeline.Handler) {
	s.engine.NoRoute(func(c *gin.Context) {
		s.serve(c, handler)
	})
}

// GetEngine returns the underlying gin engine.
func (s *Server) GetEngine() *gin.Engine {
	return s.engine
}

// serve converts the gin request, runs the pipeline, and writes the result.
func (s *Server) serve(c *gin.Context, handler pipeline.Handler) {
	req, err := s.toPipelineRequest(c)
	if err != nil {
		s.logger.Warn("failed to read request body",
			observability.String("path", c.Request.URL.Path),
			observability.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	requestID := req.Header.Get(middleware.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
		req.Header.Set(middleware.HeaderXRequestID, requestID)
	}
	ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)

	ctx, span := serverTracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	resp := s.executor.Execute(ctx, req, handler)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	writeResponse(c, resp)
}

// toPipelineRequest builds the pipeline view of the inbound request. The
// body is fully read here so middleware and handlers see bytes, not a
// stream.
func (s *Server) toPipelineRequest(c *gin.Context) (*pipeline.Request, error) {
	req := &pipeline.Request{
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		Header:     c.Request.Header,
		RemoteAddr: c.Request.RemoteAddr,
	}

	if c.Request.Body == nil {
		return req, nil
	}

	body := c.Request.Body
	if s.config.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, s.config.MaxBodyBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	req.Body = data

	return req, nil
}

// writeResponse copies the pipeline response onto the wire.
func writeResponse(c *gin.Context, resp *pipeline.Response) {
	header := c.Writer.Header()
	for key, values := range resp.Header {
		header[key] = values
	}

	c.Status(resp.StatusCode)

	if len(resp.Body) > 0 {
		_, _ = c.Writer.Write(resp.Body)
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	s.httpServer = &http.Server{
		Addr:         s.config.Address,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", s.config.Address),
		observability.Duration("readTimeout", s.config.ReadTimeout),
		observability.Duration("writeTimeout", s.config.WriteTimeout),
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
