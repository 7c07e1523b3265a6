// Package http provides the HTTP server adapter for the workflow service.
// It is the only place where error kinds are mapped to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-engine/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MetricsPath is where the metrics handler is mounted, if one is set
	MetricsPath string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MetricsPath:  "/metrics",
	}
}

// Server is the HTTP server adapter
type Server struct {
	config          ServerConfig
	httpServer      *http.Server
	router          *gin.Engine
	workflowService service.WorkflowService
	health          HealthReporter
	metrics         http.Handler
	logger          Logger
}

// ServerOption configures optional server endpoints
type ServerOption func(*Server)

// WithHealthReporter backs GET /health with component checks
func WithHealthReporter(h HealthReporter) ServerOption {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetricsHandler mounts h at config.MetricsPath
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	workflowService service.WorkflowService,
	logger Logger,
	opts ...ServerOption,
) *Server {
	// Set gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:          config,
		router:          router,
		workflowService: workflowService,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.workflowService, s.health, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	if s.metrics != nil && s.config.MetricsPath != "" {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.metrics))
	}

	definitions := s.router.Group("/workflow-definitions")
	{
		definitions.POST("", handlers.CreateDefinition)
		definitions.GET("", handlers.ListDefinitions)
		definitions.GET("/:id", handlers.GetDefinition)
		definitions.DELETE("/:id", handlers.DeleteDefinition)
		definitions.POST("/:id/instances", handlers.StartInstance)
		definitions.GET("/:id/instances", handlers.ListDefinitionInstances)
	}

	instances := s.router.Group("/workflow-instances")
	{
		instances.GET("", handlers.ListInstances)
		instances.GET("/:id", handlers.GetInstance)
		instances.POST("/:id/actions", handlers.ExecuteAction)
		instances.GET("/:id/available-actions", handlers.AvailableActions)
		instances.GET("/:id/history.xlsx", handlers.ExportHistory)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
