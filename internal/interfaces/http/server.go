// Package http provides the HTTP adapter for the application layer.
// Handlers translate requests into engine and service calls and map the
// returned error kinds to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/application/service"
	"github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/entity"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TokenParser turns a bearer token into the calling user
type TokenParser interface {
	Parse(token string) (*entity.User, error)
}

// MetricsCollector records request metrics and exposes them
type MetricsCollector interface {
	RequestStarted() func(method, route string, status int)
	Handler() http.Handler
}

// RateLimitConfig bounds requests per client IP
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		Mode:         gin.ReleaseMode,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}

// Services groups the application entry points served over HTTP
type Services struct {
	Engine   workflow.ReportEngine
	Reports  service.ReportService
	Notes    service.NoteService
	Activity service.ActivityService
	Exporter port.ReportExporter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	tokens     TokenParser
	metrics    MetricsCollector
	logger     Logger
}

// NewServer creates a new HTTP server. tokens and metrics may be nil.
func NewServer(
	config ServerConfig,
	services Services,
	tokens TokenParser,
	metrics MetricsCollector,
	logger Logger,
) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		tokens:   tokens,
		metrics:  metrics,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if s.metrics != nil {
		s.router.Use(metricsMiddleware(s.metrics))
	}
	if s.config.RateLimit.Enabled {
		limiter := newIPRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst)
		s.router.Use(limiter.middleware())
	}
	s.router.Use(authMiddleware(s.tokens, s.logger))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.GET("/workflow/stages", h.ListStages)
		api.GET("/activity", h.Activity)
		api.GET("/track/:key", h.TrackConfidential)

		reports := api.Group("/reports")
		reports.POST("/normal", h.SubmitNormal)
		reports.POST("/confidential", h.SubmitConfidential)
		reports.POST("/urgent", h.SubmitUrgent)

		reports.GET("", h.ListReports)
		reports.GET("/summary", h.Summary)
		reports.GET("/export", h.ExportReports)
		reports.GET("/:id", h.GetReport)
		reports.GET("/:id/audit-log", h.ListAuditLog)

		reports.POST("/:id/receive", h.ApplyAction(domainwf.ActionReceive))
		reports.POST("/:id/assign", h.ApplyAction(domainwf.ActionAssign))
		reports.POST("/:id/forward", h.ApplyAction(domainwf.ActionForward))
		reports.POST("/:id/done", h.ApplyAction(domainwf.ActionDone))
		reports.POST("/:id/close", h.ApplyAction(domainwf.ActionClose))
		reports.POST("/:id/escalate", h.ApplyAction(domainwf.ActionEscalate))
		reports.PUT("/:id/assignment", h.UpdateAssignment)

		reports.GET("/:id/notes", h.NoteIndicators)
		reports.GET("/:id/stages/:stage/note", h.GetNote)
		reports.PUT("/:id/stages/:stage/note", h.SetNote)
		reports.GET("/:id/stages/:stage/has-note", h.HasNote)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

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
