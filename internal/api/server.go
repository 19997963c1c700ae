// Package api exposes the reasoning engine over HTTP: an SSE streaming
// endpoint for natural-language queries, a JSON-RPC MCP endpoint, and an
// admin audit trail.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/audit"
	"github.com/stratalabs/finsight/internal/mcp"
	"github.com/stratalabs/finsight/internal/metrics"
	"github.com/stratalabs/finsight/internal/reason"
	"github.com/stratalabs/finsight/internal/tools"
)

// Pinger reports backend connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config contains server configuration
type Config struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	RateLimitPerSec float64
	RateLimitBurst  int

	Registry     *tools.Registry
	Orchestrator *reason.Orchestrator
	MCP          *mcp.Server
	Audit        *audit.Logger
	DB           Pinger
}

// Server represents the REST API server
type Server struct {
	router       *gin.Engine
	registry     *tools.Registry
	orchestrator *reason.Orchestrator
	mcp          *mcp.Server
	audit        *audit.Logger
	db           Pinger
	addr         string
	server       *http.Server
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Caller-Id", "X-Caller-Name", "X-Roles"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limiter := newClientLimiter(config.RateLimitPerSec, config.RateLimitBurst)
	router.Use(limiter.Middleware())

	server := &Server{
		router:       router,
		registry:     config.Registry,
		orchestrator: config.Orchestrator,
		mcp:          config.MCP,
		audit:        config.Audit,
		db:           config.DB,
		addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
	}

	server.setupRoutes()

	return server
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Write timeout stays generous; SSE streams hold the connection
		// open for the full reasoning run.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		method := c.Request.Method

		metrics.RecordAPIRequest(method, path, fmt.Sprintf("%d", statusCode), latency.Seconds()*1000)

		logEvent := log.Info()
		if statusCode >= 500 {
			logEvent = log.Error()
		} else if statusCode >= 400 {
			logEvent = log.Warn()
		}

		logEvent.
			Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("Request")
	}
}
