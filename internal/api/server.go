// Package api exposes the TaskManager management API contract (spec.md
// §4.6, §6.4) over HTTP using gin, adapted from the teacher's job-management
// HTTP surface onto the scheduler's task domain.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ai-task-scheduler/engine/internal/api/middleware"
	"github.com/ai-task-scheduler/engine/internal/auth"
	"github.com/ai-task-scheduler/engine/internal/coordination"
	"github.com/ai-task-scheduler/engine/internal/storage"
	"github.com/ai-task-scheduler/engine/internal/taskmanager"
)

// Server encapsulates the HTTP API server and its dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	manager     *taskmanager.Manager
	execStore   storage.ExecutionStore
	coordinator coordination.Coordinator
	election    coordination.Election
	logger      *zap.Logger
}

// Config holds API server configuration.
type Config struct {
	Port        string
	Manager     *taskmanager.Manager
	ExecStore   storage.ExecutionStore
	Coordinator coordination.Coordinator
	Election    coordination.Election
	JWTService  *auth.JWTService
	APIKeyStore auth.APIKeyStore
	AuthEnabled bool
	Logger      *zap.Logger
}

// NewServer creates a new API server with all dependencies.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.TracingMiddleware("ai-task-scheduler-api"))
	router.Use(requestLogger(cfg.Logger))
	router.Use(middleware.RateLimitMiddleware())
	router.Use(middleware.BodySizeLimitMiddleware(1 << 20))

	if cfg.AuthEnabled {
		router.Use(middleware.AuthMiddleware(middleware.AuthConfig{
			JWTService:  cfg.JWTService,
			APIKeyStore: cfg.APIKeyStore,
			SkipPaths:   []string{"/health", "/metrics"},
		}))
	}

	s := &Server{
		router:      router,
		manager:     cfg.Manager,
		execStore:   cfg.ExecStore,
		coordinator: cfg.Coordinator,
		election:    cfg.Election,
		logger:      cfg.Logger,
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("api server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("api server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes sets up all API endpoints (spec.md §6.4, SPEC_FULL.md §5).
func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", s.createTask)
			tasks.POST("/reminders", s.createReminder)
			tasks.GET("", s.listTasks)
			tasks.GET("/:id", s.getTask)
			tasks.PATCH("/:id", s.updateTask)
			tasks.DELETE("/:id", s.deleteTask)
			tasks.POST("/:id/trigger", s.triggerTask)
			tasks.GET("/:id/executions", s.listTaskExecutions)
		}

		schedule := v1.Group("/schedule")
		{
			schedule.POST("/preview", s.previewNextRun)
		}

		cluster := v1.Group("/cluster")
		{
			cluster.GET("/nodes", s.listNodes)
			cluster.GET("/leader", s.getLeader)
		}
	}
}

// requestLogger logs every HTTP request via the injected zap logger —
// never a package-level global (SPEC_FULL.md §2's logging section).
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// healthCheck reports server health with dependency checks.
func (s *Server) healthCheck(c *gin.Context) {
	deps := map[string]bool{
		"task_store":  s.manager != nil,
		"coordinator": s.coordinator != nil,
	}

	healthy := true
	for _, ok := range deps {
		if !ok {
			healthy = false
			break
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}

// userIDFromContext resolves the acting user from auth context when auth
// middleware ran, falling back to the X-User-ID request header for
// auth-disabled deployments (spec.md §6.5 leaves authentication upstream of the core).
func userIDFromContext(c *gin.Context) string {
	if claims, ok := middleware.GetUserFromContext(c); ok {
		return claims.UserID
	}
	return c.GetHeader("X-User-ID")
}
