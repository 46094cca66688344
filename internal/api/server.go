package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"stock-scenario-engine/config"
	"stock-scenario-engine/internal/auth"
	"stock-scenario-engine/internal/cache"
	"stock-scenario-engine/internal/database"
	"stock-scenario-engine/internal/scenario"
	"stock-scenario-engine/internal/sentiment"
	"stock-scenario-engine/internal/vault"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.ServerConfig
	generator   *scenario.Generator
	store       scenario.Store
	repo        *database.Repository // nil when running on the in-memory store
	keywords    *sentiment.KeywordService
	cacheSvc    *cache.CacheService // nil when Redis is disabled
	vaultClient *vault.Client
	authService *auth.Service // nil when auth is disabled
	authEnabled bool
	rateLimiter *RateLimiter
	hub         *WSHub
	logger      zerolog.Logger
}

// Deps bundles the services the server exposes over HTTP.
type Deps struct {
	Generator   *scenario.Generator
	Store       scenario.Store
	Repo        *database.Repository
	Keywords    *sentiment.KeywordService
	Cache       *cache.CacheService
	Vault       *vault.Client
	AuthService *auth.Service
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      cfg,
		generator:   deps.Generator,
		store:       deps.Store,
		repo:        deps.Repo,
		keywords:    deps.Keywords,
		cacheSvc:    deps.Cache,
		vaultClient: deps.Vault,
		authService: deps.AuthService,
		authEnabled: deps.AuthService != nil,
		rateLimiter: NewRateLimiter(120, time.Minute),
		hub:         NewWSHub(logger),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	go server.hub.Run()

	return server
}

func splitOrigins(origins string) []string {
	if origins == "" || origins == "*" {
		return []string{"*"}
	}
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// requestIDMiddleware tags each request with a trace ID, honoring one
// supplied by the caller.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// rateLimitMiddleware limits requests per endpoint to protect upstream data providers
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint, slow down",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	if s.authEnabled {
		authHandlers := auth.NewHandlers(s.authService)
		authHandlers.RegisterRoutes(s.router.Group("/api/auth"))
	}

	// Always available, tells clients whether they need to authenticate
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"enabled": s.authEnabled})
	})

	apiGroup := s.router.Group("/api")
	apiGroup.Use(s.rateLimitMiddleware())
	if s.authEnabled {
		apiGroup.Use(auth.Middleware(s.authService.JWT()))
	}

	apiGroup.GET("/scenarios/:symbol", s.handleGetScenarios)
	apiGroup.GET("/indicators/:symbol", s.handleGetIndicators)
	apiGroup.POST("/scenarios/:symbol/outcome", s.handleRecordOutcome)
	apiGroup.GET("/scenarios/:symbol/history", s.handleSetHistory)
	apiGroup.GET("/signal/:symbol", s.handleGetSignal)
	apiGroup.GET("/ws", s.handleWebSocket)

	adminGroup := apiGroup.Group("/admin")
	if s.authEnabled {
		adminGroup.Use(auth.AdminOnly())
	}
	adminGroup.POST("/keywords/invalidate", s.handleInvalidateKeywords)
	adminGroup.PUT("/credentials", s.handleStoreCredential)
	adminGroup.DELETE("/credentials/:provider", s.handleDeleteCredential)
	adminGroup.POST("/cache/flush", s.handleFlushCache)
}

// Start begins listening for HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	s.hub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Hub exposes the WebSocket hub so background refreshers can broadcast updates.
func (s *Server) Hub() *WSHub {
	return s.hub
}

// handleHealth reports the health of the server and its backing services
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	checks := gin.H{}

	if s.repo != nil {
		if err := s.repo.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "memory"
	}

	if s.cacheSvc != nil {
		if s.cacheSvc.IsHealthy() {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "degraded"
		}
	}

	if s.vaultClient != nil && s.vaultClient.IsEnabled() {
		if err := s.vaultClient.Health(ctx); err != nil {
			checks["vault"] = "unhealthy"
		} else {
			checks["vault"] = "healthy"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
