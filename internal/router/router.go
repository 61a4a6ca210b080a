package router

import (
	"github.com/gin-gonic/gin"

	"clausewise/internal/config"
	"clausewise/internal/handler"
	"clausewise/internal/logger"
	"clausewise/internal/middleware"
	"clausewise/internal/service"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Analysis *handler.AnalysisHandler
	Contract *handler.ContractHandler
	Health   *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(cfg *config.Config, authSvc service.AuthService, h Handlers, log *logger.Logger) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	v1 := r.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.RefreshToken)
	auth.GET("/me", middleware.AuthMiddleware(authSvc), h.Auth.Me)

	// Analysis is open to anonymous callers; a session only scopes saving.
	v1.POST("/analyze",
		middleware.OptionalAuth(authSvc),
		middleware.RateLimit(cfg.RateLimit),
		h.Analysis.Analyze,
	)

	// Protected routes - require valid JWT
	contracts := v1.Group("/contracts")
	contracts.Use(middleware.AuthMiddleware(authSvc))
	contracts.GET("", h.Contract.List)
	contracts.GET("/export", h.Contract.Export)
	contracts.GET("/:id", h.Contract.GetByID)
	contracts.DELETE("/:id", h.Contract.Delete)

	return r
}
