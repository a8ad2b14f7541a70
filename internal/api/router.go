package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sanjeevkumarraob/pdf-text-service/internal/config"
)

// NewRouter sets up the API router
func NewRouter(handler *Handler, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes
	router.GET("/", handler.HealthCheck)

	authRoutes := router.Group("/auth")
	{
		authRoutes.GET("/session", handler.GetSession)
		authRoutes.POST("/session", handler.CreateSession)
		authRoutes.POST("/signout", handler.SignOut)
	}

	// Auth required routes
	authorized := router.Group("/api")
	if cfg.RateLimit.Enabled {
		authorized.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))
	}
	authorized.Use(AuthMiddleware(handler.authenticator))
	{
		authorized.POST("/upload", handler.Upload)

		authorized.GET("/pdf", handler.ListDocuments)
		authorized.GET("/pdf/:id", handler.GetDocument)
		authorized.DELETE("/pdf", handler.DeleteDocument)
	}

	return router
}
