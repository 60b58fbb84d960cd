package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"presencelight/internal/api/handlers"
	"presencelight/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the optional status API key
const APIKeyHeader = "X-PresenceLight-Key"

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Status      handlers.StatusSource
	Transitions handlers.TransitionLister // Optional: nil when history is disabled
	DryRun      bool
	APIKey      string // Optional: empty disables authentication
	Logger      *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler(config.Status)
	router.GET("/health", healthHandler.GetHealth)

	v1 := router.Group("/v1")
	if config.APIKey != "" {
		v1.Use(authMiddleware(config.APIKey))
	}
	{
		statusHandler := handlers.NewStatusHandler(config.Status, config.DryRun)
		v1.GET("/status", statusHandler.GetStatus)

		transitionsHandler := handlers.NewTransitionsHandler(config.Transitions, config.Logger)
		v1.GET("/transitions", transitionsHandler.ListTransitions)
	}

	return router
}

// authMiddleware verifies API key authentication
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
