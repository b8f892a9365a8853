package routes

import (
	"os"
	"strings"

	"quantlab/internal/handlers"
	"quantlab/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers carries the stateful handler groups the router wires up.
// Plain CRUD handlers are package functions and need no injection.
type Handlers struct {
	Strategy *handlers.StrategyHandler
	Backtest *handlers.BacktestHandler
	Paper    *handlers.PaperHandler
	Event    *handlers.PaperEventHandler
	WS       *handlers.WSHandler
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(h Handlers) *gin.Engine {
	r := gin.Default()

	// Add health check endpoint
	r.Any("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Configure CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Get allowed origins from environment variable
		// Format: comma-separated list, e.g., "http://localhost:3000,http://localhost:3001"
		allowedOriginsStr := os.Getenv("ALLOWED_ORIGINS")
		var allowedOrigins []string

		if allowedOriginsStr != "" {
			// Split by comma and trim whitespace
			origins := strings.Split(allowedOriginsStr, ",")
			for _, o := range origins {
				trimmed := strings.TrimSpace(o)
				if trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		}

		// Check if the request origin is in the allowed list
		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		// Handle preflight requests
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Rate limit the public API; the engine callback and the websocket
	// are exempt since both are high-frequency by design.
	limited := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: 20,
		Burst:             40,
	})

	// Setup routes for each module
	SetupStrategyRoutes(r, limited, h.Strategy)
	SetupBacktestRoutes(r, limited, h.Backtest)
	SetupPaperRoutes(r, limited, h.Paper, h.Event, h.WS)

	return r
}
