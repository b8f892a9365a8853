package routes

import (
	"quantlab/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupStrategyRoutes sets up all routes related to Strategy management
func SetupStrategyRoutes(r *gin.Engine, limited gin.HandlerFunc, h *handlers.StrategyHandler) {
	strategy := r.Group("/strategy", limited)
	{
		// Standard CRUD operations
		strategy.GET("", handlers.ListStrategies)
		strategy.GET("/:id", handlers.GetStrategy)
		strategy.POST("", handlers.CreateStrategy)
		strategy.PUT("/:id", handlers.UpdateStrategy)
		strategy.DELETE("/:id", handlers.DeleteStrategy)

		// Special operations
		strategy.POST("/toggle/:id", handlers.ToggleStrategy)
		strategy.POST("/:id/validate", h.ValidateStrategy)
	}
}
