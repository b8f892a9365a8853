package routes

import (
	"quantlab/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupBacktestRoutes sets up all routes related to Backtest management
func SetupBacktestRoutes(r *gin.Engine, limited gin.HandlerFunc, h *handlers.BacktestHandler) {
	backtest := r.Group("/backtest", limited)
	{
		backtest.GET("", handlers.ListBacktests)
		backtest.GET("/:id", handlers.GetBacktest)
		backtest.POST("", h.CreateBacktest)
		backtest.DELETE("/:id", handlers.DeleteBacktest)

		backtest.GET("/:id/progress", h.GetBacktestProgress)
	}
}
