package routes

import (
	"quantlab/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupPaperRoutes sets up paper run management, the engine event
// callback, and the browser websocket.
func SetupPaperRoutes(r *gin.Engine, limited gin.HandlerFunc, h *handlers.PaperHandler, ev *handlers.PaperEventHandler, ws *handlers.WSHandler) {
	paper := r.Group("/paper", limited)
	{
		paper.GET("", handlers.ListPaperRuns)
		paper.GET("/:run_id", handlers.GetPaperRun)
		paper.POST("/start", h.StartPaperRun)
		paper.POST("/stop/:run_id", h.StopPaperRun)

		paper.GET("/:run_id/engine-status", h.GetPaperEngineStatus)
	}

	// Engine callback; path must match the engine's BACKEND_EVENT_URL.
	r.POST("/api/paper/internal/event", ev.HandleEngineEvent)

	// Browser fanout socket
	r.GET("/ws/paper", ws.HandlePaperSocket)
}
