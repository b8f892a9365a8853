package handlers

import (
	"net/http"
	"os"

	"quantlab/internal/relay"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// PaperEventHandler is the ingress for engine event callbacks. The
// route carries no user authentication: it is expected to be reachable
// only from the engine's network. Setting ENGINE_SHARED_SECRET hardens
// that boundary with a shared-secret header check.
type PaperEventHandler struct {
	Coordinator *relay.Coordinator
}

func NewPaperEventHandler(co *relay.Coordinator) *PaperEventHandler {
	return &PaperEventHandler{Coordinator: co}
}

// HandleEngineEvent accepts one event envelope, dispatches it, and
// reports the outcome to the engine. Validation failures are 4xx with
// no side effects; processing failures are 5xx after a full rollback.
// The engine owns retry; nothing is queued here.
func (h *PaperEventHandler) HandleEngineEvent(c *gin.Context) {
	if secret := os.Getenv("ENGINE_SHARED_SECRET"); secret != "" {
		if c.GetHeader("X-Engine-Secret") != secret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid engine secret"})
			return
		}
	}

	var env relay.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Coordinator.Handle(env); err != nil {
		if relay.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithFields(log.Fields{
			"run_id":     env.RunID,
			"event_type": env.EventType,
			"error":      err.Error(),
		}).Error("Failed to process engine event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
