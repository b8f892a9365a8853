package handlers

import (
	"net/http"

	"quantlab/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// CORS is enforced by the router middleware; the ws handshake
	// accepts any origin the browser got past that.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// controlSignal is a join/leave frame from the browser. No ack is sent.
type controlSignal struct {
	Action string `json:"action"`
	RunID  string `json:"run_id"`
}

// WSHandler is the browser-facing fanout gateway. Each connection gets
// a registry client; join_paper_run/leave_paper_run signals manage its
// room memberships and disconnect drops them all.
type WSHandler struct {
	Registry *relay.Registry
}

func NewWSHandler(r *relay.Registry) *WSHandler {
	return &WSHandler{Registry: r}
}

func (h *WSHandler) HandlePaperSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithFields(log.Fields{"error": err.Error()}).Error("WebSocket upgrade failed")
		return
	}

	client := relay.NewClient()

	// Write pump: drains until Drop closes the send channel.
	go func() {
		defer conn.Close()
		for msg := range client.Send() {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithFields(log.Fields{"error": err.Error()}).Debug("WebSocket write failed")
				return
			}
		}
	}()

	// Read loop: join/leave signals until the peer goes away.
	for {
		var sig controlSignal
		if err := conn.ReadJSON(&sig); err != nil {
			break
		}
		if sig.RunID == "" {
			continue
		}
		switch sig.Action {
		case "join_paper_run":
			h.Registry.Join(client, sig.RunID)
		case "leave_paper_run":
			h.Registry.Leave(client, sig.RunID)
		}
	}

	h.Registry.Drop(client)
	conn.Close()
}
