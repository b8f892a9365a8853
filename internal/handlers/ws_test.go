package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quantlab/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPaperSocket(t *testing.T, registry *relay.Registry) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/ws/paper", NewWSHandler(registry).HandlePaperSocket)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/paper"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForSubscribers polls until the registry sees the expected count;
// join frames are processed asynchronously by the read loop.
func waitForSubscribers(t *testing.T, registry *relay.Registry, runID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if registry.Subscribers(runID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers for %s, got %d", want, runID, registry.Subscribers(runID))
}

func TestPaperSocketJoinAndReceive(t *testing.T) {
	registry := relay.NewRegistry()
	conn := dialPaperSocket(t, registry)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "join_paper_run",
		"run_id": "run-1",
	}))
	waitForSubscribers(t, registry, "run-1", 1)

	registry.Publish("run-1", "trade", map[string]interface{}{"pnl": 5.0})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg relay.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "trade", msg.Event)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 5.0, data["pnl"])
}

func TestPaperSocketLeave(t *testing.T) {
	registry := relay.NewRegistry()
	conn := dialPaperSocket(t, registry)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join_paper_run", "run_id": "run-1"}))
	waitForSubscribers(t, registry, "run-1", 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "leave_paper_run", "run_id": "run-1"}))
	waitForSubscribers(t, registry, "run-1", 0)
}

func TestPaperSocketDisconnectCleansUp(t *testing.T) {
	registry := relay.NewRegistry()
	conn := dialPaperSocket(t, registry)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join_paper_run", "run_id": "run-1"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join_paper_run", "run_id": "run-2"}))
	waitForSubscribers(t, registry, "run-2", 1)

	conn.Close()

	waitForSubscribers(t, registry, "run-1", 0)
	waitForSubscribers(t, registry, "run-2", 0)
}

func TestPaperSocketIgnoresUnknownFrames(t *testing.T) {
	registry := relay.NewRegistry()
	conn := dialPaperSocket(t, registry)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "run_id": "run-1"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join_paper_run"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join_paper_run", "run_id": "run-1"}))

	waitForSubscribers(t, registry, "run-1", 1)
}
