package relay

import (
	"sync"
)

const defaultSendBuffer = 64

// Message is one outbound frame to a browser client.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one connected browser session. The websocket gateway owns
// the connection; the registry only ever touches the send channel.
type Client struct {
	send      chan Message
	closeOnce sync.Once
}

func NewClient() *Client {
	return &Client{send: make(chan Message, defaultSendBuffer)}
}

// Send returns the channel the write pump drains. It is closed when
// the client is dropped from the registry.
func (c *Client) Send() <-chan Message {
	return c.send
}

// Registry tracks which clients are joined to which run's channel and
// fans events out to them. Membership is process-local and in-memory:
// it is lost on restart (clients rejoin) and is not shared across
// server instances, so running more than one API process fragments
// delivery.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Client]struct{})}
}

func roomName(runID string) string {
	return "paper:" + runID
}

// Join adds the client to the run's channel.
func (r *Registry) Join(c *Client, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := roomName(runID)
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*Client]struct{})
	}
	r.rooms[room][c] = struct{}{}
}

// Leave removes the client from the run's channel. Leaving a room the
// client never joined is a no-op.
func (r *Registry) Leave(c *Client, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(c, roomName(runID))
}

// Drop removes the client from every channel and closes its send
// channel. Called by the gateway on disconnect; safe to call more than
// once.
func (r *Registry) Drop(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.rooms {
		r.removeLocked(c, room)
	}
	c.closeOnce.Do(func() { close(c.send) })
}

func (r *Registry) removeLocked(c *Client, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Publish delivers the event to every client currently joined to the
// run's channel. Zero subscribers is a no-op, not an error: a live
// update nobody was listening for is simply lost. A client whose send
// buffer is full has the message dropped rather than blocking the
// event pipeline.
func (r *Registry) Publish(runID, event string, data interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.rooms[roomName(runID)] {
		select {
		case c.send <- Message{Event: event, Data: data}:
		default:
		}
	}
}

// Subscribers returns the number of clients joined to the run's
// channel.
func (r *Registry) Subscribers(runID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomName(runID)])
}
