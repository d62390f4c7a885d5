package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskagent/agent/internal/domain"
)

// eventHub fans out statemachine and watch-list notifications to every
// connected /v1/events websocket client, mirroring the teacher's
// BusPublisher seam but sourced from in-process subscribers instead of
// an external bus, since this agent runs as a single local process.
type eventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsEvent
}

type wsEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func newEventHub() *eventHub {
	return &eventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// serveWS upgrades the request and registers the connection for
// broadcasts until the client disconnects.
func (h *eventHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsClient{conn: conn, send: make(chan wsEvent, 32)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop drains and discards client frames purely to detect
// disconnects (this endpoint is publish-only); it removes the client
// once the connection closes.
func (h *eventHub) readLoop(c *wsClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *eventHub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.WriteJSON(ev)
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *eventHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *eventHub) broadcast(ev wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// slow client, drop rather than block the publisher
		}
	}
}

func (h *eventHub) broadcastStatus(status domain.ExecutionStatus) {
	h.broadcast(wsEvent{Type: "command_status", Payload: status})
}

func (h *eventHub) broadcastWatches(tasks []domain.WatchTask) {
	h.broadcast(wsEvent{Type: "watches", Payload: tasks})
}
