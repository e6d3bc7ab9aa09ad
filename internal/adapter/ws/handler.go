// Package ws implements the WebSocket adapter for streaming agent events to UIs.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub manages all active WebSocket connections and broadcasts messages.
type Hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*conn]struct{}),
	}
}

// HandleWS upgrades the request to a WebSocket connection and registers it.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr)
	go h.readLoop(ctx, c)
}

// readLoop consumes client frames until the peer goes away. Inbound frames
// carry no meaning yet; reading keeps ping/pong and close handshakes alive.
func (h *Hub) readLoop(ctx context.Context, c *conn) {
	defer h.drop(c, websocket.StatusNormalClosure)

	for {
		if _, _, err := c.ws.Read(ctx); err != nil {
			if status := websocket.CloseStatus(err); status != -1 && status != websocket.StatusNormalClosure {
				slog.Debug("websocket closed by peer", "status", status)
			}
			return
		}
	}
}

// Broadcast sends a message to all connected clients. Connections whose write
// fails are dropped; the next broadcast no longer sees them.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			go h.drop(c, websocket.StatusGoingAway)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// drop unregisters the connection and closes the socket with the given
// status. Dropping an unknown connection is a no-op.
func (h *Hub) drop(c *conn, status websocket.StatusCode) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		c.cancel()
		delete(h.conns, c)
	}
	h.mu.Unlock()

	if ok {
		_ = c.ws.Close(status, "")
		slog.Info("websocket disconnected")
	}
}
