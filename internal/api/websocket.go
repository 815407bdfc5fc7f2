package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local single-user daemon, any origin is fine
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	logger  *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  slog.Default().With("component", "websocket"),
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, send := range h.clients {
		select {
		case send <- payload:
		default:
			// Client buffer full, skip
		}
	}
}

// ServeWS upgrades the connection and streams broadcast messages to it
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	h.logger.Debug("Client connected", "remote", r.RemoteAddr)

	// Discard inbound messages, detect disconnects
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for payload := range send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
}

// Close disconnects all clients
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		close(send)
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
