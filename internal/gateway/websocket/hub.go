package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
)

// Hub manages all WebSocket client connections
type Hub struct {
	clients map[*Client]bool

	mu     sync.Mutex
	closed bool
	logger *logger.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  log.WithFields(zap.String("component", "ws_hub")),
	}
}

// Run blocks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")

	<-ctx.Done()
	h.closeAllClients()
}

// Register adds a client. It reports false once the hub has shut down.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		client.close()
		return false
	}
	h.clients[client] = true
	h.logger.Debug("Client registered", zap.String("client_id", client.ID))
	return true
}

// Unregister removes a client and stops its write pump.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
		h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
}
