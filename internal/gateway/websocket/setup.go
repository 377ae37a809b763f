package websocket

import (
	"github.com/gin-gonic/gin"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/daemon"
)

// Gateway represents the WebSocket gateway
type Gateway struct {
	Hub     *Hub
	Handler *Handler
	logger  *logger.Logger
}

// NewGateway creates a new WebSocket gateway sharing the daemon's dispatcher,
// token and event broadcaster.
func NewGateway(cfg daemon.PeerConfig, log *logger.Logger) *Gateway {
	if cfg.Transport == "" {
		cfg.Transport = "websocket"
	}
	hub := NewHub(log)
	return &Gateway{
		Hub:     hub,
		Handler: NewHandler(hub, cfg, log),
		logger:  log,
	}
}

// SetupRoutes adds the WebSocket routes to the Gin engine
func (g *Gateway) SetupRoutes(router gin.IRoutes) {
	router.GET("/ws", g.Handler.HandleConnection)
}
