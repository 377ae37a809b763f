// Package websocket exposes the daemon protocol over websockets, one JSON
// request or notification per text message.
package websocket

import (
	"bytes"
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/daemon"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8 * 1024 * 1024

	sendBuffer = 256
)

// Client represents a single WebSocket connection
type Client struct {
	ID     string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	done   chan struct{}
	peer   *daemon.Peer
	logger *logger.Logger
}

// NewClient creates a new WebSocket client speaking the daemon protocol
func NewClient(id string, conn *websocket.Conn, hub *Hub, cfg daemon.PeerConfig, log *logger.Logger) *Client {
	c := &Client{
		ID:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: log.WithFields(zap.String("client_id", id)),
	}
	c.peer = daemon.NewPeer(cfg, c.enqueue, c.logger)
	return c
}

// enqueue hands a frame to the write pump. It blocks while the buffer is
// full and gives up once the client is closed.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	}
}

// ReadPump feeds incoming messages to the protocol until the connection
// fails or ctx is cancelled.
func (c *Client) ReadPump(ctx context.Context, token string) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.hub.Unregister(c)
		_ = c.conn.Close()
		c.peer.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if !c.peer.Preauthorize(ctx, token) {
		c.peer.Open(ctx)
	}

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		for _, line := range bytes.Split(message, []byte{'\n'}) {
			c.peer.HandleLine(ctx, line)
		}
	}
}

// WritePump pumps queued frames to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close stops the write pump. The hub calls it exactly once.
func (c *Client) close() {
	close(c.done)
}
