// Package daemon serves the monitor over line-delimited JSON-RPC on TCP.
// Each connection authenticates with the shared token, then issues requests
// and receives every app-server-event notification.
package daemon

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/tracing"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events/broadcast"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

// PeerConfig is the protocol configuration shared by all connections of a
// transport.
type PeerConfig struct {
	// Token is the shared secret; empty disables auth.
	Token      string
	Dispatcher *rpc.Dispatcher
	Events     *broadcast.Broadcaster
	// Transport names the transport in traces.
	Transport string
}

// SendFunc queues an encoded frame for the client. It returns false once the
// connection is gone.
type SendFunc func(frame []byte) bool

// Peer holds the protocol state of one client connection. It is independent
// of the byte transport: the TCP server feeds it lines, the websocket gateway
// feeds it text messages.
type Peer struct {
	cfg    PeerConfig
	send   SendFunc
	logger *logger.Logger

	mu            sync.Mutex
	authenticated bool
	sub           *broadcast.Subscription

	wg sync.WaitGroup
}

// NewPeer creates the protocol state for a new connection.
func NewPeer(cfg PeerConfig, send SendFunc, log *logger.Logger) *Peer {
	return &Peer{cfg: cfg, send: send, logger: log}
}

// Open starts event forwarding right away when no token is configured.
func (p *Peer) Open(ctx context.Context) {
	if p.cfg.Token == "" {
		p.authenticate(ctx)
	}
}

// HandleLine processes one request line. Blank and unparsable lines are
// ignored. Before authentication it runs inline; afterwards requests are
// dispatched concurrently and answered as they finish.
func (p *Peer) HandleLine(ctx context.Context, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	req, err := rpc.ParseRequest(line)
	if err != nil {
		p.logger.Debug("skipping unparsable line", zap.Error(err))
		return
	}

	if !p.isAuthenticated() {
		p.handleAuth(ctx, req)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.handle(ctx, req)
	}()
}

func (p *Peer) handleAuth(ctx context.Context, req *rpc.Request) {
	if req.Method != rpc.MethodAuth {
		p.replyError(req.ID, apperrors.Unauthorized())
		return
	}
	provided := req.Params.AuthToken()
	if subtle.ConstantTimeCompare([]byte(provided), []byte(p.cfg.Token)) != 1 {
		p.logger.Warn("rejected auth attempt")
		p.replyError(req.ID, apperrors.InvalidToken())
		return
	}
	p.reply(req.ID, map[string]bool{"ok": true})
	p.authenticate(ctx)
}

// Preauthorize authenticates with a token presented outside the protocol,
// such as a websocket query parameter. It reports whether token matched.
func (p *Peer) Preauthorize(ctx context.Context, token string) bool {
	if p.cfg.Token == "" || token == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.cfg.Token)) != 1 {
		return false
	}
	p.authenticate(ctx)
	return true
}

// authenticate marks the peer authenticated and starts forwarding events.
func (p *Peer) authenticate(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authenticated {
		return
	}
	p.authenticated = true
	if p.cfg.Events == nil {
		return
	}
	p.sub = p.cfg.Events.Subscribe()
	sub := p.sub
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.forward(ctx, sub)
	}()
}

func (p *Peer) isAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authenticated
}

func (p *Peer) forward(ctx context.Context, sub *broadcast.Subscription) {
	for {
		frame, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if !p.send(frame) {
			return
		}
	}
}

func (p *Peer) handle(ctx context.Context, req *rpc.Request) {
	ctx, span := tracing.TraceRPC(ctx, p.cfg.Transport, req.Method)
	defer span.End()

	result, err := p.cfg.Dispatcher.Dispatch(ctx, req.Method, req.Params)
	tracing.RecordResult(span, err)
	if err != nil {
		p.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.Error(err))
		p.replyError(req.ID, err)
		return
	}
	p.reply(req.ID, result)
}

func (p *Peer) reply(id *uint64, result any) {
	if id == nil {
		return
	}
	frame, err := json.Marshal(rpc.NewResult(*id, result))
	if err != nil {
		p.logger.Error("failed to encode result", zap.Error(err))
		p.replyError(id, apperrors.Internal("failed to encode result", err))
		return
	}
	p.send(frame)
}

func (p *Peer) replyError(id *uint64, err error) {
	if id == nil {
		return
	}
	frame, mErr := json.Marshal(rpc.NewError(*id, apperrors.UserMessage(err)))
	if mErr != nil {
		p.logger.Error("failed to encode error", zap.Error(mErr))
		return
	}
	p.send(frame)
}

// Close stops event forwarding and waits for in-flight requests. The context
// passed to HandleLine must be cancelled first.
func (p *Peer) Close() {
	p.mu.Lock()
	sub := p.sub
	p.mu.Unlock()
	if sub != nil {
		sub.Close()
		if dropped := sub.Dropped(); dropped > 0 {
			p.logger.Warn("slow client dropped events", zap.Uint64("dropped", dropped))
		}
	}
	p.wg.Wait()
}
