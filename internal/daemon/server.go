package daemon

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
)

const (
	// Frames queued for one connection before senders block.
	outboundBuffer = 256

	transportName = "tcp"
)

// errConnDone ends a connection's group when the client goes away.
var errConnDone = errors.New("connection closed")

// Server accepts daemon connections.
type Server struct {
	listen string
	peer   PeerConfig
	logger *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a TCP server for listen using the shared protocol
// configuration.
func NewServer(listen string, cfg PeerConfig, log *logger.Logger) *Server {
	if cfg.Transport == "" {
		cfg.Transport = transportName
	}
	return &Server{
		listen: listen,
		peer:   cfg,
		logger: log.WithFields(zap.String("component", "daemon")),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes every
// connection and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("daemon listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("auth", s.peer.Token != ""))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.wg.Wait()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	log := s.logger.WithFields(zap.String("remote_addr", conn.RemoteAddr().String()))
	log.Debug("client connected")

	g, gctx := errgroup.WithContext(ctx)
	out := make(chan []byte, outboundBuffer)
	send := func(frame []byte) bool {
		select {
		case out <- frame:
			return true
		case <-gctx.Done():
			return false
		}
	}
	peer := NewPeer(s.peer, send, log)

	g.Go(func() error {
		return writeLoop(gctx, conn, out)
	})
	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		peer.Open(gctx)
		return readLoop(gctx, conn, peer)
	})

	err := g.Wait()
	peer.Close()
	if err != nil && !errors.Is(err, errConnDone) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
		log.Debug("client connection failed", zap.Error(err))
	}
	log.Debug("client disconnected")
}

// readLoop feeds newline-delimited requests to peer until EOF.
func readLoop(ctx context.Context, conn net.Conn, peer *Peer) error {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			peer.HandleLine(ctx, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return errConnDone
			}
			return err
		}
	}
}

// writeLoop writes queued frames, one per line, flushing when the queue
// drains.
func writeLoop(ctx context.Context, conn net.Conn, out <-chan []byte) error {
	writer := bufio.NewWriter(conn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-out:
			if _, err := writer.Write(frame); err != nil {
				return err
			}
			if err := writer.WriteByte('\n'); err != nil {
				return err
			}
			if len(out) == 0 {
				if err := writer.Flush(); err != nil {
					return err
				}
			}
		}
	}
}
