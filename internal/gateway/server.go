// Package gateway serves the websocket gateway and a health endpoint over
// HTTP.
package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/tracing"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/daemon"
	gateways "github.com/siddartha-10/ClaudeCodeMonitor/internal/gateway/websocket"
)

// Server is the HTTP server hosting the websocket gateway.
type Server struct {
	gateway *gateways.Gateway
	router  *gin.Engine
	http    *http.Server
	logger  *logger.Logger
}

// NewServer builds the router for listen.
func NewServer(listen string, cfg daemon.PeerConfig, debug bool, log *logger.Logger) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracingMiddleware())

	gw := gateways.NewGateway(cfg, log)
	gw.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "claude-monitor",
			"clients": gw.Hub.ClientCount(),
		})
	})

	return &Server{
		gateway: gw,
		router:  router,
		http:    &http.Server{Addr: listen, Handler: router},
		logger:  log.WithFields(zap.String("component", "gateway")),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.gateway.Hub.Run(ctx)
	s.logger.Info("WebSocket gateway listening", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Shutdown stops accepting requests and waits for handlers. Websocket
// clients are closed by the hub when the Serve context ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// tracingMiddleware opens a server span per HTTP request.
func tracingMiddleware() gin.HandlerFunc {
	tracer := tracing.Tracer("claude-monitor-gateway")
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}
