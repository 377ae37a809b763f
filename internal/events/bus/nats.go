package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/config"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
)

const (
	defaultNATSClientName = "claude-monitor-daemon"
	natsReconnectWait     = 2 * time.Second
	// natsReconnectBuffer holds events published while reconnecting; a
	// busy turn produces a few hundred small deltas per second.
	natsReconnectBuffer = 8 * 1024 * 1024

	// Headers let NATS consumers route on the method without decoding the
	// body. Nats-Msg-Id also gives JetStream dedupe when a stream captures
	// the subjects.
	headerEventMethod = "Claude-Monitor-Method"
	headerEventSource = "Claude-Monitor-Source"
)

// NATSEventBus publishes workspace events on NATS so other daemons,
// dashboards or recorders can follow them.
type NATSEventBus struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// NewNATSEventBus connects to cfg.URL and keeps reconnecting up to
// cfg.MaxReconnects times when the server goes away.
func NewNATSEventBus(cfg config.NATSConfig, log *logger.Logger) (*NATSEventBus, error) {
	log = log.WithFields(zap.String("component", "event-bus"), zap.String("bus", "nats"))
	name := cfg.ClientID
	if name == "" {
		name = defaultNATSClientName
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.ReconnectBufSize(natsReconnectBuffer),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected; events buffer until reconnect", zap.Error(err))
				return
			}
			log.Info("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if err := nc.LastError(); err != nil {
				log.Error("NATS connection closed; workspace events are no longer delivered", zap.Error(err))
				return
			}
			log.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := []zap.Field{zap.Error(err)}
			if sub != nil {
				fields = append(fields, zap.String("subject", sub.Subject))
			}
			log.Error("NATS async error", fields...)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}

	log.Info("Connected to NATS", zap.String("url", cfg.URL), zap.String("client", name))
	return &NATSEventBus{conn: conn, logger: log}, nil
}

// Publish sends event on subject with its method and source in headers.
func (b *NATSEventBus) Publish(_ context.Context, subject string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	msg.Header.Set(headerEventMethod, event.Type)
	msg.Header.Set(headerEventSource, event.Source)

	if err := b.conn.PublishMsg(msg); err != nil {
		b.logger.Error("Failed to publish event",
			zap.String("subject", subject),
			zap.String("method", event.Type),
			zap.Error(err))
		return fmt.Errorf("publish %s on %s: %w", event.Type, subject, err)
	}
	return nil
}

// Subscribe registers handler for subject. NATS calls a subscription's
// handler from one goroutine, so per-subject order holds.
func (b *NATSEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("Dropping undecodable event",
				zap.String("subject", msg.Subject),
				zap.String("method", msg.Header.Get(headerEventMethod)),
				zap.Error(err))
			return
		}
		if err := handler(context.Background(), &event); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("subject", msg.Subject),
				zap.String("event_id", event.ID),
				zap.String("method", event.Type),
				zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	b.logger.Debug("Subscribed", zap.String("subject", subject))
	return &natsSubscription{sub: sub}, nil
}

// Close drains in-flight events, falling back to a hard close.
func (b *NATSEventBus) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("NATS drain failed", zap.Error(err))
		b.conn.Close()
	}
}

// IsConnected reports whether the connection is up right now.
func (b *NATSEventBus) IsConnected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *natsSubscription) IsValid() bool {
	return s.sub != nil && s.sub.IsValid()
}
