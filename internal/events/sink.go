package events

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events/bus"
)

// Sink receives normalized events. Implementations must be safe for
// concurrent use and must not block for long.
type Sink interface {
	EmitAppServerEvent(event AppServerEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event AppServerEvent)

// EmitAppServerEvent calls f(event).
func (f SinkFunc) EmitAppServerEvent(event AppServerEvent) {
	f(event)
}

// BusSink publishes events to an EventBus under Subject(workspaceID).
type BusSink struct {
	bus    bus.EventBus
	source string
	logger *logger.Logger
}

// NewBusSink creates a sink backed by eventBus.
func NewBusSink(eventBus bus.EventBus, log *logger.Logger) *BusSink {
	return &BusSink{
		bus:    eventBus,
		source: "claude-session",
		logger: log.WithFields(zap.String("component", "event-sink")),
	}
}

// EmitAppServerEvent implements Sink.
func (s *BusSink) EmitAppServerEvent(event AppServerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to encode event",
			zap.String("method", event.Message.Method),
			zap.Error(err))
		return
	}
	ev := bus.NewEvent(event.Message.Method, s.source, data)
	if err := s.bus.Publish(context.Background(), Subject(event.WorkspaceID), ev); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("workspace_id", event.WorkspaceID),
			zap.String("method", event.Message.Method),
			zap.Error(err))
	}
}

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []AppServerEvent
	notify chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// EmitAppServerEvent implements Sink.
func (r *Recorder) EmitAppServerEvent(event AppServerEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []AppServerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AppServerEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Methods returns the method of every recorded event, in order.
func (r *Recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Message.Method)
	}
	return out
}

// Changed is signalled after each recorded event.
func (r *Recorder) Changed() <-chan struct{} {
	return r.notify
}
