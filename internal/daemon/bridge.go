package daemon

import (
	"context"
	"encoding/json"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events/broadcast"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events/bus"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

// ForwardEvents republishes every workspace event on eventBus to b as an
// app-server-event notification frame. The bus event data is the encoded
// AppServerEvent and is embedded as-is.
func ForwardEvents(eventBus bus.EventBus, b *broadcast.Broadcaster) (bus.Subscription, error) {
	return eventBus.Subscribe(events.AllSubjects, func(_ context.Context, event *bus.Event) error {
		frame, err := rpc.EncodeNotification(rpc.MethodAppServerEvent, json.RawMessage(event.Data))
		if err != nil {
			return err
		}
		b.Publish(frame)
		return nil
	})
}
