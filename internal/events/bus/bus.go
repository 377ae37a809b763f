// Package bus carries app-server events from the stream translators to the
// daemon's client fan-out. The in-memory bus serves a single daemon; NATS
// lets other processes watch the same workspaces.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published on the bus. Type is the app-server method
// (turn/started, item/completed, ...) and Data the encoded AppServerEvent.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent stamps data with a fresh id and the current UTC time.
func NewEvent(method, source string, data json.RawMessage) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      method,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventHandler receives events for a subscription. A returned error is
// logged; it does not stop delivery.
type EventHandler func(ctx context.Context, event *Event) error

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus moves events between publishers and subscribers. Subjects are
// dot-separated; "*" matches one token and a trailing ">" the rest.
// Each subscription sees a subject's events in publish order, so a client
// never gets item/completed before the turn/started it belongs to.
type EventBus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	Subscribe(subject string, handler EventHandler) (Subscription, error)
	Close()
	IsConnected() bool
}
