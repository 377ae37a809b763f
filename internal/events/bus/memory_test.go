package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "error",
		Format:     "json",
		OutputPath: "stderr",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus(newTestLogger(t))
	defer bus.Close()

	received := make(chan *Event, 1)
	sub, err := bus.Subscribe("claude.events.ws-1", func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	event := NewEvent("turn/started", "test", json.RawMessage(`{"k":"v"}`))
	if err := bus.Publish(context.Background(), "claude.events.ws-1", event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-received:
		if e.ID != event.ID {
			t.Errorf("Expected event ID %s, got %s", event.ID, e.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

func TestMemoryEventBus_PreservesOrderPerSubscription(t *testing.T) {
	bus := NewMemoryEventBus(newTestLogger(t))
	defer bus.Close()

	const total = 500
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	_, err := bus.Subscribe("claude.events.>", func(ctx context.Context, event *Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event.Type)
		if len(got) == total {
			close(done)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < total; i++ {
		ev := NewEvent(fmt.Sprintf("e-%d", i), "test", nil)
		if err := bus.Publish(context.Background(), "claude.events.ws", ev); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, typ := range got {
		if want := fmt.Sprintf("e-%d", i); typ != want {
			t.Fatalf("event %d = %s, want %s", i, typ, want)
		}
	}
}

func TestMemoryEventBus_Wildcards(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"claude.events.>", "claude.events.ws-1", true},
		{"claude.events.>", "claude.events", false},
		{"claude.*.ws", "claude.events.ws", true},
		{"claude.*.ws", "claude.events.other", false},
		{"claude.events.ws", "claude.events.ws", true},
		{"claude.events.ws", "claude.events.ws2", false},
	}
	for _, tt := range tests {
		if got := matches(tt.subject, tt.pattern, compilePattern(tt.pattern)); got != tt.want {
			t.Errorf("matches(%q, %q) = %v, want %v", tt.subject, tt.pattern, got, tt.want)
		}
	}
}

func TestMemoryEventBus_UnsubscribeAndClose(t *testing.T) {
	bus := NewMemoryEventBus(newTestLogger(t))

	received := make(chan struct{}, 1)
	sub, err := bus.Subscribe("a", func(ctx context.Context, event *Event) error {
		received <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if sub.IsValid() {
		t.Error("subscription should be invalid after Unsubscribe")
	}

	_ = bus.Publish(context.Background(), "a", NewEvent("x", "test", nil))
	select {
	case <-received:
		t.Fatal("unsubscribed handler received an event")
	case <-time.After(50 * time.Millisecond):
	}

	bus.Close()
	if bus.IsConnected() {
		t.Error("bus should report disconnected after Close")
	}
	if err := bus.Publish(context.Background(), "a", NewEvent("x", "test", nil)); err == nil {
		t.Error("expected publish on closed bus to fail")
	}
}
