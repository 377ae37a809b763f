package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:4318", "localhost:4318"},
		{"https://collector:4318", "collector:4318"},
		{"collector:4318", "collector:4318"},
	}
	for _, tt := range tests {
		if got := endpointHost(tt.in); got != tt.want {
			t.Errorf("endpointHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSpansWithoutEndpointAreNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	_, span := TraceRPC(context.Background(), "tcp", "ping")
	RecordResult(span, errors.New("boom"))
	span.End()

	_, span = TraceSpawn(context.Background(), "ws", "thread", true)
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
