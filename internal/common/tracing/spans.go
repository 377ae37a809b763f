package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	rpcTracerName    = "claude-monitor-rpc"
	claudeTracerName = "claude-monitor-process"
)

// TraceRPC creates a server span around one dispatched request.
func TraceRPC(ctx context.Context, transport, method string) (context.Context, trace.Span) {
	ctx, span := Tracer(rpcTracerName).Start(ctx, "rpc."+method,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	span.SetAttributes(
		attribute.String("rpc.system", transport),
		attribute.String("rpc.method", method),
	)
	return ctx, span
}

// TraceSpawn creates a span for launching a claude process.
func TraceSpawn(ctx context.Context, workspaceID, threadID string, resume bool) (context.Context, trace.Span) {
	ctx, span := Tracer(claudeTracerName).Start(ctx, "claude.spawn",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("workspace_id", workspaceID),
		attribute.String("thread_id", threadID),
		attribute.Bool("resume", resume),
	)
	return ctx, span
}

// RecordResult marks the span as failed when err is non-nil.
func RecordResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
