package tracing

import "context"

type contextKey int

const (
	spanKey contextKey = iota
	remoteKey
)

// ContextWithSpan returns a context carrying span as the current span for
// this request or message. Scoped to one in-flight unit of execution, never
// shared process-wide.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanKey, span)
}

// FromContext returns the current span, or nil when none is active.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey).(*Span)
	return span
}

// ContextWithRemote stashes a trace context extracted from an inbound
// envelope so the next Start call continues the remote trace.
func ContextWithRemote(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, remoteKey, tc)
}

// RemoteFromContext returns the extracted remote context, if any.
func RemoteFromContext(ctx context.Context) (TraceContext, bool) {
	tc, ok := ctx.Value(remoteKey).(TraceContext)
	return tc, ok
}
