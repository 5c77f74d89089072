package export

import (
	"context"
	"sync"

	"github.com/telchain/backend/internal/tracing"
	"go.uber.org/zap"
)

// Memory collects exported spans in memory. Test use only.
type Memory struct {
	mu    sync.Mutex
	spans []*tracing.Span
}

// NewMemory creates an empty in-memory exporter.
func NewMemory() *Memory {
	return &Memory{}
}

// Export appends the batch.
func (m *Memory) Export(_ context.Context, spans []*tracing.Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, spans...)
	return nil
}

// Spans returns a copy of everything exported so far.
func (m *Memory) Spans() []*tracing.Span {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*tracing.Span, len(m.spans))
	copy(out, m.spans)
	return out
}

// Reset discards collected spans.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = nil
}

// Log writes completed spans to the structured log. Used when no collector
// endpoint is configured, so traces remain visible during local runs.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log-backed exporter.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Export logs one line per span.
func (l *Log) Export(_ context.Context, spans []*tracing.Span) error {
	for _, span := range spans {
		status, errMsg := span.Status()
		fields := []zap.Field{
			zap.String("trace_id", span.Context.TraceID),
			zap.String("span_id", span.Context.SpanID),
			zap.String("operation", span.Name),
			zap.String("kind", string(span.Kind)),
			zap.String("service", span.Service),
			zap.Duration("duration", span.EndTime().Sub(span.StartTime)),
		}
		if span.Context.ParentSpanID != "" {
			fields = append(fields, zap.String("parent_id", span.Context.ParentSpanID))
		}
		if status == tracing.StatusError {
			fields = append(fields, zap.String("error", errMsg))
			l.logger.Error("span completed with error", fields...)
		} else {
			l.logger.Info("span completed", fields...)
		}
	}
	return nil
}
