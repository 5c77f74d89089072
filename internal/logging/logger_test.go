package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/telchain/backend/internal/tracing"
)

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "debug", OutputPaths: []string{"stdout"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger == nil {
		t.Fatal("New returned nil logger")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud", OutputPaths: []string{"stdout"}}); err == nil {
		t.Error("Invalid level should be rejected")
	}
}

func TestWithTraceAddsIdentity(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := &Logger{Logger: zap.New(core)}

	rec := tracing.NewRecorder(tracing.Options{Service: "test", SampleRatio: 1}, tracing.ExporterFunc(
		func(context.Context, []*tracing.Span) error { return nil },
	), nil)
	defer rec.Shutdown(context.Background())

	ctx, span := rec.Start(context.Background(), "op", tracing.KindInternal)
	defer span.End()

	logger.WithTrace(ctx).Info("with span")
	logger.WithTrace(context.Background()).Info("without span")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["trace_id"] != span.Context.TraceID || fields["span_id"] != span.Context.SpanID {
		t.Errorf("Trace identity missing from log fields: %v", fields)
	}
	if len(entries[1].Context) != 0 {
		t.Error("Without an active span no identity fields should be added")
	}
}
