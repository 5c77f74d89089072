package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// capture collects exported spans for assertions.
type capture struct {
	mu    sync.Mutex
	spans []*Span
}

func (c *capture) Export(_ context.Context, spans []*Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, spans...)
	return nil
}

func (c *capture) all() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Span, len(c.spans))
	copy(out, c.spans)
	return out
}

func newTestRecorder(t *testing.T, exp Exporter) *Recorder {
	t.Helper()
	r := NewRecorder(Options{
		Service:       "test",
		SampleRatio:   1,
		BatchSize:     4,
		FlushInterval: 10 * time.Millisecond,
	}, exp, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Shutdown(ctx)
	})
	return r
}

func TestStartRoot(t *testing.T) {
	r := newTestRecorder(t, &capture{})

	ctx, span := r.Start(context.Background(), "op", KindServer)
	defer span.End()

	if !span.Context.Valid() {
		t.Fatal("Root span should carry valid identifiers")
	}
	if span.Context.ParentSpanID != "" {
		t.Error("Root span should have no parent")
	}
	if FromContext(ctx) != span {
		t.Error("Start should make the span current in the returned context")
	}
}

func TestStartChild(t *testing.T) {
	r := newTestRecorder(t, &capture{})

	ctx, parent := r.Start(context.Background(), "parent", KindServer)
	_, child := r.Start(ctx, "child", KindInternal)
	defer parent.End()
	defer child.End()

	if child.Context.TraceID != parent.Context.TraceID {
		t.Error("Child should stay in the parent's trace")
	}
	if child.Context.ParentSpanID != parent.Context.SpanID {
		t.Error("Child's parent should be the current span")
	}
}

func TestStartContinuesRemote(t *testing.T) {
	r := newTestRecorder(t, &capture{})

	remote := ContinueFrom(NewRoot(true).Envelope())
	ctx := ContextWithRemote(context.Background(), remote)

	_, span := r.Start(ctx, "inbound", KindServer)
	defer span.End()

	if span.Context != remote {
		t.Errorf("Start should adopt the extracted remote context: got %+v, want %+v",
			span.Context, remote)
	}
}

func TestEndIdempotent(t *testing.T) {
	exp := &capture{}
	r := newTestRecorder(t, exp)

	_, span := r.Start(context.Background(), "op", KindServer)
	span.End()
	first := span.EndTime()

	time.Sleep(5 * time.Millisecond)
	span.End()

	if !span.EndTime().Equal(first) {
		t.Error("Second End should not move the close timestamp")
	}

	waitFor(t, func() bool { return len(exp.all()) == 1 })
	if got := len(exp.all()); got != 1 {
		t.Errorf("Span should export exactly once, got %d", got)
	}
}

func TestTagAfterEnd(t *testing.T) {
	r := newTestRecorder(t, &capture{})

	_, span := r.Start(context.Background(), "op", KindServer)
	span.Tag("before", "1")
	span.End()
	span.Tag("after", "2")

	if _, ok := span.Attribute("before"); !ok {
		t.Error("Tag before End should stick")
	}
	if _, ok := span.Attribute("after"); ok {
		t.Error("Tag after End should be a no-op")
	}
}

func TestRecordErrorSetsStatus(t *testing.T) {
	r := newTestRecorder(t, &capture{})

	_, span := r.Start(context.Background(), "op", KindServer)
	span.RecordError(errors.New("boom"))
	span.End()

	status, msg := span.Status()
	if status != StatusError {
		t.Errorf("Status should be error, got %s", status)
	}
	if msg != "boom" {
		t.Errorf("Error message should be retained, got %q", msg)
	}
}

func TestStatusDefaultsToOK(t *testing.T) {
	r := newTestRecorder(t, &capture{})

	_, span := r.Start(context.Background(), "op", KindServer)
	span.End()

	status, _ := span.Status()
	if status != StatusOK {
		t.Errorf("Clean close should end OK, got %s", status)
	}
}

func TestUnsampledSpansNotExported(t *testing.T) {
	exp := &capture{}
	r := NewRecorder(Options{
		Service:       "test",
		SampleRatio:   1.0,
		FlushInterval: 10 * time.Millisecond,
	}, exp, nil)
	defer r.Shutdown(context.Background())

	remote := TraceContext{
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:  "00f067aa0ba902b7",
		Sampled: false,
	}
	ctx := ContextWithRemote(context.Background(), remote)
	_, span := r.Start(ctx, "op", KindServer)
	span.End()

	_, sampled := r.Start(context.Background(), "op2", KindServer)
	sampled.End()

	waitFor(t, func() bool { return len(exp.all()) == 1 })
	for _, s := range exp.all() {
		if !s.Context.Sampled {
			t.Error("Unsampled span leaked to the exporter")
		}
	}
}

func TestZeroRatioSamplesNoRoots(t *testing.T) {
	exp := &capture{}
	r := NewRecorder(Options{
		Service:     "test",
		SampleRatio: 0,
	}, exp, nil)
	defer r.Shutdown(context.Background())

	for i := 0; i < 50; i++ {
		_, span := r.Start(context.Background(), "op", KindServer)
		if span.Context.Sampled {
			t.Fatal("Ratio 0 should never sample a new root")
		}
		span.End()
	}

	if got := len(exp.all()); got != 0 {
		t.Errorf("No spans should reach the exporter at ratio 0, got %d", got)
	}
}

func TestZeroRatioKeepsInboundDecision(t *testing.T) {
	exp := &capture{}
	r := NewRecorder(Options{
		Service:     "test",
		SampleRatio: 0,
	}, exp, nil)

	remote := ContinueFrom(NewRoot(true).Envelope())
	ctx := ContextWithRemote(context.Background(), remote)
	_, span := r.Start(ctx, "inbound", KindServer)
	if !span.Context.Sampled {
		t.Fatal("Continued trace should keep the upstream sampling decision")
	}
	span.End()

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := len(exp.all()); got != 1 {
		t.Errorf("Sampled continuation should export, got %d spans", got)
	}
}

func TestBufferOverflowDrops(t *testing.T) {
	dropped := 0
	block := make(chan struct{})
	r := NewRecorder(Options{
		Service:     "test",
		SampleRatio: 1,
		BufferSize:  1,
		BatchSize:   100,
		OnDrop:      func() { dropped++ },
	}, ExporterFunc(func(ctx context.Context, spans []*Span) error {
		<-block
		return nil
	}), nil)
	defer func() {
		close(block)
		r.Shutdown(context.Background())
	}()

	// Fill the buffer well past capacity. End must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_, span := r.Start(context.Background(), "op", KindServer)
			span.End()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("End blocked on a full buffer")
	}
	if r.Dropped() == 0 || dropped == 0 {
		t.Error("Overflow should be counted and reported through OnDrop")
	}
}

func TestShutdownFlushes(t *testing.T) {
	exp := &capture{}
	r := NewRecorder(Options{
		Service:       "test",
		SampleRatio:   1,
		BatchSize:     100,
		FlushInterval: time.Hour,
	}, exp, nil)

	for i := 0; i < 5; i++ {
		_, span := r.Start(context.Background(), "op", KindServer)
		span.End()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := len(exp.all()); got != 5 {
		t.Errorf("Shutdown should flush buffered spans, got %d of 5", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("Condition not met before deadline")
	}
}
