package propagation

import (
	"net/http"
	"testing"

	"github.com/telchain/backend/internal/tracing"
)

func TestHTTPInjectExtractRoundTrip(t *testing.T) {
	var prop HTTP
	sender := tracing.NewRoot(true)

	h := http.Header{}
	prop.Inject(sender, h)

	if h.Get(HeaderTraceParent) == "" {
		t.Error("Inject should write traceparent")
	}
	if h.Get(HeaderTraceID) != sender.TraceID || h.Get(HeaderSpanID) != sender.SpanID {
		t.Error("Inject should write the discrete id pair")
	}

	receiver, ok := prop.Extract(h)
	if !ok {
		t.Fatal("Extract should find the injected envelope")
	}
	if receiver.TraceID != sender.TraceID {
		t.Errorf("Trace id should survive the hop: got %s, want %s", receiver.TraceID, sender.TraceID)
	}
	if receiver.ParentSpanID != sender.SpanID {
		t.Errorf("Receiver's parent should be the sender's span id: got %s, want %s",
			receiver.ParentSpanID, sender.SpanID)
	}
	if receiver.SpanID == sender.SpanID {
		t.Error("Receiver should mint a fresh span id")
	}
}

func TestHTTPExtractMissingHeaders(t *testing.T) {
	var prop HTTP
	tc, ok := prop.Extract(http.Header{})

	if ok {
		t.Error("Extraction from empty headers should report absence")
	}
	if tc != (tracing.TraceContext{}) {
		t.Errorf("Absent envelope should yield a zero context, got %+v", tc)
	}
}

func TestHTTPExtractDiscreteFallback(t *testing.T) {
	var prop HTTP
	sender := tracing.NewRoot(true)

	h := http.Header{}
	h.Set(HeaderTraceID, sender.TraceID)
	h.Set(HeaderSpanID, sender.SpanID)

	tc, ok := prop.Extract(h)
	if !ok {
		t.Fatal("Discrete pair should be enough to continue the trace")
	}
	if tc.TraceID != sender.TraceID || tc.ParentSpanID != sender.SpanID {
		t.Error("Discrete pair should continue the trace when traceparent is absent")
	}
	if !tc.Sampled {
		t.Error("Sampled should default to true without an explicit flag")
	}
}

func TestHTTPExtractCorruptTraceParentFallsBack(t *testing.T) {
	var prop HTTP
	sender := tracing.NewRoot(true)

	h := http.Header{}
	h.Set(HeaderTraceParent, "garbage")
	h.Set(HeaderTraceID, sender.TraceID)
	h.Set(HeaderSpanID, sender.SpanID)

	tc, ok := prop.Extract(h)
	if !ok {
		t.Fatal("Corrupt traceparent should fall back to the discrete pair")
	}
	if tc.TraceID != sender.TraceID {
		t.Error("Fallback should continue the sender's trace")
	}
}

func TestHTTPExtractGarbageEverywhere(t *testing.T) {
	var prop HTTP

	h := http.Header{}
	h.Set(HeaderTraceParent, "00-xx-yy-zz")
	h.Set(HeaderTraceID, "nope")
	h.Set(HeaderSpanID, "also nope")

	tc, ok := prop.Extract(h)
	if ok {
		t.Error("Fully corrupt headers should report absence, not a continuation")
	}
	if tc != (tracing.TraceContext{}) {
		t.Errorf("Corrupt envelope should yield a zero context, got %+v", tc)
	}
}
