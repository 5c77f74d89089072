package propagation

import (
	"net/http"

	"github.com/telchain/backend/internal/tracing"
)

// HTTP carries trace context across service-to-service HTTP hops.
//
// Inject writes the caller's envelope into outgoing request headers; Extract
// reads it on the receiving side. Missing or garbled headers report absence
// so the recorder starts a fresh root with its own sampling decision, and the
// request is processed regardless.
type HTTP struct{}

// Inject writes the envelope into h. Both the W3C traceparent and the
// discrete traceId/spanId pair are written.
func (HTTP) Inject(tc tracing.TraceContext, h http.Header) {
	env := tc.Envelope()
	h.Set(HeaderTraceParent, FormatTraceParent(env))
	h.Set(HeaderTraceID, env.TraceID)
	h.Set(HeaderSpanID, env.SpanID)
}

// Extract derives the receiving hop's context from inbound headers,
// preferring traceparent and falling back to the discrete pair. The boolean
// is false when no parsable envelope is present; the root sampling decision
// then stays with the recorder instead of being forced here.
func (HTTP) Extract(h http.Header) (tracing.TraceContext, bool) {
	if env, ok := ParseTraceParent(h.Get(HeaderTraceParent)); ok {
		return tracing.ContinueFrom(env), true
	}
	env := tracing.Envelope{
		TraceID: h.Get(HeaderTraceID),
		SpanID:  h.Get(HeaderSpanID),
		Sampled: h.Get(HeaderSampled) != "0" && h.Get(HeaderSampled) != "false",
	}
	if !env.Valid() {
		return tracing.TraceContext{}, false
	}
	return tracing.ContinueFrom(env), true
}
