package propagation

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/telchain/backend/internal/tracing"
)

// Message carries trace context in broker message properties, never in the
// body. One published message delivered to N bound queues yields N sibling
// contexts: same trace id, same parent (the producer's span id), distinct
// span ids, because each consumer extracts independently from its own copy.
type Message struct{}

// Inject writes the envelope into message headers before publish.
func (Message) Inject(tc tracing.TraceContext, headers amqp.Table) {
	env := tc.Envelope()
	headers[HeaderTraceID] = env.TraceID
	headers[HeaderSpanID] = env.SpanID
	headers[HeaderSampled] = env.Sampled
	headers[HeaderTraceParent] = FormatTraceParent(env)
}

// Extract derives the consumer's context from message headers. The boolean
// is false for corrupt or absent metadata: the recorder then starts a fresh
// root under its own sampling decision, and the message is never dropped
// because of a tracing failure.
func (Message) Extract(headers amqp.Table) (tracing.TraceContext, bool) {
	if headers == nil {
		return tracing.TraceContext{}, false
	}
	if raw, ok := headers[HeaderTraceParent].(string); ok {
		if env, parsed := ParseTraceParent(raw); parsed {
			return tracing.ContinueFrom(env), true
		}
	}
	env := tracing.Envelope{
		TraceID: tableString(headers, HeaderTraceID),
		SpanID:  tableString(headers, HeaderSpanID),
		Sampled: tableBool(headers, HeaderSampled, true),
	}
	if !env.Valid() {
		return tracing.TraceContext{}, false
	}
	return tracing.ContinueFrom(env), true
}

func tableString(t amqp.Table, key string) string {
	if v, ok := t[key].(string); ok {
		return v
	}
	return ""
}

func tableBool(t amqp.Table, key string, fallback bool) bool {
	switch v := t[key].(type) {
	case bool:
		return v
	case string:
		return v != "0" && v != "false"
	default:
		return fallback
	}
}
