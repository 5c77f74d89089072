package propagation

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/telchain/backend/internal/tracing"
)

func TestMessageInjectExtractRoundTrip(t *testing.T) {
	var prop Message
	producer := tracing.NewRoot(true)

	headers := amqp.Table{}
	prop.Inject(producer, headers)

	if headers[HeaderTraceID] != producer.TraceID {
		t.Error("Inject should write the trace id property")
	}
	if headers[HeaderSampled] != true {
		t.Error("Inject should write the sampled flag as a bool")
	}

	consumer, ok := prop.Extract(headers)
	if !ok {
		t.Fatal("Extract should find the injected envelope")
	}
	if consumer.TraceID != producer.TraceID {
		t.Errorf("Trace id should survive the broker: got %s, want %s",
			consumer.TraceID, producer.TraceID)
	}
	if consumer.ParentSpanID != producer.SpanID {
		t.Error("Producer's span id should become the consumer's parent")
	}
	if consumer.SpanID == producer.SpanID {
		t.Error("Consumer should mint a fresh span id")
	}
}

// One message delivered to several queues: every consumer extracts from its
// own copy and must land in the same trace, under the same parent, with a
// distinct span id.
func TestMessageFanOutSiblings(t *testing.T) {
	var prop Message
	producer := tracing.NewRoot(true)

	headers := amqp.Table{}
	prop.Inject(producer, headers)

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		tc, ok := prop.Extract(headers)
		if !ok {
			t.Fatalf("Consumer %d should extract the envelope", i)
		}
		if tc.TraceID != producer.TraceID {
			t.Errorf("Consumer %d left the trace: %s", i, tc.TraceID)
		}
		if tc.ParentSpanID != producer.SpanID {
			t.Errorf("Consumer %d has wrong parent: %s", i, tc.ParentSpanID)
		}
		if seen[tc.SpanID] {
			t.Errorf("Consumer %d reused span id %s", i, tc.SpanID)
		}
		seen[tc.SpanID] = true
	}
}

func TestMessageExtractNilHeaders(t *testing.T) {
	var prop Message
	tc, ok := prop.Extract(nil)

	if ok {
		t.Error("Nil headers should report absence")
	}
	if tc != (tracing.TraceContext{}) {
		t.Errorf("Absent envelope should yield a zero context, got %+v", tc)
	}
}

func TestMessageExtractCorruptHeaders(t *testing.T) {
	var prop Message
	producer := tracing.NewRoot(true)

	tests := []struct {
		name    string
		headers amqp.Table
	}{
		{"empty table", amqp.Table{}},
		{"wrong types", amqp.Table{HeaderTraceID: int32(7), HeaderSpanID: []byte("x")}},
		{"truncated ids", amqp.Table{HeaderTraceID: producer.TraceID[:8], HeaderSpanID: producer.SpanID[:4]}},
		{"corrupt traceparent only", amqp.Table{HeaderTraceParent: "00-bad"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, ok := prop.Extract(tt.headers)
			if ok {
				t.Error("Corrupt metadata should report absence, not a continuation")
			}
			if tc != (tracing.TraceContext{}) {
				t.Errorf("Corrupt envelope should yield a zero context, got %+v", tc)
			}
		})
	}
}

func TestMessageExtractTraceParentPreferred(t *testing.T) {
	var prop Message
	producer := tracing.NewRoot(false)

	headers := amqp.Table{}
	prop.Inject(producer, headers)
	// Discrete pair disagrees; traceparent must win.
	headers[HeaderTraceID] = "11111111111111111111111111111111"

	tc, ok := prop.Extract(headers)
	if !ok {
		t.Fatal("Extract should find the injected envelope")
	}
	if tc.TraceID != producer.TraceID {
		t.Error("traceparent should take precedence over the discrete pair")
	}
	if tc.Sampled {
		t.Error("Unsampled flag in traceparent should carry through")
	}
}
