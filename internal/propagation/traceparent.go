package propagation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/telchain/backend/internal/tracing"
)

// Header and message-property names shared by both transports. The discrete
// traceId/spanId pair mirrors what the broker path historically wrote next
// to the W3C traceparent, so either reader works.
const (
	HeaderTraceParent = "traceparent"
	HeaderTraceID     = "traceId"
	HeaderSpanID      = "spanId"
	HeaderSampled     = "sampled"
)

// FormatTraceParent renders the W3C form: 00-<trace-id>-<span-id>-<flags>.
func FormatTraceParent(env tracing.Envelope) string {
	flags := "00"
	if env.Sampled {
		flags = "01"
	}
	return fmt.Sprintf("00-%s-%s-%s", env.TraceID, env.SpanID, flags)
}

// ParseTraceParent parses a traceparent value. The boolean result is false
// for anything malformed; callers degrade to a fresh root trace.
func ParseTraceParent(value string) (tracing.Envelope, bool) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 4 {
		return tracing.Envelope{}, false
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]
	if len(version) != 2 || version == "ff" || !isHex(version) {
		return tracing.Envelope{}, false
	}
	if !tracing.ValidTraceID(traceID) || !tracing.ValidSpanID(spanID) {
		return tracing.Envelope{}, false
	}
	if len(flags) != 2 || !isHex(flags) {
		return tracing.Envelope{}, false
	}
	flagBits, err := strconv.ParseUint(flags, 16, 8)
	if err != nil {
		return tracing.Envelope{}, false
	}
	return tracing.Envelope{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flagBits&0x01 == 0x01,
	}, true
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
