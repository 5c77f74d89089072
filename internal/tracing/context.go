package tracing

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// TraceContext is the immutable identifier bundle for one span: which trace
// it belongs to, which span it is, and which span caused it.
type TraceContext struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Sampled      bool
}

// Envelope is the wire representation of a TraceContext. The SpanID it
// carries is the sender's span id, which becomes the receiver's parent.
type Envelope struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// Valid reports whether the envelope carries well-formed identifiers.
func (e Envelope) Valid() bool {
	return ValidTraceID(e.TraceID) && ValidSpanID(e.SpanID)
}

// NewRoot generates a fresh trace: a random 128-bit trace id and a random
// 64-bit span id with no parent. Used at the first hop of a request.
func NewRoot(sampled bool) TraceContext {
	u := uuid.New()
	return TraceContext{
		TraceID: hex.EncodeToString(u[:]),
		SpanID:  newSpanID(),
		Sampled: sampled,
	}
}

// ContinueFrom derives the receiving hop's context from an envelope. A valid
// envelope keeps the trace id, generates a fresh span id, and records the
// sender's span id as parent. A missing or malformed envelope degrades to a
// fresh sampled root so processing is never interrupted by a tracing failure.
func ContinueFrom(env Envelope) TraceContext {
	if !ValidTraceID(env.TraceID) || !ValidSpanID(env.SpanID) {
		return NewRoot(true)
	}
	return TraceContext{
		TraceID:      env.TraceID,
		SpanID:       newSpanID(),
		ParentSpanID: env.SpanID,
		Sampled:      env.Sampled,
	}
}

// Child derives the context for a nested span at the same hop: same trace,
// fresh span id, parent set to this context's span id.
func (tc TraceContext) Child() TraceContext {
	return TraceContext{
		TraceID:      tc.TraceID,
		SpanID:       newSpanID(),
		ParentSpanID: tc.SpanID,
		Sampled:      tc.Sampled,
	}
}

// Envelope returns the wire form of this context for the next hop.
func (tc TraceContext) Envelope() Envelope {
	return Envelope{TraceID: tc.TraceID, SpanID: tc.SpanID, Sampled: tc.Sampled}
}

// Valid reports whether the context carries well-formed identifiers.
func (tc TraceContext) Valid() bool {
	return ValidTraceID(tc.TraceID) && ValidSpanID(tc.SpanID)
}

// ValidTraceID reports whether s is 32 lowercase hex characters and nonzero.
func ValidTraceID(s string) bool {
	return validHexID(s, 32)
}

// ValidSpanID reports whether s is 16 lowercase hex characters and nonzero.
func ValidSpanID(s string) bool {
	return validHexID(s, 16)
}

func validHexID(s string, length int) bool {
	if len(s) != length {
		return false
	}
	nonzero := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			nonzero = nonzero || r != '0'
		case r >= 'a' && r <= 'f':
			nonzero = true
		default:
			return false
		}
	}
	return nonzero
}

func newSpanID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
