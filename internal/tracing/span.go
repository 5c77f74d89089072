package tracing

import (
	"sync"
	"time"
)

// Kind classifies the role a span plays in a hop.
type Kind string

const (
	KindServer   Kind = "SERVER"
	KindClient   Kind = "CLIENT"
	KindProducer Kind = "PRODUCER"
	KindConsumer Kind = "CONSUMER"
	KindInternal Kind = "INTERNAL"
)

// Status is the terminal state of a span.
type Status string

const (
	StatusUnset Status = "UNSET"
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Span is one unit of work at one hop. It is mutable between Start and End
// and immutable afterwards; each hop exclusively owns and ends its own spans.
type Span struct {
	Context   TraceContext
	Name      string
	Kind      Kind
	Service   string
	StartTime time.Time

	mu         sync.Mutex
	attributes map[string]string
	endTime    time.Time
	status     Status
	errMessage string
	ended      bool

	recorder *Recorder
}

// Tag attaches a string attribute. Tagging an ended span is a silent no-op;
// instrumentation must never fail the request it observes.
func (s *Span) Tag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attributes[key] = value
}

// RecordError marks the span as failed without ending it.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.status = StatusError
	s.errMessage = err.Error()
}

// End closes the span and hands it to the recorder for export. Ending twice
// is a no-op; multiple cleanup paths may both reach it.
func (s *Span) End() {
	if s.recorder != nil {
		s.recorder.End(s)
	}
}

// Ended reports whether the span has been closed.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// EndTime returns the close timestamp, zero while the span is open.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Status returns the span status and the error description when failed.
func (s *Span) Status() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.errMessage
}

// Attributes returns a copy of the span's attributes.
func (s *Span) Attributes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Attribute returns a single attribute value.
func (s *Span) Attribute(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attributes[key]
	return v, ok
}

// close transitions the span to its terminal state exactly once.
func (s *Span) close(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	s.endTime = at
	if s.status == StatusUnset {
		s.status = StatusOK
	}
	return true
}
