package chain

import "time"

// Response is the JSON body every hop returns. Downstream results nest under
// Next, so the caller receives the whole chain's response tree even when a
// link broke: the failing hop reports itself in Error and the tree stops
// there.
type Response struct {
	Service   string `json:"service"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
	Next      any    `json:"next,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Message is the body published to the broker for the messaging hops.
type Message struct {
	Service   string `json:"service"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage builds a broker message for this hop.
func NewMessage(service, data string) Message {
	return Message{
		Service:   service,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
