// Package chain implements the per-hop request flow: tag the current span,
// simulate local work, then forward to the configured next hop via HTTP or
// the message broker, or terminate the chain. Forwarding failures are
// recorded on the span and embedded in the response instead of failing the
// hop.
package chain
