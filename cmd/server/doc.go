// Package main is the entry point for a telchain hop.
//
// One binary serves any position in the demo chain; SERVICE_NAME and the
// next-hop settings decide its role:
//
//	Gateway (HTTP) → Service B (HTTP) → Service C (queue) → consumer hop
//	Gateway (fanout) → tel.fanout.exchange → Consumer-A/B/C
//
// The server provides:
//   - Chain and fan-out entry points with trace propagation across hops
//   - RabbitMQ publish and consume with trace envelopes in message headers
//   - Span export to an OTLP collector or the structured log
//   - Prometheus metrics and rate limiting
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional CONFIG_FILE YAML profile (overrides env)
//   - CLI flags (override both)
//
// Usage:
//
//	# Gateway forwarding to the next HTTP hop
//	SERVICE_NAME=gateway NEXT_HOP_URL=http://localhost:8081/api/process ./server
//
//	# Final hop publishing to the chain queue
//	SERVICE_NAME=service-c BROKER_ENABLED=true NEXT_HOP_QUEUE=tel.chain.queue ./server -port 8082
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown with span flush
package main
