// Package monitoring provides Prometheus metrics for a chain hop: inbound
// request counters and latencies, next-hop forwarding, broker publish and
// consume outcomes, and span export health. Exposed on /metrics.
package monitoring
