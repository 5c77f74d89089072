// Package config provides 12-factor configuration management for a chain hop.
//
// Configuration is loaded from environment variables with sensible defaults;
// an optional YAML profile (CONFIG_FILE) overrides the environment, and CLI
// flags in cmd/server override both.
//
// Configuration Sections:
//   - Service: hop identity and simulated processing delay
//   - Server: HTTP server settings (port, host)
//   - NextHop: forwarding target, either an HTTP URL, a broker queue, or none
//   - Broker: RabbitMQ connection, consumer enablement, publish timeout
//   - Tracing: OTLP collector address, sampling, export batching
//   - HTTP: outbound client timeout and retries
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//
// Environment Variables:
//   - SERVICE_NAME, MAX_PROCESSING_DELAY
//   - PORT, HOST
//   - NEXT_HOP_URL, NEXT_HOP_QUEUE
//   - BROKER_URL, BROKER_ENABLED, BROKER_CONSUME_CHAIN, BROKER_CONSUME_FANOUT
//   - OTLP_ADDR, TRACE_SAMPLE_RATIO
//   - HTTP_TIMEOUT, HTTP_RETRY_COUNT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CONFIG_FILE
package config
