// Package middleware provides the HTTP middleware stack for a chain hop.
//
// Middleware stack includes:
//   - Trace: envelope extraction and SERVER span lifecycle per request
//   - CORS: cross-origin resource sharing with configurable origins
//   - RateLimit: per-IP token bucket rate limiting
//
// The trace middleware reads the inbound propagation headers, opens the
// hop's SERVER span, makes it current on the request context, and closes it
// after the handler returns, recording 5xx responses as span errors.
//
// Example Usage:
//
//	router.Use(middleware.Trace(recorder, logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestsPerSecond: 100, Burst: 200}))
package middleware
