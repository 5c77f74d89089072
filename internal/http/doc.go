// Package http contains the Gin handlers for one chain hop: the chain and
// fan-out entry points, the demo greet and error endpoints, and health.
// Handlers never fail the hop on downstream errors; the response body carries
// the error and the status stays 200.
package http
