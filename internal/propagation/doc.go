// Package propagation serializes trace context across transport boundaries.
//
// The wire envelope is identical over HTTP headers and broker message
// properties: a W3C traceparent value plus a discrete traceId/spanId pair.
// Extraction on either transport reports absence rather than failing: a
// missing or unparsable envelope leaves the root decision, sampling
// included, to the receiving hop's recorder. The request or message itself
// is never rejected over trace metadata.
package propagation
