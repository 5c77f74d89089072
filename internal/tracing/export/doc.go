// Package export ships completed spans out of the process.
//
// The OTLP exporter speaks the OpenTelemetry collector protocol over gRPC
// and is the production sink. The log exporter keeps traces visible when no
// collector is configured. The memory exporter backs trace assertions in
// tests.
package export
