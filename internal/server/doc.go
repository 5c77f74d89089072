// Package server wires one chain hop together: logger, metrics, span
// recorder and exporter, outbound forwarder, optional broker, and the Gin
// router with its middleware stack.
package server
