/*
Package tracing implements the trace identity core for the chain demo.

# Overview

Every hop of the chain opens exactly one span for its local work and may
open nested CLIENT or PRODUCER spans around outbound calls. All spans that
service one external request share a single 128-bit trace id and form a
tree: the root span has no parent, chain hops extend the tree linearly,
and fan-out consumers become siblings under the publishing span.

The package deliberately trades framework auto-instrumentation for explicit,
testable calls: transports extract a remote context with a propagator, stash
it with ContextWithRemote, and open their span with Recorder.Start. The
"current span" travels only inside the request's context.Context, so
concurrent requests on one process never share span state.

# Usage

	rec := tracing.NewRecorder(tracing.Options{Service: "gateway", SampleRatio: 1}, exporter, logger)

	ctx, span := rec.Start(ctx, "http get /api/chain", tracing.KindServer)
	defer span.End()

	span.Tag("request.data", data)
	if err != nil {
		span.RecordError(err)
	}

# Guarantees

  - Trace ids survive arbitrarily many hops and the fan-out branch point.
  - Span ids are fresh random 64-bit values per hop.
  - End is idempotent; Tag and RecordError after End are silent no-ops.
  - A request with no usable envelope still gets a trace: the recorder
    starts a fresh root and applies its own sampling decision.
*/
package tracing
