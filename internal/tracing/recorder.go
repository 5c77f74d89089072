package tracing

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Exporter receives completed spans. Implementations live in the export
// subpackage; the trace backend behind them is external infrastructure.
type Exporter interface {
	Export(ctx context.Context, spans []*Span) error
}

// ExporterFunc adapts a function to the Exporter interface.
type ExporterFunc func(ctx context.Context, spans []*Span) error

// Export calls f.
func (f ExporterFunc) Export(ctx context.Context, spans []*Span) error {
	return f(ctx, spans)
}

// Options configures a Recorder.
type Options struct {
	Service string
	// Root sampling probability in [0, 1], taken literally: 1 samples every
	// new root, 0 samples none. Continued traces keep the inbound decision.
	SampleRatio   float64
	BufferSize    int           // completed-span buffer before export
	BatchSize     int           // spans per export call
	FlushInterval time.Duration // max latency before a partial batch flushes
	ExportTimeout time.Duration
	OnDrop        func() // optional hook, called when the buffer overflows
}

func (o *Options) withDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.ExportTimeout <= 0 {
		o.ExportTimeout = 10 * time.Second
	}
}

// Recorder creates spans, tracks the current span through contexts, and
// ships completed sampled spans to an exporter from a background worker.
type Recorder struct {
	opts     Options
	exporter Exporter
	logger   *zap.Logger

	spans   chan *Span
	done    chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool
	dropped atomic.Int64
}

// NewRecorder creates a recorder and starts its export worker.
func NewRecorder(opts Options, exporter Exporter, logger *zap.Logger) *Recorder {
	opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		opts:     opts,
		exporter: exporter,
		logger:   logger,
		spans:    make(chan *Span, opts.BufferSize),
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Start opens a span and makes it current in the returned context.
//
// Identity resolution, in order: a current span in ctx makes this a child
// span at the same hop; a remote context stashed by a propagator continues
// the inbound trace; otherwise a new root is started, sampled with the
// configured probability.
func (r *Recorder) Start(ctx context.Context, name string, kind Kind) (context.Context, *Span) {
	var tc TraceContext
	switch {
	case FromContext(ctx) != nil:
		tc = FromContext(ctx).Context.Child()
	default:
		if remote, ok := RemoteFromContext(ctx); ok && remote.Valid() {
			tc = remote
		} else {
			tc = NewRoot(r.sample())
		}
	}

	span := &Span{
		Context:    tc,
		Name:       name,
		Kind:       kind,
		Service:    r.opts.Service,
		StartTime:  time.Now(),
		attributes: make(map[string]string),
		status:     StatusUnset,
		recorder:   r,
	}
	return ContextWithSpan(ctx, span), span
}

// End closes the span and queues it for export. Idempotent. Unsampled spans
// are closed but never exported. When the buffer is full the span is dropped
// rather than blocking the request path.
func (r *Recorder) End(span *Span) {
	if span == nil || !span.close(time.Now()) {
		return
	}
	if !span.Context.Sampled {
		return
	}
	select {
	case r.spans <- span:
	default:
		r.dropped.Add(1)
		if r.opts.OnDrop != nil {
			r.opts.OnDrop()
		}
		r.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", span.Context.TraceID),
			zap.String("span_id", span.Context.SpanID),
		)
	}
}

// Dropped returns the number of spans lost to buffer overflow.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Shutdown stops the worker after flushing buffered spans. Safe to call once.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.stopped.Swap(true) {
		return nil
	}
	close(r.done)

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) sample() bool {
	switch {
	case r.opts.SampleRatio >= 1:
		return true
	case r.opts.SampleRatio <= 0:
		return false
	default:
		return rand.Float64() < r.opts.SampleRatio
	}
}

func (r *Recorder) loop() {
	defer r.wg.Done()

	batch := make([]*Span, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.ExportTimeout)
		if err := r.exporter.Export(ctx, batch); err != nil {
			r.logger.Error("failed to export spans", zap.Int("count", len(batch)), zap.Error(err))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case span := <-r.spans:
			batch = append(batch, span)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			for {
				select {
				case span := <-r.spans:
					batch = append(batch, span)
					if len(batch) >= r.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
