package chain

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/telchain/backend/internal/tracing"
)

// Publisher sends chain and fan-out messages to the broker. Implemented by
// the broker package; nil when this hop has no broker configured.
type Publisher interface {
	PublishChain(ctx context.Context, msg Message) error
	PublishFanout(ctx context.Context, msg Message) error
	ChainQueue() string
	FanoutExchange() string
}

// Orchestrator is the per-hop request handler: it tags the current span,
// simulates local work, and forwards to the configured next hop over HTTP or
// the broker. One orchestrator replaces the per-service handler copies of
// the original chain; only its configuration differs between hops.
type Orchestrator struct {
	service   string
	nextURL   string
	nextQueue string
	maxDelay  time.Duration
	forwarder *Forwarder
	publisher Publisher
	logger    *zap.Logger
}

// Options configures an Orchestrator.
type Options struct {
	Service   string
	NextURL   string // HTTP target, mutually exclusive with NextQueue
	NextQueue string // broker queue name
	MaxDelay  time.Duration
	Forwarder *Forwarder
	Publisher Publisher
	Logger    *zap.Logger
}

// New creates an orchestrator for one hop.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		service:   opts.Service,
		nextURL:   opts.NextURL,
		nextQueue: opts.NextQueue,
		maxDelay:  opts.MaxDelay,
		forwarder: opts.Forwarder,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}
}

// Handle processes one chain request inside the span opened by the
// transport layer. Downstream failures never fail this hop: they are
// recorded on the span and surfaced in the response's error field.
func (o *Orchestrator) Handle(ctx context.Context, data string) Response {
	resp := Response{
		Service:   o.service,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	o.tagRequest(ctx, data)
	o.simulateWork(ctx)

	switch {
	case o.nextURL != "":
		o.forwardHTTP(ctx, data, &resp)
	case o.nextQueue != "" && o.publisher != nil:
		o.publishChain(ctx, data, &resp)
	default:
		o.logger.Info("end of chain reached", zap.String("service", o.service))
		resp.Message = "End of chain"
	}

	return resp
}

// HandleFanout publishes one message to the fan-out exchange, to be consumed
// in parallel by every bound queue.
func (o *Orchestrator) HandleFanout(ctx context.Context, data string) Response {
	resp := Response{
		Service:   o.service,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	o.tagRequest(ctx, data)

	if o.publisher == nil {
		resp.Message = "Fan-out unavailable: broker not configured"
		return resp
	}

	if err := o.publisher.PublishFanout(ctx, NewMessage(o.service, data)); err != nil {
		o.logger.Error("failed to publish fan-out message",
			zap.String("service", o.service), zap.Error(err))
		o.recordError(ctx, err)
		resp.Error = "Failed to publish fan-out message: " + err.Error()
		return resp
	}

	resp.Message = "Message sent to fanout exchange: " + o.publisher.FanoutExchange()
	return resp
}

func (o *Orchestrator) forwardHTTP(ctx context.Context, data string, resp *Response) {
	o.logger.Info("calling next service",
		zap.String("service", o.service), zap.String("target", o.nextURL))

	next, err := o.forwarder.Forward(ctx, o.nextURL, data)
	if err != nil {
		o.logger.Error("error calling next service",
			zap.String("service", o.service), zap.String("target", o.nextURL), zap.Error(err))
		o.recordError(ctx, err)
		resp.Error = "Failed to call next service: " + err.Error()
		return
	}
	resp.Next = next
}

func (o *Orchestrator) publishChain(ctx context.Context, data string, resp *Response) {
	o.logger.Info("publishing message to chain queue",
		zap.String("service", o.service), zap.String("queue", o.nextQueue))

	if err := o.publisher.PublishChain(ctx, NewMessage(o.service, data)); err != nil {
		o.logger.Error("error publishing to broker",
			zap.String("service", o.service), zap.Error(err))
		o.recordError(ctx, err)
		resp.Error = "Failed to publish to RabbitMQ: " + err.Error()
		return
	}
	resp.Message = "Message sent to RabbitMQ queue: " + o.publisher.ChainQueue()
	resp.Next = "next hop (via RabbitMQ)"
}

// tagRequest enriches the current span with request attributes. Tagging can
// never fail the request; with no active span it does nothing.
func (o *Orchestrator) tagRequest(ctx context.Context, data string) {
	span := tracing.FromContext(ctx)
	if span == nil {
		return
	}
	span.Tag("request.data", data)
	span.Tag("request.size", strconv.Itoa(len(data)))
	span.Tag("business.operation", "chain-processing")
	span.Tag("service.description", "Microservice chain handler - "+o.service)
}

func (o *Orchestrator) recordError(ctx context.Context, err error) {
	if span := tracing.FromContext(ctx); span != nil {
		span.RecordError(err)
	}
}

// simulateWork sleeps for a random duration up to the configured bound,
// standing in for real business processing.
func (o *Orchestrator) simulateWork(ctx context.Context) {
	if o.maxDelay <= 0 {
		return
	}
	delay := rand.N(o.maxDelay)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
