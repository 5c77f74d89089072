package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/telchain/backend/internal/chain"
	"github.com/telchain/backend/internal/monitoring"
	"github.com/telchain/backend/internal/propagation"
	"github.com/telchain/backend/internal/tracing"
)

// Simulated processing durations, matching the demo's original behavior.
const (
	chainProcessingDelay  = 50 * time.Millisecond
	fanoutProcessingDelay = 100 * time.Millisecond
)

// Consumer processes deliveries from the chain queue and the fanout queues.
// It is separate from the connection so message handling can be exercised
// without a live broker.
type Consumer struct {
	service  string
	prop     propagation.Message
	recorder *tracing.Recorder
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewConsumer creates a consumer for one hop.
func NewConsumer(service string, recorder *tracing.Recorder, metrics *monitoring.Metrics, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		service:  service,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle processes one delivery. The trace envelope is extracted from the
// message headers; each consumer of a fanned-out message extracts
// independently from its own copy, producing sibling spans under the
// producer. A missing or corrupt envelope starts a fresh root trace; the
// message is still processed and acknowledged. ctx is the consumer loop's
// context: cancelling it cuts the simulated processing short.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery, queue, consumerName string) {
	if tc, ok := c.prop.Extract(d.Headers); ok {
		ctx = tracing.ContextWithRemote(ctx, tc)
	}

	name := queue + " process"
	if consumerName != "" {
		name = queue + " receive"
	}
	ctx, span := c.recorder.Start(ctx, name, tracing.KindConsumer)
	defer span.End()

	log := c.logger.With(
		zap.String("service", c.service),
		zap.String("queue", queue),
		zap.String("trace_id", span.Context.TraceID),
		zap.String("span_id", span.Context.SpanID),
	)
	log.Info("received message from queue")

	span.Tag("service.name", c.service)
	span.Tag("messaging.system", "rabbitmq")
	span.Tag("messaging.destination.name", queue)
	if consumerName != "" {
		span.Tag("messaging.operation.type", "receive")
		span.Tag("messaging.pattern", "fan-out")
		span.Tag("messaging.consumer.type", "parallel")
		span.Tag("consumer.name", consumerName)
		span.Tag("business.operation", "fanout-message-processing")
	} else {
		span.Tag("messaging.operation.type", "process")
		span.Tag("business.operation", "message-processing")
	}

	var msg chain.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Error("failed to decode message body", zap.Error(err))
		span.RecordError(fmt.Errorf("decode message body: %w", err))
		c.recordConsume(queue, "error")
		// Malformed payload, no point requeueing.
		d.Nack(false, false)
		return
	}

	span.Tag("message.data", msg.Data)
	if msg.Service != "" {
		span.Tag("message.source", msg.Service)
	}

	c.process(ctx, consumerName != "")

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack message", zap.Error(err))
		span.RecordError(err)
		c.recordConsume(queue, "error")
		return
	}

	c.recordConsume(queue, "ok")
	log.Info("message processing complete")
}

// process simulates message handling work.
func (c *Consumer) process(ctx context.Context, fanout bool) {
	delay := chainProcessingDelay
	if fanout {
		delay = fanoutProcessingDelay
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func (c *Consumer) recordConsume(queue, status string) {
	if c.metrics != nil {
		c.metrics.RecordConsume(queue, status)
	}
}
