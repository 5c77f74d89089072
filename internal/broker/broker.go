package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/telchain/backend/internal/chain"
	"github.com/telchain/backend/internal/config"
	"github.com/telchain/backend/internal/monitoring"
	"github.com/telchain/backend/internal/propagation"
	"github.com/telchain/backend/internal/shared/id"
	"github.com/telchain/backend/internal/tracing"
)

// Broker destinations. The chain queue carries point-to-point continuation;
// the fanout exchange broadcasts one publish to all three bound queues.
const (
	ChainQueue     = "tel.chain.queue"
	FanoutExchange = "tel.fanout.exchange"
	FanoutQueueA   = "tel.fanout.queue.a"
	FanoutQueueB   = "tel.fanout.queue.b"
	FanoutQueueC   = "tel.fanout.queue.c"
)

// FanoutQueues lists the queues bound to the fanout exchange, paired with
// the consumer name each one tags its spans with.
var FanoutQueues = map[string]string{
	FanoutQueueA: "Consumer-A",
	FanoutQueueB: "Consumer-B",
	FanoutQueueC: "Consumer-C",
}

// publishChannel is the slice of *amqp.Channel the publish path needs;
// tests substitute a fake the same way consumer tests fabricate deliveries.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Broker owns the RabbitMQ connection for one hop: it declares the demo
// topology, publishes with trace envelopes in the message headers, and runs
// the consumer loops.
type Broker struct {
	conn           *amqp.Connection
	ch             *amqp.Channel
	pub            publishChannel
	consumer       *Consumer
	prop           propagation.Message
	recorder       *tracing.Recorder
	metrics        *monitoring.Metrics
	logger         *zap.Logger
	service        string
	publishTimeout time.Duration
}

// Connect dials RabbitMQ and declares the chain queue, fanout exchange, and
// fanout queue bindings. All destinations are durable.
func Connect(cfg config.BrokerConfig, service string, recorder *tracing.Recorder, metrics *monitoring.Metrics, logger *zap.Logger) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Broker{
		conn:           conn,
		ch:             ch,
		pub:            ch,
		consumer:       NewConsumer(service, recorder, metrics, logger),
		recorder:       recorder,
		metrics:        metrics,
		logger:         logger,
		service:        service,
		publishTimeout: cfg.PublishTimeout,
	}
	if err := b.declareTopology(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) declareTopology() error {
	if _, err := b.ch.QueueDeclare(ChainQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", ChainQueue, err)
	}
	if err := b.ch.ExchangeDeclare(FanoutExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", FanoutExchange, err)
	}
	for queue := range FanoutQueues {
		if _, err := b.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := b.ch.QueueBind(queue, "", FanoutExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// PublishChain sends one message to the chain queue for point-to-point
// continuation.
func (b *Broker) PublishChain(ctx context.Context, msg chain.Message) error {
	return b.publish(ctx, "", ChainQueue, ChainQueue, msg)
}

// PublishFanout broadcasts one message through the fanout exchange; every
// bound queue receives its own copy.
func (b *Broker) PublishFanout(ctx context.Context, msg chain.Message) error {
	return b.publish(ctx, FanoutExchange, "", FanoutExchange, msg)
}

// ChainQueue returns the chain queue name.
func (b *Broker) ChainQueue() string { return ChainQueue }

// FanoutExchange returns the fanout exchange name.
func (b *Broker) FanoutExchange() string { return FanoutExchange }

// publish opens a PRODUCER span, injects the trace envelope into the
// message headers, and sends the message within the configured timeout.
func (b *Broker) publish(ctx context.Context, exchange, key, destination string, msg chain.Message) error {
	ctx, span := b.recorder.Start(ctx, destination+" publish", tracing.KindProducer)
	defer span.End()

	span.Tag("messaging.system", "rabbitmq")
	span.Tag("messaging.destination.name", destination)
	span.Tag("messaging.operation.type", "send")
	span.Tag("message.data", msg.Data)

	headers := amqp.Table{}
	b.prop.Inject(span.Context, headers)

	body, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("encode message: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()

	err = b.pub.PublishWithContext(pubCtx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id.NewMessageID().String(),
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	})
	if b.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		b.metrics.RecordPublish(destination, status)
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish to %s: %w", destination, err)
	}

	b.logger.Info("published message",
		zap.String("service", b.service),
		zap.String("destination", destination),
		zap.String("trace_id", span.Context.TraceID),
	)
	return nil
}

// StartConsumers launches the consumer loops selected by cfg. They stop when
// ctx is cancelled or the channel closes.
func (b *Broker) StartConsumers(ctx context.Context, cfg config.BrokerConfig) error {
	if cfg.ConsumeChain {
		if err := b.startConsumer(ctx, ChainQueue, ""); err != nil {
			return err
		}
	}
	if cfg.ConsumeFanout {
		for queue, consumerName := range FanoutQueues {
			if err := b.startConsumer(ctx, queue, consumerName); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Broker) startConsumer(ctx context.Context, queue, consumerName string) error {
	deliveries, err := b.ch.Consume(queue, b.service+"."+queue, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				b.consumer.Handle(ctx, d, queue, consumerName)
			}
		}
	}()
	b.logger.Info("consumer started",
		zap.String("service", b.service), zap.String("queue", queue))
	return nil
}

// Connected reports whether the underlying connection is still open.
func (b *Broker) Connected() bool {
	return b.conn != nil && !b.conn.IsClosed()
}

// Close tears down the channel and connection.
func (b *Broker) Close() error {
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
