package broker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telchain/backend/internal/chain"
	"github.com/telchain/backend/internal/propagation"
	"github.com/telchain/backend/internal/tracing"
	"github.com/telchain/backend/internal/tracing/export"
)

// fakeChannel captures publishings so the producer path can be exercised
// without a live broker, the same way consumer tests fabricate deliveries.
type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	calls    int
	err      error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls++
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func testBroker(t *testing.T, ch *fakeChannel) (*Broker, *export.Memory, *tracing.Recorder) {
	t.Helper()
	mem := export.NewMemory()
	recorder := tracing.NewRecorder(tracing.Options{Service: "producer-service", SampleRatio: 1}, mem, nil)
	t.Cleanup(func() { recorder.Shutdown(context.Background()) })
	return &Broker{
		pub:            ch,
		recorder:       recorder,
		logger:         zap.NewNop(),
		service:        "producer-service",
		publishTimeout: time.Second,
	}, mem, recorder
}

func TestPublishChainOpensProducerSpan(t *testing.T) {
	ch := &fakeChannel{}
	b, mem, recorder := testBroker(t, ch)

	msg := chain.NewMessage("producer-service", "data")
	require.NoError(t, b.PublishChain(context.Background(), msg))

	assert.Equal(t, 1, ch.calls)
	assert.Empty(t, ch.exchange, "chain publish goes through the default exchange")
	assert.Equal(t, ChainQueue, ch.key)

	spans := exportedSpans(t, recorder, mem, 1)
	span := spans[0]
	assert.Equal(t, tracing.KindProducer, span.Kind)
	assert.Equal(t, ChainQueue+" publish", span.Name)

	attrs := span.Attributes()
	assert.Equal(t, "rabbitmq", attrs["messaging.system"])
	assert.Equal(t, ChainQueue, attrs["messaging.destination.name"])
	assert.Equal(t, "send", attrs["messaging.operation.type"])
	assert.Equal(t, "data", attrs["message.data"])
}

// The envelope in the published headers must continue the producer span: a
// consumer extracting from them lands in the same trace with the producer's
// span id as its parent.
func TestPublishInjectsEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	b, mem, recorder := testBroker(t, ch)

	require.NoError(t, b.PublishChain(context.Background(), chain.NewMessage("producer-service", "data")))

	var prop propagation.Message
	tc, ok := prop.Extract(ch.msg.Headers)
	require.True(t, ok, "published headers must carry a trace envelope")

	spans := exportedSpans(t, recorder, mem, 1)
	producer := spans[0]
	assert.Equal(t, producer.Context.TraceID, tc.TraceID)
	assert.Equal(t, producer.Context.SpanID, tc.ParentSpanID)
	assert.NotEqual(t, producer.Context.SpanID, tc.SpanID)
}

func TestPublishMessageShape(t *testing.T) {
	ch := &fakeChannel{}
	b, _, _ := testBroker(t, ch)

	msg := chain.NewMessage("producer-service", "payload")
	require.NoError(t, b.PublishFanout(context.Background(), msg))

	assert.Equal(t, FanoutExchange, ch.exchange)
	assert.Empty(t, ch.key, "fanout routing key is ignored by the exchange")

	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), ch.msg.DeliveryMode)
	assert.True(t, strings.HasPrefix(ch.msg.MessageId, "msg_"), "message id %q", ch.msg.MessageId)
	assert.False(t, ch.msg.Timestamp.IsZero())

	var decoded chain.Message
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, msg.Service, decoded.Service)
	assert.Equal(t, msg.Data, decoded.Data)
}

func TestPublishFailureRecordsOnSpan(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	b, mem, recorder := testBroker(t, ch)

	err := b.PublishChain(context.Background(), chain.NewMessage("producer-service", "data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to "+ChainQueue)

	spans := exportedSpans(t, recorder, mem, 1)
	status, _ := spans[0].Status()
	assert.Equal(t, tracing.StatusError, status)
}
